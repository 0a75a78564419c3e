package main

import "github.com/karenos/fusion-chat/cmd"

func main() {
	cmd.Execute()
}
