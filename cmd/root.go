package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fusion-chat",
	Short: "Chat with remote or in-process language models",
	Long: `fusion-chat streams conversations against the OpenRouter API or a model
running entirely in-process, with per-chat history, reference-data
attachments, and regenerate/edit/delete on any user turn.

Examples:
  fusion-chat chat                          # start a new chat
  fusion-chat chat --model qwen/qwen3-235b-a22b-2507
  fusion-chat chat --resume 20250830-143052-a1b2c3
  fusion-chat models                        # list known models
  fusion-chat export 20250830-143052-a1b2c3 chat.json`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
