package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karenos/fusion-chat/internal/chat"
	"github.com/karenos/fusion-chat/internal/store"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <chat-id> <path>",
	Short: "Export a saved chat as JSON (or markdown with a .md path)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, path := args[0], args[1]

		st, err := store.NewSQLiteStore(nil)
		if err != nil {
			return err
		}
		defer st.Close()

		conv, err := st.Load(id)
		if err != nil {
			return err
		}
		turns := chat.NewLog(conv).Turns()

		if strings.HasSuffix(path, ".md") {
			return os.WriteFile(path, []byte(chat.ExportToMarkdown(conv, turns)), 0644)
		}

		snapshot := chat.Export(conv, turns, "")
		data, err := snapshot.MarshalIndent()
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewSQLiteStore(nil)
		if err != nil {
			return err
		}
		defer st.Close()

		infos, err := st.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			name := info.Name
			if name == "" {
				name = chat.ShortID(info.ID)
			}
			fmt.Printf("%-24s %-20s %-40s %d turns\n", info.ID, name, info.Model, info.TurnCount)
		}
		return nil
	},
}
