package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karenos/fusion-chat/internal/config"
	"github.com/karenos/fusion-chat/internal/llm"
)

var modelsAdd string

func init() {
	modelsCmd.Flags().StringVar(&modelsAdd, "add", "", "Add a model to the custom list")
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List selectable models with their context lengths",
	RunE: func(cmd *cobra.Command, args []string) error {
		if modelsAdd != "" {
			return config.AddModel(modelsAdd)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		models, err := config.LoadModelList()
		if err != nil {
			return err
		}
		catalog := llm.LoadCatalog(cmd.Context(), cfg.APIKey)

		for _, id := range models {
			meta := catalog.Lookup(id)
			ctxLen := ""
			if meta != nil {
				ctxLen = llm.FormatTokenCount(meta.ContextLength)
			}
			marker := " "
			if id == cfg.Model {
				marker = "*"
			}
			if ctxLen != "" {
				fmt.Printf("%s %-45s %6s ctx  %2d pairs\n", marker, id, ctxLen, llm.MaxPairs(meta))
			} else {
				fmt.Printf("%s %-45s            %2d pairs\n", marker, id, llm.MaxPairs(meta))
			}
		}
		return nil
	},
}
