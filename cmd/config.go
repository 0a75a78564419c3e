package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karenos/fusion-chat/internal/config"
)

func init() {
	configCmd.AddCommand(configSetKeyCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path, _ := config.GetConfigPath()
		fmt.Printf("config file:  %s\n", path)
		fmt.Printf("model:        %s\n", cfg.Model)
		if cfg.APIKey != "" {
			fmt.Println("api key:      set")
		} else {
			fmt.Println("api key:      not set (export OPENROUTER_API_KEY or run `fusion-chat config set-key`)")
		}
		if cfg.Embedded.ModulePath != "" {
			fmt.Printf("embedded:     %s\n", cfg.Embedded.ModulePath)
		}
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the OpenRouter API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.APIKey = args[0]
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Println("API key saved")
		return nil
	},
}
