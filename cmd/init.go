package cmd

import (
	"fmt"
	"os"

	cobra "github.com/spf13/cobra"

	config "github.com/chatwire/chatwire/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.DefaultConfigPath
		}

		overwrite, _ := cmd.Flags().GetBool("overwrite")
		if _, err := os.Stat(configPath); err == nil && !overwrite {
			return fmt.Errorf("config file %s already exists (use --overwrite to replace it)", configPath)
		}

		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}

		fmt.Printf("Wrote default configuration to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("overwrite", false, "replace an existing config file")
}
