package cmd

import (
	"fmt"

	cobra "github.com/spf13/cobra"
)

// Version is injected at build time
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chatwire %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
