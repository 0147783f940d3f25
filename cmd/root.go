package cmd

import (
	"fmt"
	"os"

	cobra "github.com/spf13/cobra"

	config "github.com/chatwire/chatwire/config"
	logger "github.com/chatwire/chatwire/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "chatwire",
	Short: "Embeddable conversational AI engine with host-executed tools",
	Long: `ChatWire lets a host application embed a conversational AI surface that
can both converse with a user and invoke host-defined tools mid-conversation.
The hosting page connects over WebSocket, the engine talks to an
OpenAI-compatible chat-completions backend, and tool calls are brokered
between the two regardless of whether the backend supports structured tool
calling natively.`,
}

// Execute runs the root command
func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	logger.Init(verbose)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Logging.Verbose {
		logger.Init(true)
	}
	return cfg, nil
}
