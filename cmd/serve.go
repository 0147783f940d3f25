package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cobra "github.com/spf13/cobra"

	adapters "github.com/chatwire/chatwire/internal/adapters"
	handlers "github.com/chatwire/chatwire/internal/handlers"
	llmclient "github.com/chatwire/chatwire/internal/llmclient"
	logger "github.com/chatwire/chatwire/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the widget boundary server",
	Long: `Start the HTTP server hosting the widget boundary. Embedded widgets
connect over WebSocket at /v1/ws, declare their model and tools, and exchange
user messages, streamed assistant output and tool-call requests/results with
the conversation engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		if host != "" {
			cfg.Server.Host = host
		}
		if port != 0 {
			cfg.Server.Port = port
		}

		backend := llmclient.New(
			cfg.Backend.URL,
			cfg.Backend.APIKey,
			time.Duration(cfg.Backend.TimeoutSeconds)*time.Second,
		)
		sessionManager := handlers.NewSessionManager(backend, adapters.DefaultRegistry(), time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
		defer sessionManager.CloseAll()

		wsHandler := handlers.NewWebSocketHandler(sessionManager)

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		server := &http.Server{
			Addr:              addr,
			Handler:           handlers.NewRouter(wsHandler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("boundary server listening", "addr", addr, "backend", cfg.Backend.URL)
			fmt.Printf("ChatWire boundary server listening on %s\n", addr)
			serverErrors <- server.ListenAndServe()
		}()

		return waitForShutdown(server, serverErrors)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "bind host (default from config)")
	serveCmd.Flags().Int("port", 0, "bind port (default from config)")
}

func waitForShutdown(server *http.Server, serverErrors chan error) error {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-shutdown:
		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}
