// Command insurspeak explains the jargon in insurance documents, either in
// the browser (serve) or in the terminal (analyze, ask).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/config"
	"github.com/dgallion1/insurspeak/internal/logger"
	"github.com/dgallion1/insurspeak/internal/service"
)

var (
	serviceURL string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "insurspeak",
		Short:        "Explain the jargon in insurance documents",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", "", "backend base URL (overrides INSURSPEAK_SERVICE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(askCmd())
	return rootCmd
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(defaultLevel string) (config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if serviceURL != "" {
		cfg.ServiceURL = serviceURL
	}
	switch {
	case logLevel != "":
		cfg.LogLevel = logLevel
	case defaultLevel != "" && os.Getenv("LOG_LEVEL") == "":
		cfg.LogLevel = defaultLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Production: cfg.IsProduction(), File: cfg.LogFile})
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func newClient(cfg config.Config, log *zap.Logger) *service.Client {
	return service.NewClient(cfg.ServiceURL, cfg.RequestTimeout,
		service.WithMaxRetries(cfg.MaxRetries),
		service.WithLogger(log),
	)
}
