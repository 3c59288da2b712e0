package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgallion1/insurspeak/internal/api"
	"github.com/dgallion1/insurspeak/internal/config"
	"github.com/dgallion1/insurspeak/internal/service"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup("")
			if err != nil {
				return err
			}
			defer log.Sync()
			if port != "" {
				cfg.Port = port
			}

			client := newClient(cfg, log)
			defer client.Close()

			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      api.NewServer(client, log, cfg),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: writeTimeout(cfg),
				IdleTimeout:  60 * time.Second,
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info("starting insurspeak",
				zap.String("port", cfg.Port),
				zap.String("service_url", cfg.ServiceURL),
				zap.String("default_insurance_type", string(cfg.DefaultInsuranceType)),
			)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

// writeTimeout leaves room for a backend call that uses its whole retry
// budget before the response is written.
func writeTimeout(cfg config.Config) time.Duration {
	return service.CallBudget(cfg.RequestTimeout, cfg.MaxRetries) + 30*time.Second
}
