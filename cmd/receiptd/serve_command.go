package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/receiptme/receiptd/internal/api"
	"github.com/receiptme/receiptd/internal/api/handlers"
	"github.com/receiptme/receiptd/internal/db"
	"github.com/receiptme/receiptd/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the message API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := ctx.logger()

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			store, err := db.OpenStore(runCtx, cfg.Database)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			var notifier handlers.Notifier
			if len(cfg.Webhooks) > 0 {
				sender := webhook.NewSender(cfg.Webhooks, webhook.Options{}, logger)
				sender.Start()
				defer sender.Stop()
				notifier = sender
			}

			srv := api.NewServer(cfg, api.NewRouter(cfg, api.Deps{
				Store:    store,
				Notifier: notifier,
				Logger:   logger,
			}))

			errCh := make(chan error, 1)
			go func() {
				logger.Info().
					Str("addr", srv.Addr).
					Str("driver", cfg.Database.Driver).
					Int("webhooks", len(cfg.Webhooks)).
					Msg("message API listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-runCtx.Done():
			}

			logger.Info().Msg("shutting down message API")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides server.port)")
	return cmd
}
