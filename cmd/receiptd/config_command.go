package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/receiptme/receiptd/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(newConfigCheckCommand(ctx))
	return cmd
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	var forWorker bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the effective values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			validate := cfg.Validate
			if forWorker {
				validate = cfg.ValidateWorker
			}
			if err := validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			data, err := yaml.Marshal(redacted(cfg))
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(data))
			fmt.Fprintln(out, "configuration OK")
			return nil
		},
	}

	cmd.Flags().BoolVar(&forWorker, "worker", false, "Also require the settings the worker needs")
	return cmd
}

func redacted(cfg *config.Config) *config.Config {
	shown := *cfg
	shown.Webhooks = make([]config.WebhookConfig, len(cfg.Webhooks))
	for i, w := range cfg.Webhooks {
		if w.Secret != "" {
			w.Secret = "********"
		}
		shown.Webhooks[i] = w
	}
	return &shown
}
