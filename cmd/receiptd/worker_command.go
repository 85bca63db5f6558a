package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/receiptme/receiptd/internal/client"
	"github.com/receiptme/receiptd/internal/printer"
	"github.com/receiptme/receiptd/internal/receipt"
	"github.com/receiptme/receiptd/internal/worker"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var apiBase, vendorID, productID string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Poll the message API and print receipts on the USB printer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if apiBase != "" {
				cfg.Worker.APIBase = apiBase
			}
			if vendorID != "" {
				cfg.Worker.VendorID = vendorID
			}
			if productID != "" {
				cfg.Worker.ProductID = productID
			}
			if err := cfg.ValidateWorker(); err != nil {
				return fmt.Errorf("invalid worker configuration: %w", err)
			}
			vid, pid, err := cfg.Worker.USBIDs()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			lock, err := worker.AcquireLock(cfg.Worker.LockPath)
			if err != nil {
				return err
			}
			defer lock.Release()

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			device := printer.NewUSBPrinter(printer.Options{
				VendorID:   vid,
				ProductID:  pid,
				DevicePath: cfg.Printer.DevicePath,
				SysfsRoot:  cfg.Printer.SysfsRoot,
				DevRoot:    cfg.Printer.DevRoot,
			}, logger)

			var opts []worker.Option
			if cfg.Worker.Hotplug {
				watcher := printer.NewHotplugWatcher(vid, pid, logger)
				if err := watcher.Start(runCtx); err != nil {
					return err
				}
				defer watcher.Stop()
				opts = append(opts, worker.WithWake(watcher.Wake()))
			}

			logger.Info().
				Str("api_base", cfg.Worker.APIBase).
				Str("worker_id", cfg.Worker.WorkerID).
				Str("usb_id", fmt.Sprintf("%04x:%04x", vid, pid)).
				Stringer("poll_interval", cfg.Worker.PollInterval).
				Stringer("reconnect_delay", cfg.Worker.ReconnectDelay).
				Stringer("request_timeout", cfg.Worker.RequestTimeout).
				Str("lock", lock.Path()).
				Msg("printer worker starting")

			w := worker.New(
				worker.ConfigFrom(cfg.Worker),
				client.New(cfg.Worker.APIBase, cfg.Worker.RequestTimeout.Duration()),
				device,
				receipt.NewFormatter(cfg.Printer),
				logger,
				opts...,
			)
			w.Run(runCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiBase, "api-base", "", "Message API base URL (overrides worker.api_base)")
	cmd.Flags().StringVar(&vendorID, "vendor-id", "", "Printer USB vendor id in hex, e.g. 0fe6")
	cmd.Flags().StringVar(&productID, "product-id", "", "Printer USB product id in hex, e.g. 811e")
	return cmd
}
