package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/receiptme/receiptd/internal/printer"
	"github.com/receiptme/receiptd/internal/receipt"
)

func newPrinterCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printer",
		Short: "Printer utilities",
	}
	cmd.AddCommand(newPrinterTestCommand(ctx))
	return cmd
}

func newPrinterTestCommand(ctx *commandContext) *cobra.Command {
	var vendorID, productID string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Print a test receipt on the configured printer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if vendorID != "" {
				cfg.Worker.VendorID = vendorID
			}
			if productID != "" {
				cfg.Worker.ProductID = productID
			}
			vid, pid, err := cfg.Worker.USBIDs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting to printer %04x:%04x...\n", vid, pid)

			device := printer.NewUSBPrinter(printer.Options{
				VendorID:   vid,
				ProductID:  pid,
				DevicePath: cfg.Printer.DevicePath,
				SysfsRoot:  cfg.Printer.SysfsRoot,
				DevRoot:    cfg.Printer.DevRoot,
			}, ctx.logger())
			defer device.Disconnect()

			if err := device.Connect(cmd.Context()); err != nil {
				return fmt.Errorf("%w%s", err, connectHint(err))
			}

			if err := device.Print(cmd.Context(), receipt.NewFormatter(cfg.Printer).TestPage()); err != nil {
				return fmt.Errorf("print test receipt: %w", err)
			}
			fmt.Fprintln(out, "Test receipt printed successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&vendorID, "vendor-id", "", "Printer USB vendor id in hex, e.g. 0fe6")
	cmd.Flags().StringVar(&productID, "product-id", "", "Printer USB product id in hex, e.g. 811e")
	return cmd
}

func connectHint(err error) string {
	switch {
	case errors.Is(err, printer.ErrNotFound):
		return "\nhint: check the USB cable and power, and verify the ids with lsusb"
	case errors.Is(err, printer.ErrPermissionDenied):
		return "\nhint: add a udev rule granting access to the printer, or run as a member of the lp group"
	default:
		return ""
	}
}
