package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/receiptme/receiptd/internal/client"
	"github.com/receiptme/receiptd/internal/config"
	"github.com/receiptme/receiptd/internal/core"
)

const timestampDisplay = "2006-01-02 15:04:05"

func newMessagesCommand(ctx *commandContext) *cobra.Command {
	var apiBase string

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Inspect and send messages through the API",
	}
	cmd.PersistentFlags().StringVar(&apiBase, "api-base", "", "Message API base URL (default worker.api_base or the local server)")

	newClient := func() *client.Client {
		return client.New(resolveAPIBase(ctx.config, apiBase), ctx.config.Worker.RequestTimeout.Duration())
	}

	cmd.AddCommand(newMessagesRecentCommand(newClient))
	cmd.AddCommand(newMessagesSendCommand(newClient))
	return cmd
}

func resolveAPIBase(cfg *config.Config, flag string) string {
	if base := strings.TrimSpace(flag); base != "" {
		return base
	}
	if base := strings.TrimSpace(cfg.Worker.APIBase); base != "" {
		return base
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

func newMessagesRecentCommand(newClient func() *client.Client) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := newClient().ListRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list recent messages: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(messages) == 0 {
				fmt.Fprintln(out, "No messages")
				return nil
			}
			fmt.Fprintln(out, renderMessages(messages))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of messages to show")
	return cmd
}

func renderMessages(messages []*core.Message) string {
	rows := make([][]string, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, []string{
			fmt.Sprintf("#%03d", m.SequenceNumber),
			formatTime(m.CreatedAt),
			m.Sender,
			printedStatus(m),
			m.Content,
		})
	}
	return renderTable(
		[]string{"MSG", "Created", "From", "Printed", "Content"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

func printedStatus(m *core.Message) string {
	if !m.Printed {
		return "pending"
	}
	if m.PrintedAt == nil {
		return "yes"
	}
	return formatTime(*m.PrintedAt)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format(timestampDisplay)
}

func newMessagesSendCommand(newClient func() *client.Client) *cobra.Command {
	var sender, content string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Queue a message for printing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if content == "" && len(args) > 0 {
				content = strings.Join(args, " ")
			}
			m, err := sendMessage(cmd.Context(), newClient(), sender, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued message #%03d (%s)\n", m.SequenceNumber, m.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sender, "sender", "s", "", "Sender name (1-50 characters)")
	cmd.Flags().StringVarP(&content, "content", "m", "", "Message content (1-280 characters)")
	return cmd
}

// sendMessage validates locally so obvious mistakes never cost a round trip.
func sendMessage(ctx context.Context, c *client.Client, sender, content string) (*core.Message, error) {
	sender, content, err := core.ValidateNewMessage(sender, content)
	if err != nil {
		return nil, err
	}
	m, err := c.CreateMessage(ctx, sender, content)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return m, nil
}
