package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/client"
	"github.com/receiptme/receiptd/internal/config"
	"github.com/receiptme/receiptd/internal/core"
	"github.com/receiptme/receiptd/internal/logging"
	"github.com/receiptme/receiptd/internal/printer"
	"github.com/receiptme/receiptd/internal/receipt"
)

const previewLength = 50

// Source is the remote message queue as seen by the worker.
type Source interface {
	NextToPrint(ctx context.Context, workerID string) (*core.Message, error)
	MarkPrinted(ctx context.Context, id string) error
}

type Printer interface {
	Connect(ctx context.Context) error
	Print(ctx context.Context, blocks []receipt.Block) error
	Disconnect() error
}

// WaitFunc blocks for d, returning early with nil when wake fires or with the
// context error when ctx is cancelled.
type WaitFunc func(ctx context.Context, d time.Duration, wake <-chan struct{}) error

type Config struct {
	WorkerID       string
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
	ItemPause      time.Duration
}

func ConfigFrom(cfg config.WorkerConfig) Config {
	return Config{
		WorkerID:       cfg.WorkerID,
		PollInterval:   cfg.PollInterval.Duration(),
		ReconnectDelay: cfg.ReconnectDelay.Duration(),
		RequestTimeout: cfg.RequestTimeout.Duration(),
		ItemPause:      cfg.ItemPause.Duration(),
	}
}

// Worker moves messages from the queue to the printer one at a time.
type Worker struct {
	cfg       Config
	source    Source
	printer   Printer
	formatter *receipt.Formatter
	logger    zerolog.Logger
	wait      WaitFunc
	wake      <-chan struct{}
	onState   func(State)
}

type Option func(*Worker)

func WithWait(wait WaitFunc) Option {
	return func(w *Worker) { w.wait = wait }
}

// WithWake lets hot-plug events cut the reconnect delay short.
func WithWake(wake <-chan struct{}) Option {
	return func(w *Worker) { w.wake = wake }
}

func WithStateHook(fn func(State)) Option {
	return func(w *Worker) { w.onState = fn }
}

func New(cfg Config, source Source, p Printer, formatter *receipt.Formatter, logger zerolog.Logger, opts ...Option) *Worker {
	w := &Worker{
		cfg:       cfg,
		source:    source,
		printer:   p,
		formatter: formatter,
		logger:    logging.Component(logger, "worker"),
		wait:      Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Sleep is the default WaitFunc.
func Sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wake:
		return nil
	case <-t.C:
		return nil
	}
}

// Run drives the loop until ctx is cancelled, then releases the printer. It
// only returns once any receipt in progress has been printed and acknowledged.
func (w *Worker) Run(ctx context.Context) Stats {
	rs := &runState{state: StateDisconnected}
	w.notify(rs.state)

	for {
		if ctx.Err() != nil && !rs.state.draining() {
			break
		}

		switch rs.state {
		case StateDisconnected:
			w.connect(ctx, rs)
		case StateIdle:
			w.poll(ctx, rs)
		case StatePrinting:
			w.print(ctx, rs)
		case StateAcknowledging:
			w.acknowledge(ctx, rs)
		}
	}

	w.shutdown(rs)
	return rs.stats
}

func (w *Worker) setState(rs *runState, s State) {
	if rs.state == s {
		return
	}
	w.logger.Debug().Stringer("from", rs.state).Stringer("to", s).Msg("state change")
	rs.state = s
	if s == StateDisconnected {
		w.drainWake()
	}
	w.notify(s)
}

// drainWake drops hot-plug signals that arrived while the printer was still
// connected, so only a fresh event shortens the reconnect delay.
func (w *Worker) drainWake() {
	for {
		select {
		case <-w.wake:
		default:
			return
		}
	}
}

// apiEvent logs transient API failures at warn and everything else at error.
func (w *Worker) apiEvent(err error) *zerolog.Event {
	if client.IsTransient(err) {
		return w.logger.Warn()
	}
	return w.logger.Error()
}

func (w *Worker) notify(s State) {
	if w.onState != nil {
		w.onState(s)
	}
}

func (w *Worker) connect(ctx context.Context, rs *runState) {
	err := w.printer.Connect(ctx)
	if err == nil {
		w.setState(rs, StateIdle)
		return
	}
	if ctx.Err() != nil {
		return
	}

	rs.stats.ConnectFailures++
	event := w.logger.Warn()
	if printer.IsPermanent(err) {
		event = w.logger.Error()
	}
	event.Err(err).
		Dur("retry_in", w.cfg.ReconnectDelay).
		Int("attempt", rs.stats.ConnectFailures).
		Msg("printer connect failed")

	_ = w.wait(ctx, w.cfg.ReconnectDelay, w.wake)
}

func (w *Worker) poll(ctx context.Context, rs *runState) {
	reqCtx, cancel := context.WithTimeout(ctx, w.cfg.RequestTimeout)
	m, err := w.source.NextToPrint(reqCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		rs.stats.PollFailures++
		w.apiEvent(err).Err(err).Msg("failed to fetch next message")
		_ = w.wait(ctx, w.cfg.PollInterval, nil)
		return
	}

	if m == nil {
		w.logger.Debug().Msg("no messages to print")
		_ = w.wait(ctx, w.cfg.PollInterval, nil)
		return
	}

	rs.current = m
	w.setState(rs, StatePrinting)
}

func (w *Worker) print(ctx context.Context, rs *runState) {
	m := rs.current
	w.logger.Info().
		Str("id", m.ID).
		Int64("sequence_number", m.SequenceNumber).
		Str("sender", m.Sender).
		Str("preview", preview(m.Content)).
		Msg("printing message")

	err := w.printer.Print(context.WithoutCancel(ctx), w.formatter.Format(m))
	if err == nil {
		w.setState(rs, StateAcknowledging)
		return
	}

	rs.stats.PrintFailed++
	rs.current = nil
	w.logger.Error().Err(err).
		Str("id", m.ID).
		Int64("sequence_number", m.SequenceNumber).
		Msg("print failed; message left for retry")

	if errors.Is(err, printer.ErrDisconnected) || errors.Is(err, printer.ErrNotConnected) {
		_ = w.printer.Disconnect()
		w.setState(rs, StateDisconnected)
		return
	}

	w.setState(rs, StateIdle)
	_ = w.wait(ctx, w.cfg.PollInterval, nil)
}

func (w *Worker) acknowledge(ctx context.Context, rs *runState) {
	m := rs.current
	rs.current = nil
	rs.stats.Printed++

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.RequestTimeout)
	err := w.source.MarkPrinted(reqCtx, m.ID)
	cancel()

	if err != nil {
		rs.stats.AckFailed++
		w.apiEvent(err).Err(err).
			Str("id", m.ID).
			Int64("sequence_number", m.SequenceNumber).
			Msg("printed but failed to mark printed; message may print again")
	} else {
		w.logger.Info().
			Str("id", m.ID).
			Int64("sequence_number", m.SequenceNumber).
			Msg("message printed")
	}

	w.setState(rs, StateIdle)
	_ = w.wait(ctx, w.cfg.ItemPause, nil)
}

func (w *Worker) shutdown(rs *runState) {
	w.setState(rs, StateShuttingDown)
	if err := w.printer.Disconnect(); err != nil {
		w.logger.Warn().Err(err).Msg("failed to release printer")
	}
	w.logger.Info().
		Int("printed", rs.stats.Printed).
		Int("print_failed", rs.stats.PrintFailed).
		Int("ack_failed", rs.stats.AckFailed).
		Int("connect_failures", rs.stats.ConnectFailures).
		Int("poll_failures", rs.stats.PollFailures).
		Msg("worker stopped")
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	r := []rune(s)
	return fmt.Sprintf("%s...", string(r[:previewLength]))
}
