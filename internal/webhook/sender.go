package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/receiptme/receiptd/internal/config"
	"github.com/receiptme/receiptd/internal/core"
	"github.com/receiptme/receiptd/internal/logging"
)

type Event string

const (
	EventMessageCreated Event = "message.created"
	EventMessagePrinted Event = "message.printed"
)

type Payload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Signature string    `json:"signature,omitempty"`
}

type MessageEventData struct {
	ID             string     `json:"id"`
	Sender         string     `json:"sender"`
	SequenceNumber int64      `json:"sequence_number"`
	CreatedAt      time.Time  `json:"created_at"`
	PrintedAt      *time.Time `json:"printed_at,omitempty"`
}

type Options struct {
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

type task struct {
	hook    config.WebhookConfig
	payload *Payload
	attempt int
}

// Sender delivers message events to the configured webhooks from a small
// worker pool. Delivery is best effort: a full queue drops the event.
type Sender struct {
	hooks      []config.WebhookConfig
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	workers    int
	queue      chan *task
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

func NewSender(hooks []config.WebhookConfig, opts Options, logger zerolog.Logger) *Sender {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 3
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}

	return &Sender{
		hooks:      hooks,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retryCount: opts.RetryCount,
		retryDelay: opts.RetryDelay,
		workers:    opts.WorkerCount,
		queue:      make(chan *task, opts.QueueSize),
		stopCh:     make(chan struct{}),
		logger:     logging.Component(logger, "webhook"),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Sender) MessageCreated(m *core.Message) {
	s.enqueue(EventMessageCreated, messageData(m))
}

func (s *Sender) MessagePrinted(m *core.Message) {
	s.enqueue(EventMessagePrinted, messageData(m))
}

func messageData(m *core.Message) *MessageEventData {
	return &MessageEventData{
		ID:             m.ID,
		Sender:         m.Sender,
		SequenceNumber: m.SequenceNumber,
		CreatedAt:      m.CreatedAt,
		PrintedAt:      m.PrintedAt,
	}
}

func (s *Sender) enqueue(event Event, data any) {
	for _, hook := range s.hooks {
		if !subscribed(hook, event) {
			continue
		}

		t := &task{
			hook: hook,
			payload: &Payload{
				Event:     string(event),
				Timestamp: time.Now().UTC(),
				Data:      data,
			},
		}

		select {
		case s.queue <- t:
		default:
			s.logger.Warn().Str("webhook", hook.Name).Str("event", string(event)).Msg("queue full, dropping webhook")
		}
	}
}

func subscribed(hook config.WebhookConfig, event Event) bool {
	for _, e := range hook.Events {
		if e == "*" || Event(e) == event {
			return true
		}
	}
	return false
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.logger.Error().Err(err).
					Int("worker", id).
					Str("webhook", t.hook.Name).
					Str("event", t.payload.Event).
					Int("attempts", t.attempt).
					Msg("failed to deliver webhook")
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(t.hook, t.payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isClientError(err) {
			s.logger.Warn().Err(err).Str("webhook", t.hook.Name).Msg("client error, not retrying")
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			s.logger.Debug().Err(err).
				Str("webhook", t.hook.Name).
				Int("attempt", t.attempt).
				Dur("backoff", backoff).
				Msg("retrying webhook")

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested: %w", lastErr)
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http error: %d", e.code)
}

func (s *Sender) sendRequest(hook config.WebhookConfig, payload *Payload) error {
	data, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if hook.Secret != "" {
		payload.Signature = Sign(data, hook.Secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", payload.Event)
	if payload.Signature != "" {
		req.Header.Set("X-Webhook-Signature", payload.Signature)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of the JSON-encoded event data.
func Sign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}
