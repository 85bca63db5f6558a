package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/receiptme/receiptd/internal/core"
)

const maxErrorBody = 4 << 10

// Client talks to the message API over HTTP. Every request is bounded by the
// configured timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NextToPrint returns the oldest unprinted message, or nil when the queue is
// empty. A non-empty workerID asks the server to claim the message for it.
func (c *Client) NextToPrint(ctx context.Context, workerID string) (*core.Message, error) {
	query := url.Values{}
	if workerID != "" {
		query.Set("worker_id", workerID)
	}

	var resp struct {
		Message *wireMessage `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/printer/next-to-print", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, nil
	}
	return resp.Message.toMessage(), nil
}

func (c *Client) MarkPrinted(ctx context.Context, id string) error {
	body := map[string]string{"id": id}
	return c.do(ctx, http.MethodPost, "/printer/mark-printed", nil, body, nil)
}

func (c *Client) CreateMessage(ctx context.Context, sender, content string) (*core.Message, error) {
	body := map[string]string{"sender": sender, "content": content}
	var resp wireMessage
	if err := c.do(ctx, http.MethodPost, "/message", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toMessage(), nil
}

func (c *Client) ListRecent(ctx context.Context, limit int) ([]*core.Message, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/recent", query, nil, &resp); err != nil {
		return nil, err
	}

	messages := make([]*core.Message, 0, len(resp.Messages))
	for i := range resp.Messages {
		messages = append(messages, resp.Messages[i].toMessage())
	}
	return messages, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
