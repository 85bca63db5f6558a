package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptme/receiptd/internal/core"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receiptd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestConfigCheck(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
webhooks:
  - name: ops
    url: https://hooks.example.test/receipts
    secret: topsecret
    events: ["message.created"]
`)

	out, err := runCLI(t, "--config", path, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 9090")
	assert.Contains(t, out, "poll_interval: 5s")
	assert.Contains(t, out, "configuration OK")
	assert.NotContains(t, out, "topsecret")
}

func TestConfigCheckRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 70000\n")
	_, err := runCLI(t, "--config", path, "config", "check")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestConfigCheckWorkerNeedsUSBIDs(t *testing.T) {
	path := writeConfig(t, "worker:\n  api_base: http://localhost:8080\n")
	_, err := runCLI(t, "--config", path, "config", "check", "--worker")
	assert.Error(t, err)
}

func TestWorkerRefusesToStartWithoutUSBIDs(t *testing.T) {
	path := writeConfig(t, "worker:\n  api_base: http://localhost:8080\n  vendor_id: \"0000\"\n  product_id: \"0000\"\n")
	_, err := runCLI(t, "--config", path, "worker")
	assert.ErrorContains(t, err, "invalid worker configuration")
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	_, err := runCLI(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "config", "check")
	assert.ErrorContains(t, err, "load env file")
}

func TestMessagesRecent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/recent", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]any{
			{"id": "b", "sender": "Bob", "content": "Second", "sequence_number": 2, "created_at": "2025-03-14T18:31:00Z", "printed": false},
			{"id": "a", "sender": "Ann", "content": "Hi", "sequence_number": 1, "created_at": "2025-03-14T18:30:00Z", "printed": true, "printed_at": "2025-03-14T18:32:00Z"},
		}})
	}))
	defer srv.Close()

	path := writeConfig(t, "")
	out, err := runCLI(t, "--config", path, "messages", "recent", "--api-base", srv.URL, "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "#002")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "#001")
}

func TestMessagesSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "abc", "sender": got["sender"], "content": got["content"],
			"sequence_number": 12, "created_at": "2025-03-14T18:30:00Z", "printed": false, "printed_at": nil,
		})
	}))
	defer srv.Close()

	path := writeConfig(t, "")
	out, err := runCLI(t, "--config", path, "messages", "send", "--api-base", srv.URL, "--sender", " Ann ", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sender": "Ann", "content": "hello there"}, got)
	assert.Contains(t, out, "Queued message #012 (abc)")
}

func TestMessagesSendValidatesLocally(t *testing.T) {
	path := writeConfig(t, "")
	_, err := runCLI(t, "--config", path, "messages", "send", "--api-base", "http://127.0.0.1:1", "--sender", "", "--content", "hi")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRenderMessages(t *testing.T) {
	printedAt := time.Date(2025, 3, 14, 18, 32, 0, 0, time.UTC)
	out := renderMessages([]*core.Message{
		{SequenceNumber: 3, Sender: "Ann", Content: "Hi", Printed: true, PrintedAt: &printedAt},
		{SequenceNumber: 4, Sender: "Bob", Content: "Yo"},
	})
	assert.Contains(t, out, "#003")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "pending")
}

func TestResolveAPIBase(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n")
	ctx := newCommandContext(&path, new(string))
	cfg, err := ctx.ensureConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", resolveAPIBase(cfg, ""))
	assert.Equal(t, "http://example.test", resolveAPIBase(cfg, " http://example.test "))
	cfg.Worker.APIBase = "http://pi.example.test"
	assert.Equal(t, "http://pi.example.test", resolveAPIBase(cfg, ""))
}
