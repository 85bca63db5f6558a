package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval.Duration())
	assert.Equal(t, 30*time.Second, cfg.Worker.ReconnectDelay.Duration())
	assert.Equal(t, 10*time.Second, cfg.Worker.RequestTimeout.Duration())
	assert.Equal(t, 2*time.Second, cfg.Worker.ItemPause.Duration())
	assert.Equal(t, -7*time.Hour, cfg.Printer.UTCOffset.Duration())
	assert.NotEmpty(t, cfg.Worker.WorkerID)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultWorkerIDIsStableAcrossLoads(t *testing.T) {
	first, err := Load("")
	require.NoError(t, err)
	second, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, first.Worker.WorkerID, second.Worker.WorkerID)
	if host, err := os.Hostname(); err == nil && host != "" {
		assert.Equal(t, host, first.Worker.WorkerID)
	}
}

func TestWorkerIDFromEnv(t *testing.T) {
	t.Setenv("RECEIPTD_WORKER_ID", "pi-kitchen")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pi-kitchen", cfg.Worker.WorkerID)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "receiptd.yaml", `
server:
  port: 9090
worker:
  api_base: http://localhost:9090
  vendor_id: "0fe6"
  product_id: "811e"
  poll_interval: 1s
webhooks:
  - name: slack
    url: http://hooks.local/receipt
    events: [message.printed]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Worker.PollInterval.Duration())
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"message.printed"}, cfg.Webhooks[0].Events)
	require.NoError(t, cfg.ValidateWorker())

	vendor, product, err := cfg.Worker.USBIDs()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0fe6), vendor)
	assert.Equal(t, uint16(0x811e), product)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "receiptd.toml", `
[database]
driver = "postgres"
dsn = "postgres://localhost/receipts"

[worker]
reconnect_delay = "45s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 45*time.Second, cfg.Worker.ReconnectDelay.Duration())
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeFile(t, "broken.yaml", "server: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RECEIPTD_PORT", "7000")
	t.Setenv("RECEIPTD_API_BASE", "https://api.example")
	t.Setenv("RECEIPTD_POLL_INTERVAL", "250ms")
	t.Setenv("RECEIPTD_VENDOR_ID", "0x04b8")
	t.Setenv("RECEIPTD_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://api.example", cfg.Worker.APIBase)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval.Duration())
	assert.Equal(t, "0x04b8", cfg.Worker.VendorID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestEnvOverrideInvalidDuration(t *testing.T) {
	t.Setenv("RECEIPTD_RECONNECT_DELAY", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"driver", func(c *Config) { c.Database.Driver = "dynamo" }},
		{"postgres dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"poll interval", func(c *Config) { c.Worker.PollInterval = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"recent limit", func(c *Config) { c.Server.MaxRecentLimit = 1 }},
		{"webhook url", func(c *Config) { c.Webhooks = []WebhookConfig{{Events: []string{"message.created"}}} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWorkerRequiresUSBIDs(t *testing.T) {
	cfg := Defaults()
	cfg.Worker.APIBase = "http://localhost:8080"
	assert.ErrorContains(t, cfg.ValidateWorker(), "vendor_id")

	cfg.Worker.VendorID = "0000"
	cfg.Worker.ProductID = "811e"
	assert.ErrorContains(t, cfg.ValidateWorker(), "vendor_id")

	cfg.Worker.VendorID = "zzzz"
	assert.Error(t, cfg.ValidateWorker())

	cfg.Worker.VendorID = "0fe6"
	assert.NoError(t, cfg.ValidateWorker())

	cfg.Worker.APIBase = ""
	assert.ErrorContains(t, cfg.ValidateWorker(), "api_base")
}
