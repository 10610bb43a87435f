package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestMessages are JSON payloads used as broker messages in tests.
var TestMessages = []string{
	`{"id": 1, "value": "foo", "timestamp": 1234567890, "count": 42}`,
	`{"id": 2, "value": "bar", "timestamp": 1234567891, "count": 43}`,
	`{"id": 3, "value": "baz", "timestamp": 1234567892, "count": 44}`,
	`{"id": 4, "value": "qux", "timestamp": 1234567893, "count": 45}`,
	`{"id": 5, "value": "quux", "timestamp": 1234567894, "count": 46}`,
}

// TestAPIResponse is a typical data API body.
const TestAPIResponse = `{"station": "KSEA", "readings": [{"t": 1234567890, "temp_c": 11.5}, {"t": 1234567950, "temp_c": 11.7}]}`

// Azurite development account. The key is the public emulator key.
const (
	AzuriteAccount = "devstoreaccount1"
	AzuriteKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// Config file fixtures keyed by file name without extension.
const (
	KafkaConfigJSON = `{
  "bootstrap_servers": "localhost:9092",
  "group_id": "exchange-test",
  "message_timeout_ms": 5000,
  "connection_max_idle_ms": 540000
}`

	AzureConfigJSON = `{
  "storage_account_name": "devstoreaccount1",
  "storage_account_key": "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==",
  "storage_container": "exchange-test",
  "storage_blob_name": "messages.json"
}`

	NATSConfigJSON = `{
  "urls": ["nats://localhost:4222"]
}`
)

// APIConfigJSON returns an api_config.json document with one entry named
// name pointing at url.
func APIConfigJSON(name, url, key string) string {
	return `{"` + name + `": {"url": "` + url + `", "apikey": "` + key + `", "description": "test api", "category": "test"}}`
}

// WriteConfigDir writes the given files (name without .json -> content) into
// a fresh temporary directory and returns its path.
func WriteConfigDir(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}
