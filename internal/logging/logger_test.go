package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWithWriterHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "event_key", "gift:1")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["event_key"] != "gift:1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithFileWritesToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "giftstream.log")
	logger := NewWithFile("info", path)
	logger.Info("ledger posted")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("ledger posted")) {
		t.Fatalf("log file missing entry: %s", data)
	}
}
