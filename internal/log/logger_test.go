// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureSetsServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Service: "vidsync", Version: "test-1"})

	Base().Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "vidsync" {
		t.Errorf("service = %v, want vidsync", entry["service"])
	}
	if entry["version"] != "test-1" {
		t.Errorf("version = %v, want test-1", entry["version"])
	}
}

func TestConfigureDefaultsService(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	Base().Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "vidsync" {
		t.Errorf("service = %v, want default vidsync", entry["service"])
	}
}

func TestSetLevelInvalid(t *testing.T) {
	Configure(Config{Output: &bytes.Buffer{}})
	if err := SetLevel(context.Background(), "tester", nil, "not-a-level"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestSetLevelUpdatesGlobal(t *testing.T) {
	Configure(Config{Output: &bytes.Buffer{}})
	if err := SetLevel(context.Background(), "tester", []string{"admin"}, "warn"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("GlobalLevel() = %v, want warn", zerolog.GlobalLevel())
	}
	// Restore for other tests.
	Configure(Config{Output: &bytes.Buffer{}})
}

func TestAuditInfoBypassesLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	if err := SetLevel(context.Background(), "tester", nil, "error"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	// SetLevel writes its own audit line; drop it so buf holds only the
	// AuditInfo entry under test.
	buf.Reset()

	AuditInfo(context.Background(), "source.added", "new source registered", map[string]any{
		FieldSourceKind: "favourite",
	})

	if buf.Len() == 0 {
		t.Fatal("expected audit log to be written despite error-level filter")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse audit log output: %v", err)
	}
	if entry["component"] != "audit" {
		t.Errorf("component = %v, want audit", entry["component"])
	}
	if entry["event"] != "source.added" {
		t.Errorf("event = %v, want source.added", entry["event"])
	}
}

func TestWithComponent(t *testing.T) {
	Configure(Config{Output: &bytes.Buffer{}})
	l := WithComponent("downloadpool")
	if l.GetLevel() > zerolog.PanicLevel {
		t.Error("expected valid logger from WithComponent")
	}
}
