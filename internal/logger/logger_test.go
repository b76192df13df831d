package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("cybercalc", "debug", &buf)
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	log.WithField("key", "cybercalc_users").Warn("recovered corrupt value")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["service"] != "cybercalc" || line["message"] != "recovered corrupt value" || line["level"] != "warning" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	log := NewWithOutput("cybercalc", "chatty", &bytes.Buffer{})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}
