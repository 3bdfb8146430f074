package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { Init(Config{}) })

	t.Run("JSONOutput", func(t *testing.T) {
		var buf bytes.Buffer
		Init(Config{Level: "info", Format: "json", Output: &buf})

		Info().Str("component", "detector").Msg("cache hit")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
		}
		if entry["message"] != "cache hit" {
			t.Errorf("Expected message 'cache hit', got %v", entry["message"])
		}
		if entry["component"] != "detector" {
			t.Errorf("Expected component field, got %v", entry["component"])
		}
	})

	t.Run("LevelFilter", func(t *testing.T) {
		var buf bytes.Buffer
		Init(Config{Level: "warn", Output: &buf})

		Info().Msg("hidden")
		Warn().Msg("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Error("Expected info message to be filtered at warn level")
		}
		if !strings.Contains(out, "shown") {
			t.Error("Expected warn message to be written")
		}
	})
}
