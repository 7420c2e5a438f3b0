package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       zerolog.Level
	}{
		{env: "production", level: "", want: zerolog.InfoLevel},
		{env: "development", level: "", want: zerolog.DebugLevel},
		{env: "development", level: "error", want: zerolog.ErrorLevel},
		{env: "production", level: "DEBUG", want: zerolog.DebugLevel},
		{env: "production", level: "silent", want: zerolog.Disabled},
		{env: "production", level: "bogus", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.env, tt.level); got != tt.want {
			t.Errorf("ParseLevel(%q, %q) = %v, want %v", tt.env, tt.level, got, tt.want)
		}
	}
}

func TestSetupWithWriterCopiesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", "info", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("definition_id", "abc").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("debug line should be filtered at info level")
	}
	if !strings.Contains(out, `"definition_id":"abc"`) {
		t.Fatalf("expected JSON fields in additional writer, got %q", out)
	}
}
