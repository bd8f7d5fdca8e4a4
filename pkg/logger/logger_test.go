package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audiograb/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug json", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"with file", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "a.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithWriter(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func TestJSONOutputCarriesAppAndFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	log.WithField("run_id", "abc").
		WithFields(map[string]interface{}{"persona": "mobile", "attempt": 2}).
		Info("strategy accepted")

	out := buf.String()
	assert.Contains(t, out, `"app":"audiograb"`)
	assert.Contains(t, out, `"run_id":"abc"`)
	assert.Contains(t, out, `"persona":"mobile"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, "strategy accepted")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	if log.WithError(nil) != log {
		t.Error("WithError(nil) should return the same logger")
	}

	log.WithError(errors.New("connection reset")).Error("fetch failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "info", NoColor: true}, &buf)
	require.NoError(t, err)

	log.InfoWithFields("saved", map[string]interface{}{"file": "a.mp3"})

	out := buf.String()
	assert.Contains(t, out, "| saved")
	assert.Contains(t, out, "file=a.mp3")
	assert.False(t, strings.Contains(out, "\033["), "no ANSI escapes expected")
}

func TestFileOutputIsWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audiograb.log")
	log, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path}, &bytes.Buffer{})
	require.NoError(t, err)

	log.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestDomainHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://example.com", "mobile", 403, 12.5)
	LogCandidate(tl, "structured-media", "https://example.com/a.mp3", "mp3")
	LogDownload(tl, "https://example.com/a.mp3", "/tmp/a.mp3", "standard", 0, errors.New("boom"))

	msgs := tl.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "mobile", msgs[0].Fields["persona"])
	assert.Equal(t, "Candidate found", msgs[1].Message)
	assert.EqualError(t, msgs[2].Error, "boom")
}

func TestTestLoggerDerivedFieldsShareSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("run_id", "r1").WithFields(map[string]interface{}{"page": "p"})

	child.Info("hello")
	tl.Warn("root")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]interface{}{"run_id": "r1", "page": "p"}, msgs[0].Fields)
	assert.Nil(t, msgs[1].Fields)
	assert.True(t, tl.HasMessage("hello"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}
