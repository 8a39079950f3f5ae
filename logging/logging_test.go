package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("FiltersByLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := New(Config{Level: "warn"}, &buf)
		require.NoError(t, err)
		defer closer.Close()

		logger.Info("hidden")
		logger.Warn("shown", "pair", "0xabc")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "shown", record["msg"])
		assert.Equal(t, "0xabc", record["pair"])
	})

	t.Run("WritesFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "amm.log")
		var buf bytes.Buffer
		logger, closer, err := New(Config{File: path}, &buf)
		require.NoError(t, err)

		logger.Info("to both")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to both")
		assert.Contains(t, buf.String(), "to both")
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, _, err := New(Config{Level: "loud"}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}
