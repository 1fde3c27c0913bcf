package common

import (
	"bytes"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DEBUG},
		{"", logger.INFO},
		{"INFO", logger.INFO},
		{"warn", logger.WARNING},
		{"warning", logger.WARNING},
		{"error", logger.ERROR},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestCreateLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := LogOutput
	LogOutput = &buf
	t.Cleanup(func() { LogOutput = prev })

	l := CreateLogger("cache")
	l.Debugf("hidden %d", 1)
	l.Infof("visible %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "INFO  | cache           | visible 2")

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("dropped")
	l.Errorf("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "ERROR | cache")

	assert.PanicsWithValue(t, "boom", func() { l.Panicf("boom") })
}
