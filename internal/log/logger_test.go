package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		trace bool
		debug bool
		info  bool
	}{
		{"trace", true, true, true},
		{"debug", false, true, true},
		{"info", false, false, true},
		{"WARN", false, false, false},
		{"error", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := newLogger(&LoggerConfig{Level: tt.level}, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tt.trace, l.IsTraceEnabled())
			assert.Equal(t, tt.debug, l.IsDebugEnabled())
			assert.Equal(t, tt.info, l.IsInfoEnabled())
		})
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := newLogger(&LoggerConfig{Level: "verbose"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLoggerNilConfigUsesDefaults(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(nil, &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[info] shown")
}

func TestLoggerWritesPatternAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&LoggerConfig{
		Level:   "debug",
		Pattern: "[%level] %msg {%field}%n",
	}, &buf)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"seed": 42, "iface": "eth0"}).Debug("request sent")
	assert.Equal(t, "[debug] request sent {iface=eth0,seed=42}\n", buf.String())
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&LoggerConfig{Level: "info", Pattern: "%msg %field"}, &buf)
	require.NoError(t, err)

	l.WithError(errors.New("boom")).WithField("op", "+").Warn("exchange failed")
	assert.Equal(t, "exchange failed error=boom,op=+\n", buf.String())
}

func TestLoggerWithFileAppender(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "p4calc.log")

	l, err := newLogger(&LoggerConfig{
		Level: "info",
		File: FileAppenderOpt{
			Enabled:    true,
			Filename:   logPath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}, &bytes.Buffer{})
	require.NoError(t, err)

	l.Info("written to file")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestLoggerFileAppenderRequiresFilename(t *testing.T) {
	_, err := newLogger(&LoggerConfig{Level: "info", File: FileAppenderOpt{Enabled: true}}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFormatterCallerAndFunc(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&LoggerConfig{Level: "info", Pattern: "%caller %func"}, &buf)
	require.NoError(t, err)

	l.Info("x")
	out := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(out, "log/logger_adapter.go:"), "got %q", out)
}

func TestFormatterTime(t *testing.T) {
	f := &formatter{pattern: "%time %goroutine", time: "2006-01-02"}
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "2024-05-06 "))
	assert.NotContains(t, string(out), "%goroutine")
}

func TestMultiWriterKeepsWritingOnError(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)
	assert.Equal(t, 3, m.Len())

	n, err := m.Write([]byte("line"))
	assert.Equal(t, 4, n)
	assert.Error(t, err)
	assert.Equal(t, "line", a.String())
	assert.Equal(t, "line", b.String())
}

func TestGetLoggerBeforeInit(t *testing.T) {
	assert.NotNil(t, GetLogger())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("write failed") }
