package testutils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
)

// NewTestLogger returns a debug-level logger whose output is attached to the
// test log only when the test fails.
func NewTestLogger(t testing.TB) *logrus.Logger {
	t.Helper()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(&syncWriter{buf: &buf})
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("captured log:\n%s", logger.Out.(*syncWriter).String())
		}
	})
	return logger
}
