package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestDebugf(t *testing.T) {
	defer SetDebugLogger(nil)

	var buf bytes.Buffer
	Debugf("dropped %d", 1)
	if DebugEnabled() {
		t.Fatal("debug logging should be disabled by default")
	}

	SetDebugLogger(&buf)
	if !DebugEnabled() {
		t.Fatal("debug logging should be enabled")
	}
	Debugf("window=%d", 42)
	if !strings.Contains(buf.String(), "window=42") {
		t.Errorf("debug output %q missing message", buf.String())
	}

	SetDebugLogger(nil)
	buf.Reset()
	Debugf("window=%d", 43)
	if buf.Len() != 0 {
		t.Errorf("expected no output after disabling, got %q", buf.String())
	}
}
