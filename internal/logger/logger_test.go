package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Debug("debug message")
	Info("info message")
	Warn("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Errorf("Expected debug message to be filtered, got: %s", out)
	}
	if strings.Contains(out, "info message") {
		t.Errorf("Expected info message to be filtered, got: %s", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("Expected warn message in output, got: %s", out)
	}
}

func TestSetLevel_InvalidIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("VERBOSE")

	if got := GetLevel(); got != LevelInfo {
		t.Errorf("GetLevel() = %v, want LevelInfo after invalid SetLevel", got)
	}
}

func TestTextFormat_IncludesFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("request completed", "status", 503, "path", "/legacy")

	out := buf.String()
	for _, want := range []string{"request completed", "status=503", "path=/legacy"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got: %s", want, out)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)
	defer InitWithWriter(&buf, "INFO", "text", false)

	Info("snapshot published", "revision", 3)

	out := buf.String()
	if !strings.Contains(out, `"msg":"snapshot published"`) {
		t.Errorf("Expected JSON msg field, got: %s", out)
	}
	if !strings.Contains(out, `"revision":3`) {
		t.Errorf("Expected JSON revision field, got: %s", out)
	}
}

func TestContextFields_Prepended(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	lc := NewLogContext("10.0.0.1").WithRequest("POST", "/api/legacy/thing")
	ctx := WithContext(t.Context(), lc)

	InfoCtx(ctx, "forwarded to legacy adapter")

	out := buf.String()
	for _, want := range []string{"client_ip=10.0.0.1", "method=POST", "path=/api/legacy/thing"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got: %s", want, out)
		}
	}
}
