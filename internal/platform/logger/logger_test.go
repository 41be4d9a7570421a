package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	l := Nop()
	out := l.sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"neo4j_password", "hunter2",
		"max_tokens", 4096,
		"model", "gpt-oss-120b",
	})
	if len(out) != 8 {
		t.Fatalf("len=%d", len(out))
	}
	if out[1] != "[REDACTED]" || out[3] != "[REDACTED]" {
		t.Fatalf("secrets not redacted: %v", out)
	}
	if out[5] != 4096 {
		t.Fatalf("max_tokens should pass through, got %v", out[5])
	}
	if out[7] != "gpt-oss-120b" {
		t.Fatalf("model=%v", out[7])
	}
}

func TestSanitizeKVsHashesPatientIDs(t *testing.T) {
	l := &Logger{SugaredLogger: Nop().SugaredLogger, redact: true, hashSalt: "salt"}
	out := l.sanitizeKVs([]interface{}{"patient_id", "P-0042"})
	got, _ := out[1].(string)
	if len(got) != len("hash:")+12 || got[:5] != "hash:" {
		t.Fatalf("unexpected hash: %q", got)
	}
	again := l.sanitizeKVs([]interface{}{"patient_id", "P-0042"})
	if again[1] != got {
		t.Fatalf("hash not stable: %v vs %v", again[1], got)
	}
}

func TestSanitizeKVsDisabled(t *testing.T) {
	l := &Logger{SugaredLogger: Nop().SugaredLogger, redact: false}
	out := l.sanitizeKVs([]interface{}{"api_key", "sk-123"})
	if out[1] != "sk-123" {
		t.Fatalf("expected passthrough when redaction disabled, got %v", out[1])
	}
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := Nop().sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected: %v", out)
	}
}
