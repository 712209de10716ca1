package redact_test

import (
	"testing"

	"github.com/contessasoft/nyati/common/redact"
)

func TestString(t *testing.T) {
	got := redact.String("token=abcd1234 sent", "abcd1234")
	if got != "token=[REDACTED] sent" {
		t.Errorf("String = %q", got)
	}
}

func TestStringSkipsShortValues(t *testing.T) {
	got := redact.String("db=2 addr=x", "2")
	if got != "db=2 addr=x" {
		t.Errorf("short value was redacted: %q", got)
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"263772123456", "26377.....56"},
		{"263700000000", "26370.....00"},
		{"12345678", "12345.78"},
		{"1234567", "1234567"},
		{"!room:example.com", "!room:example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := redact.Phone(tt.in); got != tt.want {
			t.Errorf("Phone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
