package environment_test

import (
	"testing"

	"github.com/contessasoft/nyati/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("NYATI_TEST_VAR", "set")
	if got := environment.StringOr("NYATI_TEST_VAR", "fallback"); got != "set" {
		t.Errorf("StringOr = %q, want set", got)
	}
	if got := environment.StringOr("NYATI_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("StringOr = %q, want fallback", got)
	}
	t.Setenv("NYATI_TEST_EMPTY", "")
	if got := environment.StringOr("NYATI_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("StringOr on empty = %q, want fallback", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("NYATI_TEST_REQ", "value")
	v, err := environment.RequiredString("NYATI_TEST_REQ")
	if err != nil || v != "value" {
		t.Errorf("RequiredString = %q, %v", v, err)
	}
	if _, err := environment.RequiredString("NYATI_TEST_MISSING"); err == nil {
		t.Error("expected error for missing variable")
	}
}
