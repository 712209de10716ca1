// Package environment provides helpers for loading configuration from
// environment variables.
//
// All helpers follow a consistent pattern: they read an environment variable
// and return either the value or a default. Required variables return an
// error rather than calling os.Exit, keeping business logic out of library
// code.
package environment

import (
	"fmt"
	"os"
)

// StringOr returns the value of the named environment variable, or
// defaultValue if the variable is unset or empty.
func StringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// RequiredString returns the value of the named environment variable or an
// error if it is unset or empty.
func RequiredString(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("required environment variable %q is not set", name)
	}
	return v, nil
}
