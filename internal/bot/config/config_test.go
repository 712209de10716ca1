package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/contessasoft/nyati/internal/bot/config"
)

const minimalValid = `
apiVersion: nyati/v1
bot:
  owner: "263700000000"
  countryCode: "263"
channel:
  driver: whatsapp
  whatsapp:
    phoneId: "1234567890"
redis:
  addr: localhost:6379
handoff:
  agents:
    - "263772200001"
`

const fullValid = `
apiVersion: nyati/v1
bot:
  owner: "263700000000"
  countryCode: "263"

channel:
  driver: matrix
  matrix:
    homeserver: https://matrix.example.com
    userId: "@nyati:example.com"

redis:
  addr: localhost:6379
  db: 2

history:
  path: /var/lib/nyati/nyati.db

handoff:
  agents:
    - "263772200001"
    - "0772200002"
  strategy: random
  decisionTimeoutSeconds: 120

listen:
  addr: ":9000"
  healthAddr: ":9001"
`

func TestParseMinimal(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalValid))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Channel.Driver != "whatsapp" {
		t.Errorf("driver = %q", cfg.Channel.Driver)
	}
	if cfg.History.Path != "nyati.db" {
		t.Errorf("default history path = %q", cfg.History.Path)
	}
	if cfg.Listen.Addr != ":8080" || cfg.Listen.HealthAddr != ":8081" {
		t.Errorf("default listen = %+v", cfg.Listen)
	}
	if cfg.Handoff.DecisionTimeout() != 0 {
		t.Errorf("decision timeout = %v, want 0 (unset)", cfg.Handoff.DecisionTimeout())
	}
}

func TestParseFull(t *testing.T) {
	cfg, err := config.Parse([]byte(fullValid))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Handoff.DecisionTimeout() != 2*time.Minute {
		t.Errorf("decision timeout = %v, want 2m", cfg.Handoff.DecisionTimeout())
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("redis db = %d, want 2", cfg.Redis.DB)
	}
}

func TestParseCanonicalizesAgents(t *testing.T) {
	cfg, err := config.Parse([]byte(fullValid))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.Handoff.Agents[1]; got != "263772200002" {
		t.Errorf("agent[1] = %q, want local format rewritten to 263772200002", got)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name    string
		mangle  func(string) string
		wantErr string
	}{
		{
			name:    "wrong api version",
			mangle:  func(s string) string { return strings.Replace(s, "nyati/v1", "nyati/v2", 1) },
			wantErr: "apiVersion",
		},
		{
			name:    "unknown driver",
			mangle:  func(s string) string { return strings.Replace(s, "driver: whatsapp", "driver: telegram", 1) },
			wantErr: "schema",
		},
		{
			name: "empty agent pool",
			mangle: func(s string) string {
				return strings.Replace(s, "  agents:\n    - \"263772200001\"\n", "  agents: []\n", 1)
			},
			wantErr: "schema",
		},
		{
			name:    "missing redis addr",
			mangle:  func(s string) string { return strings.Replace(s, "  addr: localhost:6379\n", "", 1) },
			wantErr: "schema",
		},
		{
			name:    "unknown top-level key",
			mangle:  func(s string) string { return s + "\nextra: true\n" },
			wantErr: "schema",
		},
		{
			name:    "non-digit country code",
			mangle:  func(s string) string { return strings.Replace(s, `countryCode: "263"`, `countryCode: "+263"`, 1) },
			wantErr: "schema",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.mangle(minimalValid)))
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDuplicateAgents(t *testing.T) {
	doc := strings.Replace(minimalValid,
		"  agents:\n    - \"263772200001\"\n",
		"  agents:\n    - \"263772200001\"\n    - \"0772200001\"\n", 1)
	_, err := config.Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("err = %v, want duplicate agent error", err)
	}
}

func TestValidateMatrixUserID(t *testing.T) {
	doc := strings.Replace(fullValid, `userId: "@nyati:example.com"`, `userId: "nyati"`, 1)
	_, err := config.Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "userId") {
		t.Errorf("err = %v, want userId error", err)
	}
}
