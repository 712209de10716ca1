// Package config defines the versioned YAML configuration for the bot and
// its validation.  Structural checks run against an embedded JSON schema;
// semantic checks (cross-field rules, canonical phone formats) run after.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/contessasoft/nyati/internal/bot/session"
)

// SpecVersion is the API version string required in every config file.
const SpecVersion = "nyati/v1"

//go:embed schema.json
var schemaJSON string

// Config is the root of the bot configuration file.
type Config struct {
	// APIVersion must be "nyati/v1".
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`

	Bot     Bot     `yaml:"bot" json:"bot"`
	Channel Channel `yaml:"channel" json:"channel"`
	Redis   Redis   `yaml:"redis" json:"redis"`
	History History `yaml:"history,omitempty" json:"history,omitempty"`
	Handoff Handoff `yaml:"handoff" json:"handoff"`
	Listen  Listen  `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// Bot holds business identity settings.
type Bot struct {
	// Owner is the phone number notified of completed forms and escalations.
	Owner string `yaml:"owner" json:"owner"`

	// CountryCode rewrites local-format numbers, e.g. "263".
	CountryCode string `yaml:"countryCode" json:"countryCode"`
}

// Channel selects and configures the messaging transport.
type Channel struct {
	// Driver is "whatsapp" or "matrix".
	Driver string `yaml:"driver" json:"driver"`

	WhatsApp WhatsApp `yaml:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	Matrix   Matrix   `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

// WhatsApp configures the Cloud API transport.  The access token is a secret
// and comes from the environment, not this file.
type WhatsApp struct {
	// PhoneID is the Cloud API phone number ID messages are sent from.
	PhoneID string `yaml:"phoneId" json:"phoneId"`

	// BaseURL overrides the Graph API endpoint; empty uses the default.
	BaseURL string `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
}

// Matrix configures the Matrix transport.  The access token comes from the
// environment.
type Matrix struct {
	Homeserver string `yaml:"homeserver" json:"homeserver"`
	UserID     string `yaml:"userId" json:"userId"`
}

// Redis configures the session and conversation store.  The password comes
// from the environment.
type Redis struct {
	Addr string `yaml:"addr" json:"addr"`
	DB   int    `yaml:"db,omitempty" json:"db,omitempty"`
}

// History configures the message and form archive.
type History struct {
	// Path is the sqlite database file; empty uses "nyati.db".
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Handoff configures live-agent escalation.
type Handoff struct {
	// Agents is the agent phone number pool, in priority order.
	Agents []string `yaml:"agents" json:"agents"`

	// Strategy selects how agents are picked: "first_free" (default) or
	// "random".
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	// DecisionTimeoutSeconds is how long an agent has to accept a request.
	// 0 uses the built-in default.
	DecisionTimeoutSeconds int `yaml:"decisionTimeoutSeconds,omitempty" json:"decisionTimeoutSeconds,omitempty"`
}

// Listen configures the HTTP listeners.
type Listen struct {
	// Addr is the webhook listener address; empty uses ":8080".
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`

	// HealthAddr is the health/admin listener address; empty uses ":8081".
	HealthAddr string `yaml:"healthAddr,omitempty" json:"healthAddr,omitempty"`
}

// DecisionTimeout returns the configured timeout as a duration, 0 when unset.
func (h Handoff) DecisionTimeout() time.Duration {
	return time.Duration(h.DecisionTimeoutSeconds) * time.Second
}

// Parse decodes a YAML configuration document and validates it.  It is the
// canonical entry point for loading configurations.
func Parse(data []byte) (*Config, error) {
	// Structural pass: the document as generic data against the schema.
	// The validator wants encoding/json's types, so the YAML document is
	// round-tripped through JSON first.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	schema, err := jsonschema.CompileString("schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("config schema compile: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// Validate checks the semantic rules the schema cannot express.  It returns
// the first validation error encountered, or nil if the config is valid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}

	if cfg.APIVersion != SpecVersion {
		return fmt.Errorf("apiVersion must be %q, got %q", SpecVersion, cfg.APIVersion)
	}

	if strings.TrimSpace(cfg.Bot.Owner) == "" {
		return fmt.Errorf("bot.owner must not be empty")
	}
	for _, r := range cfg.Bot.CountryCode {
		if r < '0' || r > '9' {
			return fmt.Errorf("bot.countryCode must be digits, got %q", cfg.Bot.CountryCode)
		}
	}

	switch cfg.Channel.Driver {
	case "whatsapp":
		if strings.TrimSpace(cfg.Channel.WhatsApp.PhoneID) == "" {
			return fmt.Errorf("channel.whatsapp.phoneId must not be empty")
		}
	case "matrix":
		if strings.TrimSpace(cfg.Channel.Matrix.Homeserver) == "" {
			return fmt.Errorf("channel.matrix.homeserver must not be empty")
		}
		if !strings.HasPrefix(cfg.Channel.Matrix.UserID, "@") {
			return fmt.Errorf("channel.matrix.userId %q must start with '@'", cfg.Channel.Matrix.UserID)
		}
	default:
		return fmt.Errorf("channel.driver must be \"whatsapp\" or \"matrix\", got %q", cfg.Channel.Driver)
	}

	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}

	if len(cfg.Handoff.Agents) == 0 {
		return fmt.Errorf("handoff.agents must not be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Handoff.Agents))
	for i, a := range cfg.Handoff.Agents {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("handoff.agents[%d]: must not be empty", i)
		}
		key := session.Canonical(a, cfg.Bot.CountryCode)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("handoff.agents[%d]: duplicate agent %q", i, a)
		}
		seen[key] = struct{}{}
	}
	switch cfg.Handoff.Strategy {
	case "", "first_free", "random":
	default:
		return fmt.Errorf("handoff.strategy must be \"first_free\" or \"random\", got %q", cfg.Handoff.Strategy)
	}
	if cfg.Handoff.DecisionTimeoutSeconds < 0 {
		return fmt.Errorf("handoff.decisionTimeoutSeconds must be >= 0")
	}

	return nil
}

// normalize rewrites phone numbers into their canonical form and fills
// defaults, so the rest of the code never sees raw addresses.
func (c *Config) normalize() {
	c.Bot.Owner = session.Canonical(c.Bot.Owner, c.Bot.CountryCode)
	for i, a := range c.Handoff.Agents {
		c.Handoff.Agents[i] = session.Canonical(a, c.Bot.CountryCode)
	}
	if c.History.Path == "" {
		c.History.Path = "nyati.db"
	}
	if c.Listen.Addr == "" {
		c.Listen.Addr = ":8080"
	}
	if c.Listen.HealthAddr == "" {
		c.Listen.HealthAddr = ":8081"
	}
}
