package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"touchline/internal/domain"
)

// Config models touchline.yml.
type Config struct {
	Server struct {
		Addr              string        `yaml:"addr"`
		BasePath          string        `yaml:"base_path"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	} `yaml:"server"`
	Simulation struct {
		BaseURL         string        `yaml:"base_url"`
		Timeout         time.Duration `yaml:"timeout"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"simulation"`
	Bridge struct {
		TeamSlug                 string `yaml:"team_slug"`
		AgentLogCapacity         int    `yaml:"agent_log_capacity"`
		RecentKnowledgeLimit     int    `yaml:"recent_knowledge_limit"`
		RecentEventsLimit        int    `yaml:"recent_events_limit"`
		ActionQueueLimit         int    `yaml:"action_queue_limit"`
		SingleActiveConversation bool   `yaml:"single_active_conversation"`
		StreamBuffer             int    `yaml:"stream_buffer"`
	} `yaml:"bridge"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Defaults Defaults        `yaml:"defaults"`
}

// WebhookConfig is one outbound receiver of broadcast events. An empty
// Events list forwards everything.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Defaults is the fallback table used when the simulation omits a value or
// cannot be reached.
type Defaults struct {
	GameDate  domain.GameDate   `yaml:"game_date"`
	Team      domain.TeamState  `yaml:"team"`
	Character CharacterDefaults `yaml:"character"`
}

type CharacterDefaults struct {
	Role           string             `yaml:"role"`
	Archetype      string             `yaml:"archetype"`
	Personality    domain.Personality `yaml:"personality"`
	Mood           int                `yaml:"mood"`
	TrustInManager int                `yaml:"trust_in_manager"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return errors.New("config.server.base_path must start with /")
	}
	if c.Server.HeartbeatInterval <= 0 {
		return errors.New("config.server.heartbeat_interval must be positive")
	}
	if err := validateURL("config.simulation.base_url", c.Simulation.BaseURL); err != nil {
		return err
	}
	if c.Simulation.Timeout <= 0 {
		return errors.New("config.simulation.timeout must be positive")
	}
	if c.Simulation.RefreshInterval < 0 {
		return errors.New("config.simulation.refresh_interval cannot be negative")
	}
	if strings.TrimSpace(c.Bridge.TeamSlug) == "" {
		return errors.New("config.bridge.team_slug is required")
	}
	if c.Bridge.AgentLogCapacity <= 0 {
		return errors.New("config.bridge.agent_log_capacity must be positive")
	}
	if c.Bridge.RecentKnowledgeLimit <= 0 {
		return errors.New("config.bridge.recent_knowledge_limit must be positive")
	}
	if c.Bridge.RecentEventsLimit <= 0 {
		return errors.New("config.bridge.recent_events_limit must be positive")
	}
	if c.Bridge.ActionQueueLimit < 0 {
		return errors.New("config.bridge.action_queue_limit cannot be negative")
	}
	if c.Bridge.StreamBuffer <= 0 {
		return errors.New("config.bridge.stream_buffer must be positive")
	}
	if !domain.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("config.log.level must be one of %s", strings.Join(logLevels, ", "))
	}
	if !domain.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("config.log.format must be one of %s", strings.Join(logFormats, ", "))
	}
	for i, hook := range c.Webhooks {
		if err := validateURL(fmt.Sprintf("config.webhooks[%d].url", i), hook.URL); err != nil {
			return err
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds cannot be negative", i)
		}
	}
	return c.Defaults.validate()
}

func (d Defaults) validate() error {
	if d.GameDate.Month < 1 || d.GameDate.Month > 12 || d.GameDate.Day < 1 || d.GameDate.Day > 31 {
		return fmt.Errorf("config.defaults.game_date %s is not a valid date", d.GameDate)
	}
	if strings.TrimSpace(d.Team.ID) == "" || strings.TrimSpace(d.Team.Name) == "" {
		return errors.New("config.defaults.team requires id and name")
	}
	if !domain.Contains(domain.CharacterRoles, d.Character.Role) {
		return fmt.Errorf("config.defaults.character.role must be one of %s", strings.Join(domain.CharacterRoles, ", "))
	}
	if d.Character.Archetype != "" {
		if _, ok := domain.PersonalityFromArchetype(d.Character.Archetype); !ok {
			return fmt.Errorf("config.defaults.character.archetype %s is unknown", d.Character.Archetype)
		}
	}
	p := d.Character.Personality
	for name, v := range map[string]int{
		"ambition":         p.Ambition,
		"loyalty":          p.Loyalty,
		"temperament":      p.Temperament,
		"professionalism":  p.Professionalism,
		"confidence":       p.Confidence,
		"greed":            p.Greed,
		"mood":             d.Character.Mood,
		"trust_in_manager": d.Character.TrustInManager,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("config.defaults.character %s must be between 0 and 100", name)
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	return nil
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional reads path when it is set and exists; otherwise it returns the defaults.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := FromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `server:
  addr: 127.0.0.1:3001
  base_path: /api
  heartbeat_interval: 30s

simulation:
  base_url: http://localhost:18000
  timeout: 5s
  # 0 refreshes only when the agent observes.
  refresh_interval: 0s

bridge:
  team_slug: juventus
  agent_log_capacity: 100
  recent_knowledge_limit: 10
  recent_events_limit: 10
  # 0 leaves the action queue unbounded.
  action_queue_limit: 0
  single_active_conversation: false
  stream_buffer: 64

log:
  level: info
  format: json

webhooks: []

defaults:
  game_date:
    year: 2024
    month: 9
    day: 15
    weekday: Sunday
  team:
    id: juventus
    name: Juventus
    league_position: 3
    league_name: Serie A
    recent_form: WWLDW
    finances:
      balance: 50000000
      wage_bill: 2000000
      transfer_budget: 20000000
    board_confidence: 72
    board_expectations: Top 4 finish
    team_morale: 68
  character:
    role: player
    # A known archetype replaces the personality below.
    archetype: ""
    personality:
      ambition: 85
      loyalty: 40
      temperament: 30
      professionalism: 60
      confidence: 75
      greed: 50
    mood: 35
    trust_in_manager: 40
`
