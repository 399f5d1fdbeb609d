package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/bzdash/go/internal/sessions"
)

// Push transports.
const (
	PushWebSocket = "websocket"
	PushNATS      = "nats"
)

// Config holds all configuration for the dashboard client.
type Config struct {
	BaseURL       string `yaml:"base_url"`
	APIPrefix     string `yaml:"api_prefix"`
	StreamPath    string `yaml:"stream_path"`
	SessionCookie string `yaml:"session_cookie"`
	ListenAddr    string `yaml:"listen_addr"`
	LogLevel      string `yaml:"log_level"`

	// Realtime enables the secondary push channel.
	Realtime bool       `yaml:"realtime"`
	Push     PushConfig `yaml:"push"`

	Timing TimingConfig `yaml:"timing"`

	Filter         sessions.Filter `yaml:"filter"`
	Sort           string          `yaml:"sort"`
	HistoryMinutes int             `yaml:"history_minutes"`
}

// PushConfig selects and configures the secondary push channel.
type PushConfig struct {
	Transport     string        `yaml:"transport"`
	URL           string        `yaml:"url"`
	NATSURL       string        `yaml:"nats_url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// TimingConfig holds every interval and delay.
type TimingConfig struct {
	PushDelay             time.Duration `yaml:"push_delay"`
	StreamReconnect       time.Duration `yaml:"stream_reconnect"`
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
	InviteInterval        time.Duration `yaml:"invite_interval"`
	InviteCooldown        time.Duration `yaml:"invite_cooldown"`
	StatusTTL             time.Duration `yaml:"status_ttl"`
	Warmup                time.Duration `yaml:"warmup"`
	CoinTossDelay         time.Duration `yaml:"coin_toss_delay"`
	OnlineRefreshDelay    time.Duration `yaml:"online_refresh_delay"`
	DraftPresenceInterval time.Duration `yaml:"draft_presence_interval"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:    "http://localhost:5000",
		APIPrefix:  "/api/v1",
		StreamPath: "/api/v1/stream/sessions",
		ListenAddr: ":8090",
		LogLevel:   "info",
		Push: PushConfig{
			Transport:     PushWebSocket,
			SubjectPrefix: "dashboard",
			ReconnectWait: 2 * time.Second,
		},
		Timing: TimingConfig{
			PushDelay:             200 * time.Millisecond,
			StreamReconnect:       5 * time.Second,
			HeartbeatInterval:     5 * time.Second,
			InviteInterval:        6 * time.Second,
			InviteCooldown:        120 * time.Second,
			StatusTTL:             10 * time.Second,
			Warmup:                8 * time.Second,
			CoinTossDelay:         1200 * time.Millisecond,
			OnlineRefreshDelay:    500 * time.Millisecond,
			DraftPresenceInterval: 10 * time.Second,
			RequestTimeout:        15 * time.Second,
		},
		Sort:           string(sessions.DefaultSort),
		HistoryMinutes: 120,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by DASH_CONFIG, then DASH_* environment overrides, and validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("DASH_CONFIG"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile overlays a YAML file onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// UnmarshalYAML accepts bare integers as milliseconds for every timing field.
func (t *TimingConfig) UnmarshalYAML(node *yaml.Node) error {
	millisecondScalars(node, nil)
	type plain TimingConfig
	return node.Decode((*plain)(t))
}

// UnmarshalYAML accepts reconnect_wait as a bare millisecond count.
func (p *PushConfig) UnmarshalYAML(node *yaml.Node) error {
	millisecondScalars(node, map[string]bool{"reconnect_wait": true})
	type plain PushConfig
	return node.Decode((*plain)(p))
}

// millisecondScalars rewrites integer values of a mapping into "<n>ms" so they
// decode as durations. A nil keys set rewrites every entry.
func millisecondScalars(node *yaml.Node, keys map[string]bool) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if keys != nil && !keys[key.Value] {
			continue
		}
		if value.Kind != yaml.ScalarNode || value.Tag != "!!int" {
			continue
		}
		if _, err := strconv.Atoi(value.Value); err != nil {
			continue
		}
		value.Tag = "!!str"
		value.Value += "ms"
	}
}

func applyEnv(cfg *Config) error {
	cfg.BaseURL = getEnv("DASH_BASE_URL", cfg.BaseURL)
	cfg.APIPrefix = getEnv("DASH_API_PREFIX", cfg.APIPrefix)
	cfg.StreamPath = getEnv("DASH_STREAM_PATH", cfg.StreamPath)
	cfg.SessionCookie = getEnv("DASH_SESSION_COOKIE", cfg.SessionCookie)
	cfg.ListenAddr = getEnv("DASH_LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Push.Transport = getEnv("DASH_PUSH_TRANSPORT", cfg.Push.Transport)
	cfg.Push.URL = getEnv("DASH_PUSH_URL", cfg.Push.URL)
	cfg.Push.NATSURL = getEnv("NATS_URL", cfg.Push.NATSURL)
	cfg.Push.SubjectPrefix = getEnv("DASH_PUSH_SUBJECT_PREFIX", cfg.Push.SubjectPrefix)
	cfg.Filter.State = getEnv("DASH_FILTER_STATE", cfg.Filter.State)
	cfg.Filter.Query = getEnv("DASH_FILTER_QUERY", cfg.Filter.Query)
	cfg.Filter.Mod = getEnv("DASH_FILTER_MOD", cfg.Filter.Mod)
	cfg.Sort = getEnv("DASH_SORT", cfg.Sort)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	cfg.Realtime, err = getEnvAsBool("DASH_REALTIME", cfg.Realtime)
	collect(err)
	cfg.Filter.MinPlayers, err = getEnvAsInt("DASH_FILTER_MIN_PLAYERS", cfg.Filter.MinPlayers)
	collect(err)
	cfg.HistoryMinutes, err = getEnvAsInt("DASH_HISTORY_MINUTES", cfg.HistoryMinutes)
	collect(err)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DASH_PUSH_DELAY", &cfg.Timing.PushDelay},
		{"DASH_STREAM_RECONNECT", &cfg.Timing.StreamReconnect},
		{"DASH_HEARTBEAT_INTERVAL", &cfg.Timing.HeartbeatInterval},
		{"DASH_INVITE_INTERVAL", &cfg.Timing.InviteInterval},
		{"DASH_INVITE_COOLDOWN", &cfg.Timing.InviteCooldown},
		{"DASH_STATUS_TTL", &cfg.Timing.StatusTTL},
		{"DASH_WARMUP", &cfg.Timing.Warmup},
		{"DASH_COIN_TOSS_DELAY", &cfg.Timing.CoinTossDelay},
		{"DASH_ONLINE_REFRESH_DELAY", &cfg.Timing.OnlineRefreshDelay},
		{"DASH_DRAFT_PRESENCE_INTERVAL", &cfg.Timing.DraftPresenceInterval},
		{"DASH_REQUEST_TIMEOUT", &cfg.Timing.RequestTimeout},
		{"DASH_PUSH_RECONNECT", &cfg.Push.ReconnectWait},
	}
	for _, d := range durations {
		*d.dst, err = getEnvAsDuration(d.key, *d.dst)
		collect(err)
	}

	return errors.Join(errs...)
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if _, err := sessions.ParseSortMode(c.Sort); err != nil {
		errs = append(errs, err)
	}
	switch c.Push.Transport {
	case PushWebSocket, PushNATS:
	default:
		errs = append(errs, fmt.Errorf("unknown push transport %q", c.Push.Transport))
	}
	if c.Filter.MinPlayers < 0 {
		errs = append(errs, errors.New("filter.min_players must not be negative"))
	}

	positive := map[string]time.Duration{
		"stream_reconnect":        c.Timing.StreamReconnect,
		"heartbeat_interval":      c.Timing.HeartbeatInterval,
		"invite_interval":         c.Timing.InviteInterval,
		"invite_cooldown":         c.Timing.InviteCooldown,
		"status_ttl":              c.Timing.StatusTTL,
		"draft_presence_interval": c.Timing.DraftPresenceInterval,
		"request_timeout":         c.Timing.RequestTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timing.%s must be positive", name))
		}
	}
	nonNegative := map[string]time.Duration{
		"push_delay":           c.Timing.PushDelay,
		"warmup":               c.Timing.Warmup,
		"coin_toss_delay":      c.Timing.CoinTossDelay,
		"online_refresh_delay": c.Timing.OnlineRefreshDelay,
	}
	for name, d := range nonNegative {
		if d < 0 {
			errs = append(errs, fmt.Errorf("timing.%s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

// SortMode returns the validated default sort mode.
func (c Config) SortMode() sessions.SortMode {
	mode, err := sessions.ParseSortMode(c.Sort)
	if err != nil {
		return sessions.DefaultSort
	}
	return mode
}

// StreamURL is the absolute URL of the session event stream.
func (c Config) StreamURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.StreamPath, "/")
}

// PushURL is the websocket push endpoint; it defaults to the base URL with a
// ws scheme.
func (c Config) PushURL() string {
	if c.Push.URL != "" {
		return c.Push.URL
	}
	base := strings.TrimRight(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return intValue, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return b, nil
}

// getEnvAsDuration accepts Go durations ("5s") or bare milliseconds ("5000"),
// the same rule the YAML file follows.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}
