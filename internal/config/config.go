// Package config provides configuration management for the supernova agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".supernova"

	// Environment variable names
	EnvPort     = "SUPERNOVA_PORT"
	EnvLogLevel = "SUPERNOVA_LOG_LEVEL"
	EnvDataDir  = "SUPERNOVA_DATA_DIR"
	EnvHeadless = "SUPERNOVA_HEADLESS"

	// Service credentials
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvFootageKey = "PEXELS_API_KEY"
	EnvAvatarKey  = "HEYGEN_API_KEY"
	EnvYouTubeKey = "YOUTUBE_API_KEY"

	// Tuning
	EnvOpenAIModel        = "SUPERNOVA_OPENAI_MODEL"
	EnvLLMTimeout         = "SUPERNOVA_LLM_TIMEOUT"
	EnvAvatarPollInterval = "SUPERNOVA_AVATAR_POLL_INTERVAL"
	EnvAvatarMaxPolls     = "SUPERNOVA_AVATAR_MAX_POLLS"
	EnvFootageConcurrency = "SUPERNOVA_FOOTAGE_CONCURRENCY"
	EnvComposeStageDelay  = "SUPERNOVA_COMPOSE_STAGE_DELAY"
	EnvBRollRules         = "SUPERNOVA_BROLL_RULES"
	EnvRenderPollInterval = "SUPERNOVA_RENDER_POLL_INTERVAL"
	EnvFootageBaseURL     = "SUPERNOVA_FOOTAGE_BASE_URL"
	EnvAvatarBaseURL      = "SUPERNOVA_AVATAR_BASE_URL"
	EnvEnablePlatformPick = "SUPERNOVA_ENABLE_PLATFORM_SELECTION"
	EnvEnableAttachments  = "SUPERNOVA_ENABLE_ATTACHMENTS"
	EnvEnableTrends       = "SUPERNOVA_ENABLE_TRENDS"

	// Database filename
	DBFilename = "supernova.db"

	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultLLMTimeout         = 15 * time.Second
	DefaultAvatarPollInterval = 5 * time.Second
	DefaultAvatarMaxPolls     = 60
	DefaultFootageConcurrency = 4
	DefaultComposeStageDelay  = 1500 * time.Millisecond
	DefaultRenderPollInterval = 2 * time.Second
	DefaultFootageBaseURL     = "https://api.pexels.com"
	DefaultAvatarBaseURL      = "https://api.heygen.com"
)

// Keys holds the credentials handed to each external service constructor.
// An empty key selects that service's offline stub.
type Keys struct {
	OpenAI  string
	Footage string
	Avatar  string
	YouTube string
}

// Features toggles optional dashboard capabilities.
type Features struct {
	EnablePlatformSelection bool `json:"enable_platform_selection"`
	EnableAttachments       bool `json:"enable_attachments"`
	EnableTrends            bool `json:"enable_trends"`
}

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	Headless() bool
	Keys() Keys
	Features() Features
	OpenAIModel() string
	LLMTimeout() time.Duration
	AvatarPollInterval() time.Duration
	AvatarMaxPolls() int
	FootageConcurrency() int
	ComposeStageDelay() time.Duration
	RenderPollInterval() time.Duration
	BRollRulesPath() string
	FootageBaseURL() string
	AvatarBaseURL() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	keys     Keys
	features Features

	openAIModel        string
	llmTimeout         time.Duration
	avatarPollInterval time.Duration
	avatarMaxPolls     int
	footageConcurrency int
	composeStageDelay  time.Duration
	renderPollInterval time.Duration
	brollRulesPath     string
	footageBaseURL     string
	avatarBaseURL      string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		dataDir:            defaultDataDir(),
		openAIModel:        DefaultOpenAIModel,
		llmTimeout:         DefaultLLMTimeout,
		avatarPollInterval: DefaultAvatarPollInterval,
		avatarMaxPolls:     DefaultAvatarMaxPolls,
		footageConcurrency: DefaultFootageConcurrency,
		composeStageDelay:  DefaultComposeStageDelay,
		renderPollInterval: DefaultRenderPollInterval,
		footageBaseURL:     DefaultFootageBaseURL,
		avatarBaseURL:      DefaultAvatarBaseURL,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if m := os.Getenv(EnvOpenAIModel); m != "" {
		cfg.openAIModel = m
	}

	cfg.keys = Keys{
		OpenAI:  os.Getenv(EnvOpenAIKey),
		Footage: os.Getenv(EnvFootageKey),
		Avatar:  os.Getenv(EnvAvatarKey),
		YouTube: os.Getenv(EnvYouTubeKey),
	}
	cfg.brollRulesPath = os.Getenv(EnvBRollRules)

	if u := os.Getenv(EnvFootageBaseURL); u != "" {
		cfg.footageBaseURL = u
	}
	if u := os.Getenv(EnvAvatarBaseURL); u != "" {
		cfg.avatarBaseURL = u
	}

	var err error
	if cfg.headless, err = envBool(EnvHeadless, false); err != nil {
		return nil, err
	}
	if cfg.features.EnablePlatformSelection, err = envBool(EnvEnablePlatformPick, true); err != nil {
		return nil, err
	}
	if cfg.features.EnableAttachments, err = envBool(EnvEnableAttachments, false); err != nil {
		return nil, err
	}
	if cfg.features.EnableTrends, err = envBool(EnvEnableTrends, false); err != nil {
		return nil, err
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{EnvLLMTimeout, &cfg.llmTimeout},
		{EnvAvatarPollInterval, &cfg.avatarPollInterval},
		{EnvComposeStageDelay, &cfg.composeStageDelay},
		{EnvRenderPollInterval, &cfg.renderPollInterval},
	}
	for _, d := range durations {
		if err := envDuration(d.name, d.dst); err != nil {
			return nil, err
		}
	}

	if err := envPositiveInt(EnvAvatarMaxPolls, &cfg.avatarMaxPolls); err != nil {
		return nil, err
	}
	if err := envPositiveInt(EnvFootageConcurrency, &cfg.footageConcurrency); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) Keys() Keys {
	return c.keys
}

func (c *EnvConfig) Features() Features {
	return c.features
}

func (c *EnvConfig) OpenAIModel() string {
	return c.openAIModel
}

func (c *EnvConfig) LLMTimeout() time.Duration {
	return c.llmTimeout
}

func (c *EnvConfig) AvatarPollInterval() time.Duration {
	return c.avatarPollInterval
}

func (c *EnvConfig) AvatarMaxPolls() int {
	return c.avatarMaxPolls
}

func (c *EnvConfig) FootageConcurrency() int {
	return c.footageConcurrency
}

// ComposeStageDelay is how long each simulated render stage takes.
func (c *EnvConfig) ComposeStageDelay() time.Duration {
	return c.composeStageDelay
}

func (c *EnvConfig) RenderPollInterval() time.Duration {
	return c.renderPollInterval
}

// BRollRulesPath is an optional YAML override for the footage keyword rules.
func (c *EnvConfig) BRollRulesPath() string {
	return c.brollRulesPath
}

func (c *EnvConfig) FootageBaseURL() string {
	return c.footageBaseURL
}

func (c *EnvConfig) AvatarBaseURL() string {
	return c.avatarBaseURL
}

func envBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid %s: duration must not be negative", name)
	}
	*dst = d
	return nil
}

func envPositiveInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < 1 {
		return fmt.Errorf("invalid %s: must be at least 1", name)
	}
	*dst = n
	return nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
