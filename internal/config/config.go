// Package config loads and validates the per-service nested configuration
// object shared by every binary under cmd/: YAML on disk, overridable by
// environment variables, validated fail-fast before a service starts
// accepting traffic.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// ServerSettings configures the HTTP listener every service exposes.
type ServerSettings struct {
	ListenAddr   string        `yaml:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// BrowserAutomationSettings configures the browser tester (C4).
type BrowserAutomationSettings struct {
	MaxConcurrentContexts int           `yaml:"max_concurrent_contexts"`
	DefaultBrowser        string        `yaml:"default_browser"`
	NavigationTimeout     time.Duration `yaml:"navigation_timeout"`
	EvidenceDir           string        `yaml:"evidence_dir"`
	RecordDebugEvidence   bool          `yaml:"record_debug_evidence"`
}

// AIQualitySettings configures the quality judge (C5).
type AIQualitySettings struct {
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	DefaultStrategy   string  `yaml:"default_strategy"`
	MinCacheConfidence float64 `yaml:"min_cache_confidence"`
	RedisAddr         string  `yaml:"redis_addr"`
	BackendTimeout    time.Duration `yaml:"backend_timeout"`
	// BackendURL is an OpenAI-compatible completion endpoint. Empty means
	// no LLM backend is wired and the deterministic reference judge is
	// used instead.
	BackendURL   string `yaml:"backend_url"`
	BackendModel string `yaml:"backend_model"`
	// PassThreshold is the overall score a standalone assessment needs
	// for its synthesized result to report passed=true.
	PassThreshold float64 `yaml:"pass_threshold"`
}

// SlackNotificationSettings configures the SLACK delivery channel.
type SlackNotificationSettings struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// FileNotificationSettings configures the FILE delivery channel.
type FileNotificationSettings struct {
	Directory string `yaml:"directory"`
}

// WebhookNotificationSettings configures the generic WEBHOOK delivery
// channel.
type WebhookNotificationSettings struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
}

// NotificationSettings configures the alert & notification engine (C7).
type NotificationSettings struct {
	Slack                   SlackNotificationSettings   `yaml:"slack"`
	File                    FileNotificationSettings    `yaml:"file"`
	Webhook                 WebhookNotificationSettings `yaml:"webhook"`
	DefaultCooldownMinutes  int                         `yaml:"default_cooldown_minutes"`
	MaxNotificationsPerHour int                         `yaml:"max_notifications_per_hour"`
}

// APITesterSettings configures the API tester (C3).
type APITesterSettings struct {
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	LoadTestMaxUsers int          `yaml:"load_test_max_users"`
}

// AggregatorSettings configures the results aggregator (C6).
type AggregatorSettings struct {
	MaxStoredResults      int     `yaml:"max_stored_results"`
	MaxAgeDays            int     `yaml:"max_age_days"`
	AnomalySigma          float64 `yaml:"anomaly_sigma"`
	MinDataPointsForTrend int     `yaml:"min_data_points_for_trend"`
	ReportDir             string  `yaml:"report_dir"`
	// ExecutorSource names one executor whose /results history the pull
	// fallback polls.
	ExecutorSources []ExecutorSourceSettings `yaml:"executor_sources"`
	CollectInterval time.Duration            `yaml:"collect_interval"`
}

// ExecutorSourceSettings is one entry in aggregator.executor_sources.
type ExecutorSourceSettings struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// OrchestratorSettings configures the orchestrator (C8).
type OrchestratorSettings struct {
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	MaxParallelPhases int           `yaml:"max_parallel_phases"`
	QualityThreshold  float64       `yaml:"quality_threshold"`
	ScenarioDir       string        `yaml:"scenario_dir"`
}

// ServiceConfig is the full nested config object loaded from YAML and
// shared (with per-service sections left zero-valued where irrelevant) by
// every binary under cmd/.
type ServiceConfig struct {
	Server             ServerSettings            `yaml:"server"`
	BrowserAutomation  BrowserAutomationSettings `yaml:"browser_automation"`
	AIQuality          AIQualitySettings         `yaml:"ai_quality"`
	Notification       NotificationSettings      `yaml:"notification"`
	APITester          APITesterSettings         `yaml:"api_tester"`
	Aggregator         AggregatorSettings        `yaml:"aggregator"`
	Orchestrator       OrchestratorSettings      `yaml:"orchestrator"`
}

// Default returns a ServiceConfig populated with the spec's documented
// defaults, to be overlaid by a YAML file and then by environment
// variables.
func Default() *ServiceConfig {
	return &ServiceConfig{
		Server: ServerSettings{
			ListenAddr:   ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		BrowserAutomation: BrowserAutomationSettings{
			MaxConcurrentContexts: 10,
			DefaultBrowser:        "chromium",
			NavigationTimeout:     30 * time.Second,
			EvidenceDir:           "./evidence",
		},
		AIQuality: AIQualitySettings{
			CacheTTLSeconds:    3600,
			DefaultStrategy:    "SINGLE",
			MinCacheConfidence: 0.2,
			BackendTimeout:     30 * time.Second,
			PassThreshold:      0.8,
		},
		Notification: NotificationSettings{
			DefaultCooldownMinutes:  15,
			MaxNotificationsPerHour: 10,
			File: FileNotificationSettings{
				Directory: "./notifications",
			},
		},
		APITester: APITesterSettings{
			DefaultTimeout:   10 * time.Second,
			MaxRetries:       3,
			LoadTestMaxUsers: 100,
		},
		Aggregator: AggregatorSettings{
			MaxStoredResults:      10000,
			MaxAgeDays:            7,
			AnomalySigma:          2.0,
			MinDataPointsForTrend: 5,
			ReportDir:             "./reports",
			CollectInterval:       time.Minute,
		},
		Orchestrator: OrchestratorSettings{
			SessionTimeout:    30 * time.Minute,
			MaxParallelPhases: 1,
			QualityThreshold:  0.8,
			ScenarioDir:       "./scenarios",
		},
	}
}

// LoadFromFile reads path as YAML over Default(), returning the merged
// configuration.
func LoadFromFile(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sharederrors.FailedToWithDetails("load configuration file", "config", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, sharederrors.ParseError(path, "yaml", err)
	}
	return cfg, nil
}

// envOverrides maps an environment variable name to a setter applied to
// cfg when that variable is present. Kept as a table (rather than a long
// if-chain) so adding an override is a one-line addition.
func envOverrides(cfg *ServiceConfig) map[string]func(string) error {
	return map[string]func(string) error{
		"AAT_LISTEN_ADDR": func(v string) error {
			cfg.Server.ListenAddr = v
			return nil
		},
		"AAT_MAX_CONCURRENT_CONTEXTS": func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			cfg.BrowserAutomation.MaxConcurrentContexts = n
			return nil
		},
		"AAT_AI_QUALITY_CACHE_TTL_SECONDS": func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			cfg.AIQuality.CacheTTLSeconds = n
			return nil
		},
		"AAT_AI_QUALITY_REDIS_ADDR": func(v string) error {
			cfg.AIQuality.RedisAddr = v
			return nil
		},
		"AAT_AI_QUALITY_BACKEND_URL": func(v string) error {
			cfg.AIQuality.BackendURL = v
			return nil
		},
		"AAT_AI_QUALITY_BACKEND_MODEL": func(v string) error {
			cfg.AIQuality.BackendModel = v
			return nil
		},
		"AAT_NOTIFICATION_SLACK_WEBHOOK_URL": func(v string) error {
			cfg.Notification.Slack.WebhookURL = v
			return nil
		},
		"AAT_NOTIFICATION_MAX_PER_HOUR": func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			cfg.Notification.MaxNotificationsPerHour = n
			return nil
		},
		"AAT_SESSION_TIMEOUT": func(v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			cfg.Orchestrator.SessionTimeout = d
			return nil
		},
	}
}

// LoadFromEnv applies any recognised environment variable overrides to
// cfg in place, returning the first conversion error encountered (an
// unparseable env var is treated as a configuration error, not silently
// ignored).
func (cfg *ServiceConfig) LoadFromEnv() error {
	for name, set := range envOverrides(cfg) {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := set(v); err != nil {
			return sharederrors.ConfigurationError(name, err.Error())
		}
	}
	return nil
}

// Validate enforces the business-critical constraints a service must not
// start without: a listen address, sane pool sizing, and rate-limit
// settings that can't produce notification storms.
func (cfg *ServiceConfig) Validate() error {
	if cfg.Server.ListenAddr == "" {
		return sharederrors.ConfigurationError("server.listen_addr", "must not be empty")
	}
	if cfg.BrowserAutomation.MaxConcurrentContexts <= 0 {
		return sharederrors.ConfigurationError("browser_automation.max_concurrent_contexts", "must be positive")
	}
	if cfg.AIQuality.CacheTTLSeconds < 0 {
		return sharederrors.ConfigurationError("ai_quality.cache_ttl_seconds", "must not be negative")
	}
	if cfg.Notification.MaxNotificationsPerHour <= 0 {
		return sharederrors.ConfigurationError("notification.max_notifications_per_hour", "must be positive")
	}
	if cfg.Notification.DefaultCooldownMinutes < 0 {
		return sharederrors.ConfigurationError("notification.default_cooldown_minutes", "must not be negative")
	}
	if cfg.APITester.MaxRetries < 0 {
		return sharederrors.ConfigurationError("api_tester.max_retries", "must not be negative")
	}
	if cfg.Aggregator.MaxStoredResults <= 0 {
		return sharederrors.ConfigurationError("aggregator.max_stored_results", "must be positive")
	}
	return nil
}
