// Package config provides configuration management for the orchestration core.
// It supports loading configuration from environment variables, config files, and
// defaults, the way the rest of this codebase loads configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the orchestration core.
type Config struct {
	Router        RouterConfig        `mapstructure:"router"`
	Invoker       InvokerConfig       `mapstructure:"invoker"`
	Aggregator    AggregatorConfig    `mapstructure:"aggregator"`
	SessionCache  SessionCacheConfig  `mapstructure:"sessionCache"`
	RoutingCache  RoutingCacheConfig  `mapstructure:"routingCache"`
	TaskStore     TaskStoreConfig     `mapstructure:"taskStore"`
	EventBus      EventBusConfig      `mapstructure:"eventBus"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// RouterConfig configures RouterExecutor (spec §6 defaults table).
type RouterConfig struct {
	ConfidenceThreshold         float64 `mapstructure:"confidenceThreshold"`
	MaxAttempts                 int     `mapstructure:"maxAttempts"`
	Temperature                 float64 `mapstructure:"temperature"`
	MaxOutputTokens              int     `mapstructure:"maxOutputTokens"`
	SystemPrompt                 string  `mapstructure:"systemPrompt"`
	UserPromptTemplate           string  `mapstructure:"userPromptTemplate"`
	AgentCatalogHeader           string  `mapstructure:"agentCatalogHeader"`
	ClarificationPromptTemplate  string  `mapstructure:"clarificationPromptTemplate"`
	FallbackReasonTemplate       string  `mapstructure:"fallbackReasonTemplate"`
	ClarificationAgentID         string  `mapstructure:"clarificationAgentId"`
	FallbackAgentID              string  `mapstructure:"fallbackAgentId"`
	IncludeAgentCapabilities     bool    `mapstructure:"includeAgentCapabilities"`
	IncludeSkillExamples         bool    `mapstructure:"includeSkillExamples"`
}

// InvokerConfig configures AgentInvoker.
type InvokerConfig struct {
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

// Timeout returns the configured per-agent invocation timeout.
func (c InvokerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AggregatorConfig configures AggregatorExecutor.
type AggregatorConfig struct {
	AgentPriority                []string `mapstructure:"agentPriority"`
	DefaultSuccessTemplate       string   `mapstructure:"defaultSuccessTemplate"`
	DefaultFallbackMessage       string   `mapstructure:"defaultFallbackMessage"`
	DefaultFailureMessage        string   `mapstructure:"defaultFailureMessage"`
	EnableNaturalLanguageJoining bool     `mapstructure:"enableNaturalLanguageJoining"`
}

// SessionCacheConfig configures SessionCache.
type SessionCacheConfig struct {
	SessionCacheLengthMinutes int `mapstructure:"sessionCacheLengthMinutes"`
	MaxHistoryItems           int `mapstructure:"maxHistoryItems"`
}

// TTL returns the session inactivity expiry as a time.Duration.
func (c SessionCacheConfig) TTL() time.Duration {
	return time.Duration(c.SessionCacheLengthMinutes) * time.Minute
}

// RoutingCacheConfig configures RoutingDecisionCache.
type RoutingCacheConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	TTLSeconds           int           `mapstructure:"ttlSeconds"`
	SemanticEnabled      bool          `mapstructure:"semanticEnabled"`
	SemanticThreshold    float64       `mapstructure:"semanticThreshold"`
}

func (c RoutingCacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TaskStoreConfig selects and configures the durable TaskManager backend.
type TaskStoreConfig struct {
	// Driver selects the TaskManager backend: "memory", "sqlite", or "postgres".
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`     // sqlite file path
	DSN      string `mapstructure:"dsn"`      // postgres connection string (overrides the fields below)
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
}

// PostgresDSN returns the PostgreSQL connection string, preferring the explicit
// DSN field when set.
func (d TaskStoreConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// EventBusConfig selects and configures the ObserverBus trace/live-activity backend.
type EventBusConfig struct {
	// Driver selects the EventBus backend: "memory" or "nats".
	Driver              string `mapstructure:"driver"`
	NATSURL             string `mapstructure:"natsUrl"`
	NATSClientID        string `mapstructure:"natsClientId"`
	NATSMaxReconnects   int    `mapstructure:"natsMaxReconnects"`
	LiveActivityCapacity int   `mapstructure:"liveActivityCapacity"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// detectDefaultLogFormat favors JSON in containerized/production environments.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("ORCHESTRATOR_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options, matching
// the defaults table in the specification's external-interfaces section.
func setDefaults(v *viper.Viper) {
	v.SetDefault("router.confidenceThreshold", 0.7)
	v.SetDefault("router.maxAttempts", 2)
	v.SetDefault("router.temperature", 1.0)
	v.SetDefault("router.maxOutputTokens", 512)
	v.SetDefault("router.systemPrompt", defaultRouterSystemPrompt)
	v.SetDefault("router.userPromptTemplate", defaultUserPromptTemplate)
	v.SetDefault("router.agentCatalogHeader", "Available agents:")
	v.SetDefault("router.clarificationPromptTemplate", defaultClarificationPromptTemplate)
	v.SetDefault("router.fallbackReasonTemplate", "Routing failed (%s); falling back to the general assistant.")
	v.SetDefault("router.clarificationAgentId", "clarification")
	v.SetDefault("router.fallbackAgentId", "general-assistant")
	v.SetDefault("router.includeAgentCapabilities", true)
	v.SetDefault("router.includeSkillExamples", false)

	v.SetDefault("invoker.timeoutSeconds", 30)

	v.SetDefault("aggregator.agentPriority", []string{})
	v.SetDefault("aggregator.defaultSuccessTemplate", "%s completed successfully.")
	v.SetDefault("aggregator.defaultFallbackMessage", "I'm still working on that request.")
	v.SetDefault("aggregator.defaultFailureMessage", "Unknown error")
	v.SetDefault("aggregator.enableNaturalLanguageJoining", true)

	v.SetDefault("sessionCache.sessionCacheLengthMinutes", 5)
	v.SetDefault("sessionCache.maxHistoryItems", 20)

	v.SetDefault("routingCache.enabled", true)
	v.SetDefault("routingCache.ttlSeconds", 300)
	v.SetDefault("routingCache.semanticEnabled", false)
	v.SetDefault("routingCache.semanticThreshold", 0.92)

	v.SetDefault("taskStore.driver", "memory")
	v.SetDefault("taskStore.path", "./orchestrator-tasks.db")
	v.SetDefault("taskStore.host", "localhost")
	v.SetDefault("taskStore.port", 5432)
	v.SetDefault("taskStore.user", "orchestrator")
	v.SetDefault("taskStore.dbName", "orchestrator")
	v.SetDefault("taskStore.sslMode", "disable")

	v.SetDefault("eventBus.driver", "memory")
	v.SetDefault("eventBus.natsUrl", "")
	v.SetDefault("eventBus.natsClientId", "orchestrator")
	v.SetDefault("eventBus.natsMaxReconnects", 10)
	v.SetDefault("eventBus.liveActivityCapacity", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

const defaultRouterSystemPrompt = `You are the routing layer of a smart-home assistant. Given a user request and a ` +
	`catalog of available agents, choose exactly one primary agent and, optionally, additional agents to invoke ` +
	`alongside it. Respond ONLY with JSON matching the AgentChoice schema: {"agent_id": string, "confidence": ` +
	`number between 0 and 1, "reasoning": string, "additional_agents": [string]|null, "agent_instructions": ` +
	`[{"agent_id": string, "instruction": string}]}. If you are not confident, lower the confidence value rather ` +
	`than guessing.`

const defaultUserPromptTemplate = "User request: {{request}}\n\n{{catalog}}"

const defaultClarificationPromptTemplate = "I found a few possible matches (%s) for \"%s\" — could you clarify which one you mean? (originally considered: %s)"

// Load reads configuration from environment variables, config file, and defaults.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
// Environment variables use the ORCHESTRATOR_ prefix with underscore naming.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("logging.level", "ORCHESTRATOR_LOG_LEVEL")
	_ = v.BindEnv("taskStore.driver", "ORCHESTRATOR_TASKSTORE_DRIVER")
	_ = v.BindEnv("eventBus.natsUrl", "ORCHESTRATOR_NATS_URL")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/orchestrator/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that configuration values are internally consistent.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Router.ConfidenceThreshold < 0 || cfg.Router.ConfidenceThreshold > 1 {
		errs = append(errs, "router.confidenceThreshold must be between 0 and 1")
	}
	if cfg.Router.MaxAttempts <= 0 {
		errs = append(errs, "router.maxAttempts must be positive")
	}
	if cfg.Router.ClarificationAgentID == "" {
		errs = append(errs, "router.clarificationAgentId is required")
	}
	if cfg.Router.FallbackAgentID == "" {
		errs = append(errs, "router.fallbackAgentId is required")
	}

	if cfg.Invoker.TimeoutSeconds <= 0 {
		errs = append(errs, "invoker.timeoutSeconds must be positive")
	}

	if cfg.SessionCache.SessionCacheLengthMinutes <= 0 {
		errs = append(errs, "sessionCache.sessionCacheLengthMinutes must be positive")
	}
	if cfg.SessionCache.MaxHistoryItems <= 0 {
		errs = append(errs, "sessionCache.maxHistoryItems must be positive")
	}

	if cfg.RoutingCache.SemanticThreshold < 0 || cfg.RoutingCache.SemanticThreshold > 1 {
		errs = append(errs, "routingCache.semanticThreshold must be between 0 and 1")
	}

	switch cfg.TaskStore.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, "taskStore.driver must be one of: memory, sqlite, postgres")
	}
	if cfg.TaskStore.Driver == "postgres" {
		if cfg.TaskStore.DSN == "" && (cfg.TaskStore.Host == "" || cfg.TaskStore.DBName == "") {
			errs = append(errs, "taskStore.dsn or taskStore.host/dbName are required for postgres driver")
		}
	}

	switch cfg.EventBus.Driver {
	case "memory", "nats":
	default:
		errs = append(errs, "eventBus.driver must be one of: memory, nats")
	}
	if cfg.EventBus.Driver == "nats" && cfg.EventBus.NATSURL == "" {
		errs = append(errs, "eventBus.natsUrl is required when eventBus.driver is nats")
	}
	if cfg.EventBus.LiveActivityCapacity < 100 {
		errs = append(errs, "eventBus.liveActivityCapacity must be at least 100")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
