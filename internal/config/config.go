package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the sentinel-agent service.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Patterns     PatternsConfig     `yaml:"patterns"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Logging      LoggingConfig      `yaml:"logging"`
	Cache        CacheConfig        `yaml:"cache"`
}

// ServerConfig controls the HTTP API listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// OrchestratorConfig tunes the planner, reallocator, and summary agent.
type OrchestratorConfig struct {
	RetryLimit              int           `yaml:"retryLimit"`
	MinAcceptableConfidence float64       `yaml:"minAcceptableConfidence"`
	SignificanceThreshold   float64       `yaml:"significanceThreshold"`
	SmoothingFactor         float64       `yaml:"smoothingFactor"`
	TaskTimeout             time.Duration `yaml:"taskTimeout"`
	MaxConcurrentTasks      int           `yaml:"maxConcurrentTasks"`
	MaxRemediations         int           `yaml:"maxRemediations"`
}

// PatternsConfig controls pattern-pack loading for the built-in analyzers.
type PatternsConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig configures the optional monitoring backend used to enrich
// incidents submitted without payload data.
type MonitorConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	LogsPath   string        `yaml:"logsPath"`
	AlarmsPath string        `yaml:"alarmsPath"`
	Timeout    time.Duration `yaml:"timeout"`
	Window     time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls report memoization for repeated submissions.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	ReportTTL time.Duration `yaml:"reportTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_AGENT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects option values outside their documented ranges.
func (c *Config) Validate() error {
	o := c.Orchestrator
	if o.RetryLimit < 0 {
		return fmt.Errorf("orchestrator.retryLimit must be >= 0, got %d", o.RetryLimit)
	}
	if o.MinAcceptableConfidence < 0 || o.MinAcceptableConfidence > 1 {
		return fmt.Errorf("orchestrator.minAcceptableConfidence must be in [0,1], got %v", o.MinAcceptableConfidence)
	}
	if o.SignificanceThreshold < 0 || o.SignificanceThreshold > 1 {
		return fmt.Errorf("orchestrator.significanceThreshold must be in [0,1], got %v", o.SignificanceThreshold)
	}
	if o.SmoothingFactor <= 0 || o.SmoothingFactor > 1 {
		return fmt.Errorf("orchestrator.smoothingFactor must be in (0,1], got %v", o.SmoothingFactor)
	}
	if o.TaskTimeout < 0 {
		return fmt.Errorf("orchestrator.taskTimeout must be >= 0, got %v", o.TaskTimeout)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			RetryLimit:              3,
			MinAcceptableConfidence: 0.2,
			SignificanceThreshold:   0.5,
			SmoothingFactor:         0.3,
			TaskTimeout:             2 * time.Minute,
			MaxConcurrentTasks:      5,
			MaxRemediations:         10,
		},
		Patterns: PatternsConfig{Path: "configs/patterns/default.yaml"},
		Monitor: MonitorConfig{
			LogsPath:   "/api/v1/monitor/logs",
			AlarmsPath: "/api/v1/monitor/alarms",
			Timeout:    5 * time.Second,
			Window:     15 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:   false,
			ReportTTL: 2 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_AGENT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_AGENT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SENTINEL_AGENT_RETRY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.RetryLimit = limit
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_MIN_ACCEPTABLE_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Orchestrator.MinAcceptableConfidence = f
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_SIGNIFICANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Orchestrator.SignificanceThreshold = f
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_SMOOTHING_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Orchestrator.SmoothingFactor = f
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Orchestrator.TaskTimeout = d
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_MAX_CONCURRENT_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.MaxConcurrentTasks = n
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_PATTERNS_PATH"); v != "" {
		cfg.Patterns.Path = v
	}
	if v := os.Getenv("SENTINEL_AGENT_MONITOR_BASE_URL"); v != "" {
		cfg.Monitor.BaseURL = v
	}
	if v := os.Getenv("SENTINEL_AGENT_MONITOR_LOGS_PATH"); v != "" {
		cfg.Monitor.LogsPath = v
	}
	if v := os.Getenv("SENTINEL_AGENT_MONITOR_ALARMS_PATH"); v != "" {
		cfg.Monitor.AlarmsPath = v
	}
	if v := os.Getenv("SENTINEL_AGENT_MONITOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Timeout = d
		}
	}
	if v := os.Getenv("SENTINEL_AGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_AGENT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SENTINEL_AGENT_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("SENTINEL_AGENT_CACHE_REPORT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReportTTL = d
		}
	}
}
