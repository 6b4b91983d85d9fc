// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like PREDICTIVE_BASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when not present.
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	// Predictive service defaults
	if cfg.Predictive.Timeout == 0 {
		cfg.Predictive.Timeout = 5000
	}
	if cfg.Predictive.CacheTTL == 0 {
		cfg.Predictive.CacheTTL = 60000
	}
	if cfg.Predictive.CacheBackend == "" {
		cfg.Predictive.CacheBackend = "memory"
	}
	if cfg.Predictive.Breaker.FailureThreshold == 0 {
		cfg.Predictive.Breaker.FailureThreshold = 5
	}
	if cfg.Predictive.Breaker.Timeout == 0 {
		cfg.Predictive.Breaker.Timeout = 30000
	}
	if cfg.Predictive.Breaker.SuccessThreshold == 0 {
		cfg.Predictive.Breaker.SuccessThreshold = 3
	}
	if cfg.Predictive.Breaker.HalfOpenRequests == 0 {
		cfg.Predictive.Breaker.HalfOpenRequests = 1
	}

	// Hybrid weight defaults
	if cfg.Weights.Rule == 0 && cfg.Weights.ML == 0 && cfg.Weights.Context == 0 {
		cfg.Weights.Rule = 0.5
		cfg.Weights.ML = 0.4
		cfg.Weights.Context = 0.1
	}

	// Ranker defaults
	if cfg.Ranker.MinVendors == 0 {
		cfg.Ranker.MinVendors = 3
	}
	if cfg.Ranker.MaxConcurrency == 0 {
		cfg.Ranker.MaxConcurrency = 4
	}

	// Automation defaults
	if cfg.Automation.DefaultLevel == "" {
		cfg.Automation.DefaultLevel = "advisory"
	}
	if cfg.Automation.ConfidenceThreshold == 0 {
		cfg.Automation.ConfidenceThreshold = 0.85
	}
	if cfg.Automation.DegradedConfidenceThreshold == 0 {
		cfg.Automation.DegradedConfidenceThreshold = 0.6
	}
	if cfg.Automation.ScoreGapMargin == 0 {
		cfg.Automation.ScoreGapMargin = 0.05
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields. Weight sets
// that do not sum to 1.0 are a hard error here, never renormalized.
func validateConfig(cfg *Config) error {
	if cfg.Predictive.BaseURL == "" {
		return fmt.Errorf("predictive.base_url is required")
	}

	sum := cfg.Weights.Rule + cfg.Weights.ML + cfg.Weights.Context
	if cfg.Weights.Rule < 0 || cfg.Weights.ML < 0 || cfg.Weights.Context < 0 {
		return fmt.Errorf("weights must be non-negative, got rule=%.3f ml=%.3f context=%.3f",
			cfg.Weights.Rule, cfg.Weights.ML, cfg.Weights.Context)
	}
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("weights.rule + weights.ml + weights.context must sum to 1.0, got %.3f", sum)
	}

	if f := cfg.Weights.Factors; f != nil {
		fsum := f.Availability + f.Proximity + f.Certification + f.Capacity + f.HistoricalCompletion
		if math.Abs(fsum-1.0) > 0.001 {
			return fmt.Errorf("weights.factors must sum to 1.0, got %.3f", fsum)
		}
	}

	if cfg.Predictive.CacheBackend != "memory" && cfg.Predictive.CacheBackend != "redis" {
		return fmt.Errorf("predictive.cache_backend must be memory or redis, got %q", cfg.Predictive.CacheBackend)
	}
	if cfg.Predictive.CacheBackend == "redis" && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when predictive.cache_backend is redis")
	}

	switch cfg.Automation.DefaultLevel {
	case "auto", "advisory", "manual":
	default:
		return fmt.Errorf("automation.default_level must be auto, advisory or manual, got %q", cfg.Automation.DefaultLevel)
	}

	if cfg.Automation.ConfidenceThreshold < 0 || cfg.Automation.ConfidenceThreshold > 1 {
		return fmt.Errorf("automation.confidence_threshold must be in [0,1], got %.3f", cfg.Automation.ConfidenceThreshold)
	}
	if cfg.Automation.DegradedConfidenceThreshold < 0 || cfg.Automation.DegradedConfidenceThreshold > 1 {
		return fmt.Errorf("automation.degraded_confidence_threshold must be in [0,1], got %.3f", cfg.Automation.DegradedConfidenceThreshold)
	}

	for name, ov := range cfg.Automation.JobTypes {
		if err := validateOverride(name, ov); err != nil {
			return err
		}
	}
	for name, ov := range cfg.Automation.Tiers {
		if err := validateOverride(name, ov); err != nil {
			return err
		}
	}

	return nil
}

func validateOverride(name string, ov OverrideConfig) error {
	switch ov.Level {
	case "auto", "advisory", "manual":
	default:
		return fmt.Errorf("automation override %q: level must be auto, advisory or manual, got %q", name, ov.Level)
	}
	if ov.ConfidenceThreshold < 0 || ov.ConfidenceThreshold > 1 {
		return fmt.Errorf("automation override %q: confidence_threshold must be in [0,1], got %.3f", name, ov.ConfidenceThreshold)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
