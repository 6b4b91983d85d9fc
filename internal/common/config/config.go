// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Predictive PredictiveConfig `mapstructure:"predictive"`
	Weights    WeightsConfig    `mapstructure:"weights"`
	Ranker     RankerConfig     `mapstructure:"ranker"`
	Automation AutomationConfig `mapstructure:"automation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Predictive service ---

// PredictiveConfig holds settings for the external prediction service and
// the protections wrapped around it.
type PredictiveConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      int           `mapstructure:"timeout"` // milliseconds
	ModelVersion string        `mapstructure:"model_version"`
	CacheBackend string        `mapstructure:"cache_backend"` // memory | redis
	CacheTTL     int           `mapstructure:"cache_ttl"`     // milliseconds
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	Timeout          int `mapstructure:"timeout"` // milliseconds
	SuccessThreshold int `mapstructure:"success_threshold"`
	HalfOpenRequests int `mapstructure:"half_open_requests"`
}

// --- Scoring weights ---

// WeightsConfig carries the hybrid weights and optional rule factor
// overrides. Each group must sum to 1.0; violations fail config load.
type WeightsConfig struct {
	Rule    float64              `mapstructure:"rule"`
	ML      float64              `mapstructure:"ml"`
	Context float64              `mapstructure:"context"`
	Factors *FactorWeightsConfig `mapstructure:"factors"`
}

type FactorWeightsConfig struct {
	Availability         float64 `mapstructure:"availability"`
	Proximity            float64 `mapstructure:"proximity"`
	Certification        float64 `mapstructure:"certification"`
	Capacity             float64 `mapstructure:"capacity"`
	HistoricalCompletion float64 `mapstructure:"historical_completion"`
}

// --- Ranking ---

type RankerConfig struct {
	MinVendors     int `mapstructure:"min_vendors"`
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// --- Automation / routing ---

// AutomationConfig holds settings for the automation level manager and
// confidence router.
type AutomationConfig struct {
	DefaultLevel                string                    `mapstructure:"default_level"`
	ConfidenceThreshold         float64                   `mapstructure:"confidence_threshold"`
	DegradedConfidenceThreshold float64                   `mapstructure:"degraded_confidence_threshold"`
	ScoreGapMargin              float64                   `mapstructure:"score_gap_margin"`
	JobTypes                    map[string]OverrideConfig `mapstructure:"job_types"`
	Tiers                       map[string]OverrideConfig `mapstructure:"tiers"`
}

// OverrideConfig is a per-job-type or per-tier automation override.
type OverrideConfig struct {
	Level               string  `mapstructure:"level"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
