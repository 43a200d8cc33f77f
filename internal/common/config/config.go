// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App            AppConfig               `mapstructure:"app"`
	Camunda        CamundaConfig           `mapstructure:"camunda"`
	Database       DatabaseConfig          `mapstructure:"database"`
	HTTP           HTTPConfig              `mapstructure:"http"`
	Workers        map[string]WorkerConfig `mapstructure:"workers"`
	DocumentIntel  DocumentIntelConfig     `mapstructure:"document_intel"`
	Reconciliation ReconciliationConfig    `mapstructure:"reconciliation"`
	MeansTest      MeansTestConfig         `mapstructure:"means_test"`
	Lock           LockConfig              `mapstructure:"lock"`
	Logging        LoggingConfig           `mapstructure:"logging"`
	Notifications  NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
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
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
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

// HTTPConfig controls the read/recompute API.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain Configuration Sections ---

// DocumentIntelConfig points at the document-understanding collaborator.
type DocumentIntelConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds, per document
	RetryCount     int    `mapstructure:"retry_count"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
}

// ReconciliationConfig carries the tunable reconciliation parameters. Zero
// values fall back to the built-in defaults.
type ReconciliationConfig struct {
	ReviewThreshold        float64            `mapstructure:"review_threshold"`
	DiscrepancyTolerance   float64            `mapstructure:"discrepancy_tolerance"`
	NetOnlyPenalty         float64            `mapstructure:"net_only_penalty"`
	ManualRecordConfidence float64            `mapstructure:"manual_record_confidence"`
	ReliabilityWeights     map[string]float64 `mapstructure:"reliability_weights"`
}

type MeansTestConfig struct {
	TablesPath     string `mapstructure:"tables_path"`
	StatutoryFloor string `mapstructure:"statutory_floor"` // decimal string; empty keeps the tables value
}

// LockConfig bounds the per-case recompute lock.
type LockConfig struct {
	TTL           int `mapstructure:"ttl"`            // milliseconds
	WaitTimeout   int `mapstructure:"wait_timeout"`   // milliseconds
	RetryInterval int `mapstructure:"retry_interval"` // milliseconds
}

// NotificationConfig holds settings for review alerts.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		Enabled    bool     `mapstructure:"enabled"`
		Region     string   `mapstructure:"region"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"email"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
