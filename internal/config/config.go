// Package config loads Nuvom's effective configuration from the NUVOM_
// environment namespace (and an optional .env file) via viper, the way the
// rest of the pack's CLI tools do, falling back to the teacher's
// LookupEnv-with-default idiom only for the handful of knobs needed before
// viper itself can be constructed (the environment name).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// TimeoutPolicy mirrors job.TimeoutPolicy without importing it, keeping
// config free of a dependency on the job package.
type TimeoutPolicy string

// Config is the effective, validated configuration for one Nuvom process.
type Config struct {
	Environment string // dev, prod, test
	LogLevel    string // DEBUG, INFO, WARNING, ERROR

	QueueBackend         string
	ResultBackend        string
	SerializationBackend string

	QueueMaxSize int // 0 = unbounded
	MaxWorkers   int
	BatchSize    int

	JobTimeoutSecs int
	TimeoutPolicy  TimeoutPolicy
	RetryDelaySecs int

	SQLiteDBPath   string
	PrometheusPort int

	QueueDir  string
	ResultDir string

	RedisAddr     string
	RedisQueueKey string
}

const envPrefix = "NUVOM"

// Load reads configuration from the environment (NUVOM_* variables) and an
// optional .env file in the working directory, applying defaults and
// validating the handful of fields with closed value sets.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading .env: %w", err)
		}
	}

	setDefaults(v)

	cfg := &Config{
		Environment:          strings.ToLower(v.GetString("environment")),
		LogLevel:             strings.ToUpper(v.GetString("log_level")),
		QueueBackend:         v.GetString("queue_backend"),
		ResultBackend:        v.GetString("result_backend"),
		SerializationBackend: v.GetString("serialization_backend"),
		QueueMaxSize:         v.GetInt("queue_maxsize"),
		MaxWorkers:           v.GetInt("max_workers"),
		BatchSize:            v.GetInt("batch_size"),
		JobTimeoutSecs:       v.GetInt("job_timeout_secs"),
		TimeoutPolicy:        TimeoutPolicy(strings.ToLower(v.GetString("timeout_policy"))),
		RetryDelaySecs:       v.GetInt("retry_delay_secs"),
		SQLiteDBPath:         v.GetString("sqlite_db_path"),
		PrometheusPort:       v.GetInt("prometheus_port"),
		QueueDir:             v.GetString("queue_dir"),
		ResultDir:            v.GetString("result_dir"),
		RedisAddr:            v.GetString("redis_addr"),
		RedisQueueKey:        v.GetString("redis_queue_key"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("queue_backend", "memory")
	v.SetDefault("result_backend", "memory")
	v.SetDefault("serialization_backend", "json")
	v.SetDefault("queue_maxsize", 0)
	v.SetDefault("max_workers", 4)
	v.SetDefault("batch_size", 16)
	v.SetDefault("job_timeout_secs", 30)
	v.SetDefault("timeout_policy", "fail")
	v.SetDefault("retry_delay_secs", 0)
	v.SetDefault("sqlite_db_path", "./nuvom.db")
	v.SetDefault("prometheus_port", 9420)
	v.SetDefault("queue_dir", "./nuvom_queue")
	v.SetDefault("result_dir", "./nuvom_results")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_queue_key", "nuvom:jobs")
}

func validate(cfg *Config) error {
	switch cfg.Environment {
	case "dev", "prod", "test":
	default:
		return fmt.Errorf("config: invalid environment %q", cfg.Environment)
	}
	switch cfg.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR":
	default:
		return fmt.Errorf("config: invalid log_level %q", cfg.LogLevel)
	}
	switch cfg.TimeoutPolicy {
	case "fail", "retry", "ignore":
	default:
		return fmt.Errorf("config: invalid timeout_policy %q", cfg.TimeoutPolicy)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.PrometheusPort < 1 || cfg.PrometheusPort > 65535 {
		return fmt.Errorf("config: prometheus_port out of range: %d", cfg.PrometheusPort)
	}
	return nil
}

// BootEnvironment mirrors the teacher's LookupEnv-with-default idiom for
// the one knob read before a Config exists: choosing the logger's dev/prod
// mode, since constructing the logger happens before viper has anything to
// report a parse failure through.
func BootEnvironment() string {
	if v, ok := os.LookupEnv(envPrefix + "_ENVIRONMENT"); ok && v != "" {
		return strings.ToLower(v)
	}
	return "dev"
}
