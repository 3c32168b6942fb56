// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnvKeys registers keys that have no YAML default so AutomaticEnv can
// still populate them during Unmarshal.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.address",
		"auth.jwt_secret",
		"camunda.broker_address",
		"database.postgres.host",
		"database.postgres.port",
		"database.postgres.database",
		"database.redis.address",
		"database.elasticsearch.addresses",
		"push.vapid_public_key",
		"push.vapid_private_key",
		"push.subject",
		"notifications.email.provider",
		"notifications.email.from_email",
		"notifications.aws.region",
		"logging.level",
		"logging.format",
	} {
		_ = v.BindEnv(key)
	}
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
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
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional variable names the
// storefront deployment already exports.
func overrideEmptyConfig(cfg *Config) {
	fill := func(dst *string, envKey string) {
		if *dst == "" {
			if val := os.Getenv(envKey); val != "" {
				*dst = val
			}
		}
	}

	fill(&cfg.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	fill(&cfg.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	fill(&cfg.Push.Subject, "VAPID_SUBJECT")
	fill(&cfg.Auth.JWTSecret, "JWT_SECRET")
	fill(&cfg.Database.Postgres.User, "DB_USER")
	fill(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	fill(&cfg.Notifications.SMTP.Username, "SMTP_USERNAME")
	fill(&cfg.Notifications.SMTP.Password, "SMTP_PASSWORD")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cakeshop-notifier"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.CacheTTL == 0 {
		cfg.Database.Redis.CacheTTL = 300
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "notification-dispatches"
	}

	if cfg.Push.TTL == 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Subject == "" {
		cfg.Push.Subject = "mailto:orders@cakeshop.local"
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "ap-south-1"
	}
	if cfg.Notifications.SMTP.Port == 0 {
		cfg.Notifications.SMTP.Port = 587
	}
	if cfg.Notifications.ChannelTimeout == 0 {
		cfg.Notifications.ChannelTimeout = 10000
	}

	if cfg.Realtime.WriteTimeout == 0 {
		cfg.Realtime.WriteTimeout = 10000
	}
	if cfg.Realtime.PingInterval == 0 {
		cfg.Realtime.PingInterval = 30000
	}
	if cfg.Realtime.PongTimeout == 0 {
		cfg.Realtime.PongTimeout = 60000
	}
	if cfg.Realtime.MaxMessageSize == 0 {
		cfg.Realtime.MaxMessageSize = 4096
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if cfg.Database.Postgres.Enabled() {
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}
	switch cfg.Notifications.Email.Provider {
	case "", "ses":
	case "smtp":
		if cfg.Notifications.SMTP.Host == "" {
			return fmt.Errorf("notifications.smtp.host is required for the smtp provider")
		}
	default:
		return fmt.Errorf("notifications.email.provider must be one of ses, smtp or empty, got %q", cfg.Notifications.Email.Provider)
	}
	if cfg.Notifications.Email.Provider != "" && cfg.Notifications.Email.FromEmail == "" {
		return fmt.Errorf("notifications.email.from_email is required when email is enabled")
	}
	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
