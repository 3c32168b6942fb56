// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Push          PushConfig              `mapstructure:"push"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Realtime      RealtimeConfig          `mapstructure:"realtime"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// AuthConfig holds the shared secret used to verify storefront-issued tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Enabled reports whether order events should be consumed from Zeebe.
func (c CamundaConfig) Enabled() bool {
	return c.BrokerAddress != ""
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// PushConfig holds the VAPID key pair. Missing keys disable push.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subject         string `mapstructure:"subject"`
	TTL             int    `mapstructure:"ttl"` // seconds
}

func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// NotificationConfig holds channel settings for the dispatcher.
type NotificationConfig struct {
	Email struct {
		Provider  string `mapstructure:"provider"` // "ses", "smtp" or "" (disabled)
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`
	ChannelTimeout int    `mapstructure:"channel_timeout"` // milliseconds
	PanelURL       string `mapstructure:"panel_url"`
}

// RealtimeConfig tunes the websocket endpoints.
type RealtimeConfig struct {
	WriteTimeout   int   `mapstructure:"write_timeout"`    // milliseconds
	PingInterval   int   `mapstructure:"ping_interval"`    // milliseconds
	PongTimeout    int   `mapstructure:"pong_timeout"`     // milliseconds
	MaxMessageSize int64 `mapstructure:"max_message_size"` // bytes
}

// WorkerConfig holds the settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
