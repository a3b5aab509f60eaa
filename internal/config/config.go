package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ericfitz/whiteboard/internal/envutil"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	EventLog  EventLogConfig  `yaml:"eventlog"`
	Profile   ProfileConfig   `yaml:"profile"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port" env:"SERVER_PORT"`
	Interface       string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig selects and configures the event log database
type DatabaseConfig struct {
	Type      string          `yaml:"type" env:"DATABASE_TYPE"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	SQLServer SQLServerConfig `yaml:"sqlserver"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSL_MODE"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host" env:"MYSQL_HOST"`
	Port     string `yaml:"port" env:"MYSQL_PORT"`
	User     string `yaml:"user" env:"MYSQL_USER"`
	Password string `yaml:"password" env:"MYSQL_PASSWORD"`
	Database string `yaml:"database" env:"MYSQL_DATABASE"`
}

// SQLServerConfig holds SQL Server configuration
type SQLServerConfig struct {
	Host     string `yaml:"host" env:"SQLSERVER_HOST"`
	Port     string `yaml:"port" env:"SQLSERVER_PORT"`
	User     string `yaml:"user" env:"SQLSERVER_USER"`
	Password string `yaml:"password" env:"SQLSERVER_PASSWORD"`
	Database string `yaml:"database" env:"SQLSERVER_DATABASE"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     string `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig holds JWT verification configuration
type JWTConfig struct {
	Secret        string `yaml:"secret" env:"JWT_SECRET"`
	SigningMethod string `yaml:"signing_method" env:"JWT_SIGNING_METHOD"`
	UserIDClaim   string `yaml:"user_id_claim" env:"JWT_USER_ID_CLAIM"`
}

// SecretsConfig selects where secrets are read from
type SecretsConfig struct {
	Provider      string `yaml:"provider" env:"SECRETS_PROVIDER"`
	AWSRegion     string `yaml:"aws_region" env:"SECRETS_AWS_REGION"`
	AWSSecretName string `yaml:"aws_secret_name" env:"SECRETS_AWS_SECRET_NAME"`
}

// WebSocketConfig holds collaboration connection settings
type WebSocketConfig struct {
	DragDebounce    time.Duration `yaml:"drag_debounce" env:"WEBSOCKET_DRAG_DEBOUNCE"`
	DrawingTimeout  time.Duration `yaml:"drawing_timeout" env:"WEBSOCKET_DRAWING_TIMEOUT"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" env:"WEBSOCKET_MAX_MESSAGE_BYTES"`
	SendBufferSize  int           `yaml:"send_buffer_size" env:"WEBSOCKET_SEND_BUFFER_SIZE"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"WEBSOCKET_PING_INTERVAL"`
	PongWait        time.Duration `yaml:"pong_wait" env:"WEBSOCKET_PONG_WAIT"`
	WriteWait       time.Duration `yaml:"write_wait" env:"WEBSOCKET_WRITE_WAIT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"WEBSOCKET_ALLOWED_ORIGINS"`
}

// EventLogConfig holds persistence worker settings
type EventLogConfig struct {
	QueueSize    int           `yaml:"queue_size" env:"EVENTLOG_QUEUE_SIZE"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"EVENTLOG_WRITE_TIMEOUT"`
}

// ProfileConfig holds user directory settings
type ProfileConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"PROFILE_CACHE_TTL"`
}

// TelemetryConfig holds metrics and tracing settings
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" env:"TELEMETRY_SERVICE_NAME"`
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"TELEMETRY_METRICS_ENABLED"`
	TracingEnabled bool   `yaml:"tracing_enabled" env:"TELEMETRY_TRACING_ENABLED"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"TELEMETRY_OTLP_ENDPOINT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	IsTest           bool   `yaml:"is_test" env:"LOGGING_IS_TEST"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
	LogWebSocketMsg  bool   `yaml:"log_websocket_messages" env:"LOGGING_LOG_WEBSOCKET_MESSAGES"`
	RedactAuthTokens bool   `yaml:"redact_auth_tokens" env:"LOGGING_REDACT_AUTH_TOKENS"`
}

// Supported database types
const (
	DatabaseTypePostgres  = "postgres"
	DatabaseTypeMySQL     = "mysql"
	DatabaseTypeSQLServer = "sqlserver"
	DatabaseTypeSQLite    = "sqlite"
)

// Load loads configuration from YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Interface:       "0.0.0.0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Type: DatabaseTypeSQLite,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5432",
				User:     "postgres",
				Database: "whiteboard",
				SSLMode:  "disable",
			},
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     "3306",
				User:     "root",
				Database: "whiteboard",
			},
			SQLServer: SQLServerConfig{
				Host:     "localhost",
				Port:     "1433",
				User:     "sa",
				Database: "whiteboard",
			},
			SQLite: SQLiteConfig{
				Path: "data/whiteboard.db",
			},
		},
		Redis: RedisConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    "6379",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				SigningMethod: "HS256",
				UserIDClaim:   "userId",
			},
		},
		WebSocket: WebSocketConfig{
			DragDebounce:    100 * time.Millisecond,
			DrawingTimeout:  2 * time.Second,
			MaxMessageBytes: 512 * 1024,
			SendBufferSize:  256,
			PingInterval:    30 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
		},
		EventLog: EventLogConfig{
			QueueSize:    1024,
			WriteTimeout: 5 * time.Second,
		},
		Profile: ProfileConfig{
			CacheTTL: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "whiteboard",
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            true,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
			RedactAuthTokens: true,
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(config *Config, filename string) error {
	data, err := os.ReadFile(filename) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// overrideWithEnv overrides configuration values with environment variables
func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

// overrideStructWithEnv recursively overrides struct fields with environment variables
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := envutil.Lookup(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field type
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		field.SetInt(int64(intVal))
	case reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int64 value: %s", value)
			}
			field.SetInt(intVal)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				slice = append(slice, trimmed)
			}
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate validates the configuration. The JWT secret is checked separately by
// ValidateSecrets because it may arrive from the secrets provider after Load.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Type {
	case DatabaseTypeSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case DatabaseTypePostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres host and database are required")
		}
	case DatabaseTypeMySQL:
		if c.Database.MySQL.Host == "" || c.Database.MySQL.Database == "" {
			return fmt.Errorf("mysql host and database are required")
		}
	case DatabaseTypeSQLServer:
		if c.Database.SQLServer.Host == "" || c.Database.SQLServer.Database == "" {
			return fmt.Errorf("sqlserver host and database are required")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}

	if c.Redis.Enabled && (c.Redis.Host == "" || c.Redis.Port == "") {
		return fmt.Errorf("redis host and port are required when redis is enabled")
	}

	switch c.Auth.JWT.SigningMethod {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported jwt signing method: %q", c.Auth.JWT.SigningMethod)
	}

	if c.WebSocket.DragDebounce <= 0 {
		return fmt.Errorf("websocket drag debounce must be greater than 0")
	}
	if c.WebSocket.DrawingTimeout <= 0 {
		return fmt.Errorf("websocket drawing timeout must be greater than 0")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket send buffer size must be greater than 0")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket ping interval must be shorter than pong wait")
	}
	if c.EventLog.QueueSize <= 0 {
		return fmt.Errorf("eventlog queue size must be greater than 0")
	}

	return nil
}

// ValidateSecrets checks values that may be filled in from a secrets provider
func (c *Config) ValidateSecrets() error {
	if c.Auth.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	return nil
}

// IsTestMode returns true if running in test mode
func (c *Config) IsTestMode() bool {
	return c.Logging.IsTest || isRunningInTest()
}

// isRunningInTest detects if we're running under 'go test'
func isRunningInTest() bool {
	return flag.Lookup("test.v") != nil
}

// GetLogLevel returns the parsed log level
func (c *Config) GetLogLevel() slogging.LogLevel {
	return slogging.ParseLogLevel(c.Logging.Level)
}

// ListenAddress returns the host:port the HTTP server binds to
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Interface, c.Server.Port)
}

// RedisAddress returns the host:port of the Redis server
func (c *Config) RedisAddress() string {
	return net.JoinHostPort(c.Redis.Host, c.Redis.Port)
}

// WebSocketLogging returns the frame logging settings for the slogging package
func (c *Config) WebSocketLogging() slogging.WebSocketLoggingConfig {
	return slogging.WebSocketLoggingConfig{
		Enabled:        c.Logging.LogWebSocketMsg,
		RedactTokens:   c.Logging.RedactAuthTokens,
		MaxMessageSize: 64 * 1024,
	}
}
