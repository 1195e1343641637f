package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Realtime  RealtimeConfig
	AMQP      AMQPConfig
	Mail      MailConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           []string
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. Redis is optional unless realtime needs it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// ManagerEmails may sign up with the manager role; everyone else is refused.
	ManagerEmails []string
	// EmailDomain, when set, restricts signup to that campus domain.
	EmailDomain string
}

// LifecycleConfig tunes the issue state machine.
type LifecycleConfig struct {
	ResolutionWindowSeconds int
	SweepIntervalSeconds    int
}

// RealtimeConfig tunes the websocket gateway.
type RealtimeConfig struct {
	SendBuffer          int
	WriteTimeoutSeconds int
	// RedisPresence shares presence and delivery across nodes through Redis.
	RedisPresence bool
	PresenceKey   string
	FanoutChannel string
	// PresenceTTLSeconds is how long a silent node's sockets stay listed.
	PresenceTTLSeconds int
}

// AMQPConfig points the event exporter at a broker. Empty URL disables it.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// MailConfig holds SMTP settings for resolution notices. Empty Host disables mail.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "campus-helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 7*24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
			ManagerEmails:         getEnvAsList("AUTH_MANAGER_EMAILS", nil),
			EmailDomain:           getEnv("AUTH_EMAIL_DOMAIN", ""),
		},
		Lifecycle: LifecycleConfig{
			ResolutionWindowSeconds: getEnvAsInt("LIFECYCLE_RESOLUTION_WINDOW_SECONDS", 120),
			SweepIntervalSeconds:    getEnvAsInt("LIFECYCLE_SWEEP_INTERVAL_SECONDS", 15),
		},
		Realtime: RealtimeConfig{
			SendBuffer:          getEnvAsInt("REALTIME_SEND_BUFFER", 32),
			WriteTimeoutSeconds: getEnvAsInt("REALTIME_WRITE_TIMEOUT_SECONDS", 10),
			RedisPresence:       getEnvAsBool("REALTIME_REDIS_PRESENCE", false),
			PresenceKey:         getEnv("REALTIME_PRESENCE_KEY", "helpdesk:presence"),
			FanoutChannel:       getEnv("REALTIME_FANOUT_CHANNEL", "helpdesk:realtime"),
			PresenceTTLSeconds:  getEnvAsInt("REALTIME_PRESENCE_TTL_SECONDS", 30),
		},
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "helpdesk.events"),
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "helpdesk@campus.example"),
		},
	}

	if cfg.Realtime.RedisPresence && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("REALTIME_REDIS_PRESENCE requires REDIS_ADDR")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ResolutionWindow returns the assigned-issue resolution window.
func (l LifecycleConfig) ResolutionWindow() time.Duration {
	if l.ResolutionWindowSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(l.ResolutionWindowSeconds) * time.Second
}

// SweepInterval returns how often overdue issues are expired in the background.
// Zero disables the sweep.
func (l LifecycleConfig) SweepInterval() time.Duration {
	if l.SweepIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(l.SweepIntervalSeconds) * time.Second
}

// WriteTimeout returns the per-frame websocket write deadline.
func (r RealtimeConfig) PresenceTTL() time.Duration {
	return time.Duration(r.PresenceTTLSeconds) * time.Second
}

func (r RealtimeConfig) WriteTimeout() time.Duration {
	if r.WriteTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.WriteTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
