package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr    string
	HTTPSAddr   string
	TLSCertFile string
	TLSKeyFile  string

	LogLevel  string
	LogFormat string // json or pretty
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	Store string

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	MongoURL string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	cfg := Config{
		HTTPAddr:    EnvString("CHAT_HTTP_ADDR", "0.0.0.0:4001"),
		HTTPSAddr:   EnvString("CHAT_HTTPS_ADDR", ""),
		TLSCertFile: EnvString("CHAT_TLS_CERT_FILE", ""),
		TLSKeyFile:  EnvString("CHAT_TLS_KEY_FILE", ""),

		LogLevel:  EnvString("CHAT_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(EnvString("CHAT_LOG_FORMAT", "json")),
		LogColor:  EnvBool("CHAT_LOG_COLOR", false),

		ReadHeaderTimeout: EnvDuration("CHAT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CHAT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CHAT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CHAT_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("CHAT_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("CHAT_SHUTDOWN_TIMEOUT", 10*time.Second),

		Store: strings.ToLower(EnvString("CHAT_STORE", "")),

		DatabaseURL: EnvString("CHAT_DATABASE_URL", ""),
		DBSchema:    EnvString("CHAT_DB_SCHEMA", "chat"),
		DBMaxConns:  EnvInt32("CHAT_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CHAT_DB_MIN_CONNS", 0),

		MongoURL: EnvString("CHAT_MONGO_URL", ""),
		MongoDB:  EnvString("CHAT_MONGO_DB", "chat"),

		RedisAddr:     EnvString("CHAT_REDIS_ADDR", ""),
		RedisPassword: EnvString("CHAT_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("CHAT_REDIS_DB", 0),

		CORSAllowedOrigins:   EnvCSV("CHAT_CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		CORSAllowCredentials: EnvBool("CHAT_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("CHAT_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("CHAT_READINESS_REQUIRE_DB", false),
	}

	// Infer the backend from whichever URL is set when CHAT_STORE is omitted.
	if cfg.Store == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.Store = StorePostgres
		case cfg.MongoURL != "":
			cfg.Store = StoreMongo
		default:
			cfg.Store = StoreMemory
		}
	}
	return cfg
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: CHAT_STORE=postgres requires CHAT_DATABASE_URL")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			return errors.New("config: CHAT_STORE=mongo requires CHAT_MONGO_URL")
		}
	default:
		return fmt.Errorf("config: unknown CHAT_STORE %q", c.Store)
	}

	if c.HTTPSAddr != "" && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return errors.New("config: CHAT_HTTPS_ADDR requires CHAT_TLS_CERT_FILE and CHAT_TLS_KEY_FILE")
	}

	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("config: unknown CHAT_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
