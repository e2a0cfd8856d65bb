// Package config loads the loader's settings from environment variables
// and the per-entity catalogue from a YAML file.
//
// Environment settings are validated on startup so a misconfigured run
// fails before it touches the store.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Import   ImportConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds the graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout. Imports run inside the
	// request, so this must cover the slowest expected file.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// HistorySize is how many finished runs the server remembers.
	HistorySize int `env:"SERVER_HISTORY_SIZE" default:"50"`

	// MaxPendingRuns is how many imports may run or wait at once (default: 4)
	MaxPendingRuns int `env:"SERVER_MAX_PENDING_RUNS" default:"4"`

	// RunWait is how long a request waits for a run slot (default: 30s)
	RunWait time.Duration `env:"SERVER_RUN_WAIT" default:"30s"`
}

// Store protocols.
const (
	ProtocolJSONRPC  = "jsonrpc"
	ProtocolPostgres = "postgres"
	ProtocolMemory   = "memory"
)

// StoreConfig selects and addresses the record store.
type StoreConfig struct {
	// Protocol is jsonrpc, postgres or memory (default: jsonrpc)
	Protocol string `env:"CLODOO_PROTOCOL" default:"jsonrpc"`

	URL      string `env:"CLODOO_URL" default:"http://localhost:8069"`
	Database string `env:"CLODOO_DB" envAlt:"PGDATABASE"`

	// Users and Passwords are comma-separated lists tried in order at login.
	Users     []string `env:"CLODOO_LOGIN_USER" default:"admin"`
	Passwords []string `env:"CLODOO_LOGIN_PASSWORD" default:"admin"`

	LoginRetries int           `env:"CLODOO_LOGIN_RETRIES" default:"3"`
	Timeout      time.Duration `env:"CLODOO_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds pool settings for the postgres protocol.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds the ambient settings of an import run.
type ImportConfig struct {
	// DataPath is the directory relative file names are resolved against.
	DataPath string `env:"CLODOO_DATA_PATH" default:"."`

	DryRun      bool `env:"CLODOO_DRY_RUN" default:"false"`
	ExitOnError bool `env:"CLODOO_EXIT_ON_ERROR" default:"false"`

	// DBType is matched against the db_type column of each row (default: C)
	DBType string `env:"CLODOO_DB_TYPE" default:"C"`

	// SchemaVersion is the store's schema version, e.g. 12.0. Left empty it
	// is taken from the server when the protocol reports one.
	SchemaVersion string `env:"CLODOO_OE_VERSION"`

	// CompanyName selects the ambient company when it is not the main one.
	CompanyName string `env:"CLODOO_COMPANY"`
	CompanyID   int64  `env:"CLODOO_COMPANY_ID" default:"0"`

	// AliasModule is the module used for aliases written without one.
	AliasModule string `env:"CLODOO_ALIAS_MODULE" default:"base"`

	NoFieldValidation bool `env:"CLODOO_NO_VALIDATE" default:"false"`

	// CatalogPath points at the YAML catalogue (optional).
	CatalogPath string `env:"CLODOO_CATALOG"`

	// CryptKey decrypts "$1$!" values. Empty disables decryption.
	CryptKey string `env:"CLODOO_CRYPT_KEY"`

	// MaxFileSize caps uploads accepted by the web server (default: 100MB)
	MaxFileSize int64 `env:"CLODOO_MAX_FILE_SIZE" default:"104857600"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
