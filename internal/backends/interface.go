package backends

import (
	"database/sql"
	"os"
	"strconv"
	"time"
)

// Adapter hides the differences between the supported database engines
type Adapter interface {
	// Name returns the engine name (e.g., "postgresql", "mysql", "mssql", "sqlite")
	Name() string

	// DatabaseName returns the target database named by the connection string
	DatabaseName() string

	// Open opens the target database, or the engine's maintenance database when
	// useMaster is set
	Open(useMaster bool) (*sql.DB, error)

	// VersionSelectScript reads the current version of {{ModuleName}}
	VersionSelectScript() string

	// VersionUpdateScript writes {{TargetVersion}} for {{ModuleName}}
	VersionUpdateScript() string

	// ServerVersionScript returns a one row description of the server
	ServerVersionScript() string

	// DatabaseExistsScript returns a query with a row when databaseName exists
	DatabaseExistsScript(databaseName string) string

	// Split splits a script into the batches sent to the server
	Split(text string) []string
}

// Scripts overrides the version scripts of an adapter. Empty fields keep the
// engine defaults.
type Scripts struct {
	GetCurrentVersion string
	SetCurrentVersion string
}

// Merge returns s with empty fields taken from fallback
func (s Scripts) Merge(fallback Scripts) Scripts {
	if s.GetCurrentVersion == "" {
		s.GetCurrentVersion = fallback.GetCurrentVersion
	}
	if s.SetCurrentVersion == "" {
		s.SetCurrentVersion = fallback.SetCurrentVersion
	}
	return s
}

// ConfigurePool configures the database connection pool with defaults that
// can be overridden via environment variables
func ConfigurePool(db *sql.DB) {
	db.SetMaxOpenConns(getEnvInt("SQLDATABASE_DB_MAX_OPEN_CONNS", 2))
	db.SetMaxIdleConns(getEnvInt("SQLDATABASE_DB_MAX_IDLE_CONNS", 1))
	db.SetConnMaxLifetime(time.Duration(getEnvInt("SQLDATABASE_DB_CONN_MAX_LIFETIME_MINUTES", 5)) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(getEnvInt("SQLDATABASE_DB_CONN_MAX_IDLE_TIME_MINUTES", 1)) * time.Minute)
}

// getEnvInt gets an integer environment variable or returns the default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
