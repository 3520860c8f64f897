package mysql

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/scripts"
)

const (
	// Name is the engine name
	Name = "mysql"

	defaultSelectVersion = "SELECT version FROM version WHERE module_name = '{{ModuleName}}'"
	defaultUpdateVersion = "UPDATE version SET version = '{{TargetVersion}}' WHERE module_name = '{{ModuleName}}'"
)

// Adapter implements backends.Adapter for MySQL and MariaDB
type Adapter struct {
	config    *mysql.Config
	overrides backends.Scripts
}

// CanBe reports whether connString is a go-sql-driver DSN naming a user and a
// database, e.g. user:password@tcp(host:3306)/db
func CanBe(connString string) bool {
	if strings.Contains(connString, "://") || !strings.Contains(connString, "@") {
		return false
	}

	config, err := mysql.ParseDSN(connString)
	if err != nil {
		return false
	}
	return config.DBName != ""
}

// NewAdapter creates a MySQL adapter
func NewAdapter(connString string, overrides backends.Scripts) (*Adapter, error) {
	config, err := mysql.ParseDSN(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL connection string: %w", err)
	}

	return &Adapter{
		config: config,
		overrides: overrides.Merge(backends.Scripts{
			GetCurrentVersion: defaultSelectVersion,
			SetCurrentVersion: defaultUpdateVersion,
		}),
	}, nil
}

// Name returns the engine name
func (a *Adapter) Name() string {
	return Name
}

// DatabaseName returns the database of the DSN
func (a *Adapter) DatabaseName() string {
	return a.config.DBName
}

// Open opens a connection pool allowing several statements per batch. The
// maintenance connection has no default database.
func (a *Adapter) Open(useMaster bool) (*sql.DB, error) {
	config := a.config.Clone()
	config.MultiStatements = true
	if useMaster {
		config.DBName = ""
	}

	connector, err := mysql.NewConnector(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL connector: %w", err)
	}

	db := sql.OpenDB(connector)
	backends.ConfigurePool(db)
	return db, nil
}

func (a *Adapter) VersionSelectScript() string {
	return a.overrides.GetCurrentVersion
}

func (a *Adapter) VersionUpdateScript() string {
	return a.overrides.SetCurrentVersion
}

func (a *Adapter) ServerVersionScript() string {
	return "SELECT VERSION()"
}

func (a *Adapter) DatabaseExistsScript(databaseName string) string {
	return fmt.Sprintf("SELECT 1 FROM information_schema.schemata WHERE schema_name = '%s'",
		strings.ReplaceAll(databaseName, "'", "''"))
}

// Split sends the whole script in one batch
func (a *Adapter) Split(text string) []string {
	return scripts.SplitWhole(text)
}
