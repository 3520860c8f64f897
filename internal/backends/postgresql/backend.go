package postgresql

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/scripts"
)

const (
	// Name is the engine name
	Name = "postgresql"

	masterDatabase = "postgres"

	defaultSelectVersion = "SELECT version FROM public.version WHERE module_name = '{{ModuleName}}'"
	defaultUpdateVersion = "UPDATE public.version SET version = '{{TargetVersion}}' WHERE module_name = '{{ModuleName}}'"
)

var (
	hostKeyword   = regexp.MustCompile(`(?i)(^|\s)host\s*=`)
	dbnameKeyword = regexp.MustCompile(`(?i)(^|\s)dbname\s*=`)
)

// Adapter implements backends.Adapter for PostgreSQL over pgx
type Adapter struct {
	config  *pgx.ConnConfig
	scripts backends.Scripts
}

// CanBe reports whether connString is a PostgreSQL connection string: a
// postgres:// URL or a keyword string with host and dbname
func CanBe(connString string) bool {
	lower := strings.ToLower(strings.TrimSpace(connString))
	isURL := strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
	if !isURL && !(hostKeyword.MatchString(connString) && dbnameKeyword.MatchString(connString)) {
		return false
	}

	_, err := pgx.ParseConfig(connString)
	return err == nil
}

// NewAdapter creates a PostgreSQL adapter
func NewAdapter(connString string, overrides backends.Scripts) (*Adapter, error) {
	config, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL connection string: %w", err)
	}

	return &Adapter{
		config: config,
		scripts: overrides.Merge(backends.Scripts{
			GetCurrentVersion: defaultSelectVersion,
			SetCurrentVersion: defaultUpdateVersion,
		}),
	}, nil
}

// Name returns the engine name
func (a *Adapter) Name() string {
	return Name
}

// DatabaseName returns the dbname of the connection string
func (a *Adapter) DatabaseName() string {
	return a.config.Database
}

// Open opens a connection pool through the pgx database/sql driver
func (a *Adapter) Open(useMaster bool) (*sql.DB, error) {
	config := a.config.Copy()
	if useMaster {
		config.Database = masterDatabase
	}

	db := stdlib.OpenDB(*config)
	backends.ConfigurePool(db)
	return db, nil
}

func (a *Adapter) VersionSelectScript() string {
	return a.scripts.GetCurrentVersion
}

func (a *Adapter) VersionUpdateScript() string {
	return a.scripts.SetCurrentVersion
}

func (a *Adapter) ServerVersionScript() string {
	return "SELECT version()"
}

func (a *Adapter) DatabaseExistsScript(databaseName string) string {
	return fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = '%s'", quoteLiteral(databaseName))
}

// Split sends the whole script in one batch; pgx runs multiple statements
// of a simple query together
func (a *Adapter) Split(text string) []string {
	return scripts.SplitWhole(text)
}

// quoteLiteral escapes a value placed inside single quotes
func quoteLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
