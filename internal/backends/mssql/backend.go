package mssql

import (
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/scripts"
)

const (
	// Name is the engine name
	Name = "mssql"

	driverName     = "sqlserver"
	masterDatabase = "master"

	defaultSelectVersion = "SELECT version FROM dbo.version WHERE module_name = '{{ModuleName}}'"
	defaultUpdateVersion = "UPDATE dbo.version SET version = '{{TargetVersion}}' WHERE module_name = '{{ModuleName}}'"
)

var (
	serverKeyword   = regexp.MustCompile(`(?i)(^|;)\s*(server|data source)\s*=`)
	databaseKeyword = regexp.MustCompile(`(?i)(^|;)\s*(database|initial catalog)\s*=`)
)

// Adapter implements backends.Adapter for SQL Server
type Adapter struct {
	connString string
	database   string
	overrides  backends.Scripts
}

// CanBe reports whether connString is a sqlserver:// URL or an ADO string
// with a server and a database
func CanBe(connString string) bool {
	isURL := strings.HasPrefix(strings.ToLower(strings.TrimSpace(connString)), "sqlserver://")
	if !isURL && !(serverKeyword.MatchString(connString) && databaseKeyword.MatchString(connString)) {
		return false
	}

	_, err := msdsn.Parse(connString)
	return err == nil
}

// NewAdapter creates a SQL Server adapter
func NewAdapter(connString string, overrides backends.Scripts) (*Adapter, error) {
	config, err := msdsn.Parse(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid SQL Server connection string: %w", err)
	}

	return &Adapter{
		connString: connString,
		database:   config.Database,
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

// DatabaseName returns the database of the connection string
func (a *Adapter) DatabaseName() string {
	return a.database
}

// Open opens a connection pool; the maintenance connection targets master
func (a *Adapter) Open(useMaster bool) (*sql.DB, error) {
	connString := a.connString
	if useMaster {
		var err error
		connString, err = withDatabase(a.connString, masterDatabase)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL Server connection: %w", err)
	}
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
	return "SELECT @@VERSION"
}

func (a *Adapter) DatabaseExistsScript(databaseName string) string {
	return fmt.Sprintf("SELECT 1 FROM sys.databases WHERE name = N'%s'", strings.ReplaceAll(databaseName, "'", "''"))
}

// Split splits the script on GO lines
func (a *Adapter) Split(text string) []string {
	return scripts.SplitGoBatches(text)
}

// withDatabase replaces the database of a URL or ADO connection string
func withDatabase(connString, database string) (string, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(connString)), "sqlserver://") {
		u, err := url.Parse(strings.TrimSpace(connString))
		if err != nil {
			return "", fmt.Errorf("invalid SQL Server connection string: %w", err)
		}
		query := u.Query()
		query.Set("database", database)
		u.RawQuery = query.Encode()
		return u.String(), nil
	}

	var parts []string
	for _, part := range strings.Split(connString, ";") {
		key, _, _ := strings.Cut(part, "=")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "database", "initial catalog":
			continue
		case "":
			if strings.TrimSpace(part) == "" {
				continue
			}
		}
		parts = append(parts, part)
	}
	parts = append(parts, "Database="+database)
	return strings.Join(parts, ";"), nil
}
