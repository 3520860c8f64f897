package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/scripts"
)

const (
	// Name is the engine name
	Name = "sqlite"

	driverName = "sqlite"

	defaultSelectVersion = "SELECT version FROM version WHERE module_name = '{{ModuleName}}'"
	defaultUpdateVersion = "UPDATE version SET version = '{{TargetVersion}}' WHERE module_name = '{{ModuleName}}'"
)

var fileSuffixes = []string{".db", ".sqlite", ".sqlite3"}

// Adapter implements backends.Adapter for SQLite files
type Adapter struct {
	connString string
	overrides  backends.Scripts
}

// CanBe reports whether connString is a file: URI or a path to a .db,
// .sqlite or .sqlite3 file
func CanBe(connString string) bool {
	text := strings.TrimSpace(connString)
	if text == "" || strings.Contains(text, "://") {
		return false
	}
	if strings.HasPrefix(strings.ToLower(text), "file:") {
		return true
	}

	path := strings.ToLower(filePath(text))
	for _, suffix := range fileSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// NewAdapter creates a SQLite adapter
func NewAdapter(connString string, overrides backends.Scripts) (*Adapter, error) {
	if !CanBe(connString) {
		return nil, fmt.Errorf("invalid SQLite connection string %q", connString)
	}

	return &Adapter{
		connString: strings.TrimSpace(connString),
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

// DatabaseName returns the file name without extension
func (a *Adapter) DatabaseName() string {
	base := filepath.Base(filePath(a.connString))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open opens the database file. SQLite has no maintenance database, so
// useMaster is ignored.
func (a *Adapter) Open(useMaster bool) (*sql.DB, error) {
	db, err := sql.Open(driverName, a.connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (a *Adapter) VersionSelectScript() string {
	return a.overrides.GetCurrentVersion
}

func (a *Adapter) VersionUpdateScript() string {
	return a.overrides.SetCurrentVersion
}

func (a *Adapter) ServerVersionScript() string {
	return "SELECT sqlite_version()"
}

// DatabaseExistsScript always finds the database; opening a file creates it
func (a *Adapter) DatabaseExistsScript(databaseName string) string {
	return "SELECT 1"
}

// Split sends the whole script in one batch
func (a *Adapter) Split(text string) []string {
	return scripts.SplitWhole(text)
}

// filePath strips the file: prefix and the query of a connection string
func filePath(connString string) string {
	path := connString
	if strings.HasPrefix(strings.ToLower(path), "file:") {
		path = path[len("file:"):]
	}
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	return path
}
