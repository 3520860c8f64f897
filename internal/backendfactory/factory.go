package backendfactory

import (
	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/backends/mssql"
	"github.com/toolsascode/sqldatabase/internal/backends/mysql"
	"github.com/toolsascode/sqldatabase/internal/backends/postgresql"
	"github.com/toolsascode/sqldatabase/internal/backends/sqlite"
	"github.com/toolsascode/sqldatabase/internal/errs"
)

// AdapterConfig holds configuration for creating an adapter
type AdapterConfig struct {
	ConnectionString string
	Scripts          backends.Scripts            // Version scripts for every engine
	EngineScripts    map[string]backends.Scripts // Per engine overrides keyed by engine name
}

type engine struct {
	name   string
	canBe  func(string) bool
	create func(connString string, scripts backends.Scripts) (backends.Adapter, error)
}

var engines = []engine{
	{
		name:  mssql.Name,
		canBe: mssql.CanBe,
		create: func(connString string, scripts backends.Scripts) (backends.Adapter, error) {
			return mssql.NewAdapter(connString, scripts)
		},
	},
	{
		name:  postgresql.Name,
		canBe: postgresql.CanBe,
		create: func(connString string, scripts backends.Scripts) (backends.Adapter, error) {
			return postgresql.NewAdapter(connString, scripts)
		},
	},
	{
		name:  mysql.Name,
		canBe: mysql.CanBe,
		create: func(connString string, scripts backends.Scripts) (backends.Adapter, error) {
			return mysql.NewAdapter(connString, scripts)
		},
	},
	{
		name:  sqlite.Name,
		canBe: sqlite.CanBe,
		create: func(connString string, scripts backends.Scripts) (backends.Adapter, error) {
			return sqlite.NewAdapter(connString, scripts)
		},
	},
}

// Detect returns the names of the engines that accept the connection string
func Detect(connString string) []string {
	var names []string
	for _, e := range engines {
		if e.canBe(connString) {
			names = append(names, e.name)
		}
	}
	return names
}

// NewAdapter creates the adapter of the only engine that accepts the
// connection string
func NewAdapter(config *AdapterConfig) (backends.Adapter, error) {
	var matches []engine
	for _, e := range engines {
		if e.canBe(config.ConnectionString) {
			matches = append(matches, e)
		}
	}

	if len(matches) != 1 {
		return nil, errs.Config("could not determine the database type from the provided connection string")
	}

	e := matches[0]
	scripts := config.EngineScripts[e.name].Merge(config.Scripts)

	adapter, err := e.create(config.ConnectionString, scripts)
	if err != nil {
		return nil, errs.Config("%v", err)
	}
	return adapter, nil
}
