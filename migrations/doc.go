// Package migrations scaffolds new upgrade scripts.
//
// A scaffolded script is named [<module>.]<from>-<to>.sql and starts with a
// comment header the scanner reads dependency declarations from:
//
//	-- upgrade module [orders] from 1.0 to 1.1
//	-- module dependency: customers 2.0
//
// The script body follows the header. Placeholders such as {{DatabaseName}}
// or $(Schema) are substituted when the script runs.
package migrations
