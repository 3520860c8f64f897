package migrations

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/version"
)

func TestScript_Render(t *testing.T) {
	tests := []struct {
		name   string
		script Script
		want   string
	}{
		{
			name:   "default module",
			script: Script{From: version.MustParse("1.0"), To: version.MustParse("2.0")},
			want:   "-- upgrade from 1.0 to 2.0\n\n",
		},
		{
			name: "module with dependencies",
			script: Script{
				Module: "orders",
				From:   version.MustParse("1.0"),
				To:     version.MustParse("1.1"),
				Dependencies: []scripts.Dependency{
					{Module: "customers", Version: version.MustParse("2.0")},
					{Module: "billing", Version: version.MustParse("1.0.3")},
				},
			},
			want: "-- upgrade module [orders] from 1.0 to 1.1\n" +
				"-- module dependency: customers 2.0\n" +
				"-- module dependency: billing 1.0.3\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.script.Render(&buf); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Render() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestScript_Validate(t *testing.T) {
	tests := []struct {
		name   string
		script Script
	}{
		{name: "missing from", script: Script{To: version.MustParse("1.0")}},
		{name: "downgrade", script: Script{From: version.MustParse("2.0"), To: version.MustParse("1.0")}},
		{name: "same version", script: Script{From: version.MustParse("1.0"), To: version.MustParse("1.0")}},
		{name: "path in module", script: Script{Module: "a/b", From: version.MustParse("1.0"), To: version.MustParse("2.0")}},
		{
			name: "self dependency",
			script: Script{Module: "orders", From: version.MustParse("1.0"), To: version.MustParse("2.0"),
				Dependencies: []scripts.Dependency{{Module: "Orders", Version: version.MustParse("1.0")}}},
		},
		{
			name: "duplicate dependency",
			script: Script{From: version.MustParse("1.0"), To: version.MustParse("2.0"),
				Dependencies: []scripts.Dependency{
					{Module: "a", Version: version.MustParse("1.0")},
					{Module: "A", Version: version.MustParse("2.0")},
				}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.script.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestScript_FileName(t *testing.T) {
	script := Script{From: version.MustParse("1.0"), To: version.MustParse("1.1")}
	if got := script.FileName(""); got != "1.0-1.1.sql" {
		t.Errorf("FileName() = %q", got)
	}

	script.Module = "orders"
	if got := script.FileName("pgsql"); got != "orders.1.0-1.1.pgsql" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestScript_WriteIsScanned(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "scripts")
	script := Script{
		Module:       "orders",
		From:         version.MustParse("1.0"),
		To:           version.MustParse("1.1"),
		Dependencies: []scripts.Dependency{{Module: "customers", Version: version.MustParse("2.0")}},
	}

	path, err := script.Write(folder, ".sql")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if filepath.Base(path) != "orders.1.0-1.1.sql" {
		t.Errorf("path = %s", path)
	}

	if _, err := script.Write(folder, ".sql"); err == nil {
		t.Error("expected an error when the file exists")
	}

	found, err := scripts.NewScanner().Scan([]string{folder})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Scan() found %d scripts, want 1", len(found))
	}
	if found[0].ModuleName != "orders" || found[0].To.String() != "1.1" {
		t.Errorf("scanned script = %+v", found[0])
	}

	deps, err := found[0].Dependencies()
	if err != nil {
		t.Fatalf("Dependencies() error = %v", err)
	}
	if len(deps) != 1 || deps[0].String() != "customers 2.0" {
		t.Errorf("Dependencies() = %v", deps)
	}
}

func TestScript_WriteInvalid(t *testing.T) {
	folder := t.TempDir()
	if _, err := (Script{}).Write(folder, ""); err == nil {
		t.Fatal("expected an error")
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("an invalid script must not create files, found %d", len(entries))
	}
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "customers:2.0", want: "customers 2.0"},
		{input: "customers 2.0.1", want: "customers 2.0.1"},
		{input: " billing : 1.0 ", want: "billing 1.0"},
		{input: "customers", wantErr: true},
		{input: ":1.0", wantErr: true},
		{input: "customers:x", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDependency(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDependency(%q) expected an error", tt.input)
			}
			continue
		}
		if err != nil || got.String() != tt.want {
			t.Errorf("ParseDependency(%q) = %v, %v, want %s", tt.input, got, err, tt.want)
		}
	}
}
