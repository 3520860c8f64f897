package scripts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toolsascode/sqldatabase/internal/errs"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create folder: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func displayNames(scripts []*Script) []string {
	names := make([]string, len(scripts))
	for i, s := range scripts {
		names[i] = s.DisplayName
	}
	return names
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b/core.2.0-3.0.sql":   "SELECT 1;",
		"a/core.1.0-2.0.sql":   "SELECT 1;",
		"a/orders.1.0-1.1.sql": "SELECT 1;",
		"a/notes.txt":          "not a script",
		"core.1.0.sql":         "CREATE TABLE t (id int);",
	})

	scanner := NewScanner()
	got, err := scanner.Scan([]string{root})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"a/core.1.0-2.0.sql", "a/orders.1.0-1.1.sql", "b/core.2.0-3.0.sql", "core.1.0.sql"}
	if strings.Join(displayNames(got), ",") != strings.Join(want, ",") {
		t.Fatalf("Scan() = %v, want %v", displayNames(got), want)
	}

	first := got[0]
	if first.ModuleName != "core" || first.From.String() != "1.0" || first.To.String() != "2.0" {
		t.Errorf("first script = %s %s-%s", first.ModuleName, first.From, first.To)
	}
	if !first.IsUpgrade() || first.IsCreation() {
		t.Error("first script should be an upgrade script")
	}
	if last := got[3]; !last.IsCreation() || last.To.String() != "1.0" {
		t.Errorf("last script should create core 1.0, got %s", last.To)
	}
}

func TestScanner_SourceOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFiles(t, first, map[string]string{"z.1.0-2.0.sql": ""})
	writeFiles(t, second, map[string]string{"a.1.0-2.0.sql": ""})

	got, err := NewScanner().Scan([]string{first, second})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if names := displayNames(got); len(names) != 2 || names[0] != "z.1.0-2.0.sql" || names[1] != "a.1.0-2.0.sql" {
		t.Errorf("sources were not scanned in the given order: %v", names)
	}
}

func TestScanner_FolderAsModuleName(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Billing/1.0-2.0.sql": "",
		"Users/1.0-1.1.sql":   "",
	})

	scanner := &Scanner{FolderAsModuleName: true}
	got, err := scanner.Scan([]string{root})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 2 || got[0].ModuleName != "Billing" || got[1].ModuleName != "Users" {
		t.Fatalf("unexpected modules: %+v", got)
	}

	writeFiles(t, root, map[string]string{"Users/users.1.1-1.2.sql": ""})
	if _, err := scanner.Scan([]string{root}); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for a prefixed name, got %v", err)
	}
}

func TestScanner_MalformedName(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"core.1.0-two.sql": ""})

	_, err := NewScanner().Scan([]string{root})
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "core.1.0-two.sql") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestScanner_Files(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"seed.sql":   "INSERT INTO t VALUES (1);",
		"readme.txt": "",
	})

	got, err := NewScanner().Files([]string{root})
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(got) != 1 || got[0].DisplayName != "seed.sql" {
		t.Errorf("Files() = %v", displayNames(got))
	}
}

func TestScanner_ExplicitFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"1.0-2.0.sql": "",
		"notes.txt":   "",
	})

	got, err := NewScanner().Scan([]string{filepath.Join(root, "1.0-2.0.sql")})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].DisplayName != "1.0-2.0.sql" {
		t.Errorf("Scan() = %v", displayNames(got))
	}

	if _, err := NewScanner().Scan([]string{filepath.Join(root, "notes.txt")}); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for a non-script file, got %v", err)
	}
	if _, err := NewScanner().Scan([]string{filepath.Join(root, "missing")}); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("expected configuration error for a missing source, got %v", err)
	}
}

func TestScript_Dependencies(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.2.0-3.0.sql": "/*\n* module dependency: b 2.0\n*/\nALTER TABLE a ADD b_id int;",
	})

	got, err := NewScanner().Scan([]string{root})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	deps, err := got[0].Dependencies()
	if err != nil {
		t.Fatalf("Dependencies() error = %v", err)
	}
	if len(deps) != 1 || deps[0].Module != "b" || deps[0].Version.String() != "2.0" {
		t.Errorf("Dependencies() = %v", deps)
	}

	text, err := got[0].ReadText()
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if !strings.HasSuffix(text, "ADD b_id int;") {
		t.Errorf("ReadText() = %q", text)
	}
}
