package migrations

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/version"
)

// ScriptTemplate is the text of a new upgrade script
const ScriptTemplate = `-- upgrade {{if .Module}}module [{{.Module}}] {{end}}from {{.From}} to {{.To}}
{{- range .Dependencies}}
-- module dependency: {{.Module}} {{.Version}}
{{- end}}

`

var scriptTemplate = template.Must(template.New("script").Parse(ScriptTemplate))

// Script describes an upgrade script to scaffold
type Script struct {
	Module       string
	From         version.Version
	To           version.Version
	Dependencies []scripts.Dependency
}

// Validate checks the versions and the dependency list
func (s Script) Validate() error {
	if s.From.IsZero() || s.To.IsZero() {
		return errors.New("both the from and the to version are required")
	}
	if !s.From.Less(s.To) {
		return fmt.Errorf("version %s must be lower than version %s", s.From, s.To)
	}
	if strings.ContainsAny(s.Module, `/\ `) {
		return fmt.Errorf("invalid module name %q", s.Module)
	}

	seen := make(map[string]bool)
	for _, dep := range s.Dependencies {
		key := strings.ToLower(dep.Module)
		if strings.EqualFold(dep.Module, s.Module) {
			return fmt.Errorf("module [%s] cannot depend on itself", s.Module)
		}
		if seen[key] {
			return fmt.Errorf("module %s is listed as a dependency more than once", dep.Module)
		}
		seen[key] = true
	}
	return nil
}

// FileName returns the script file name for extension ext
func (s Script) FileName(ext string) string {
	if ext == "" {
		ext = scripts.DefaultExtensions[0]
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name := s.From.String() + "-" + s.To.String() + ext
	if s.Module != "" {
		name = s.Module + "." + name
	}
	return name
}

// Render writes the script text to w
func (s Script) Render(w io.Writer) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return scriptTemplate.Execute(w, s)
}

// Write creates the script in folder and returns its path. An existing file
// is never overwritten.
func (s Script) Write(folder, ext string) (string, error) {
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", folder, err)
	}

	path := filepath.Join(folder, s.FileName(ext))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", path, err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return path, nil
}

// ParseDependency parses a "<module> <version>" or "<module>:<version>" pair
func ParseDependency(text string) (scripts.Dependency, error) {
	module, v, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		module, v, ok = strings.Cut(strings.TrimSpace(text), " ")
	}
	module = strings.TrimSpace(module)
	if !ok || module == "" {
		return scripts.Dependency{}, fmt.Errorf("invalid dependency %q: expected <module>:<version>", text)
	}

	parsed, err := version.Parse(v)
	if err != nil {
		return scripts.Dependency{}, fmt.Errorf("invalid dependency %q: %w", text, err)
	}
	return scripts.Dependency{Module: module, Version: parsed}, nil
}
