package scripts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/logger"
)

// Scanner expands script sources into a flat list of scripts
type Scanner struct {
	// Extensions recognised as scripts, DefaultExtensions when empty
	Extensions []string

	// FolderAsModuleName takes the module name from the folder containing the
	// script instead of the file name prefix
	FolderAsModuleName bool
}

// NewScanner creates a scanner with the default extensions
func NewScanner() *Scanner {
	return &Scanner{Extensions: DefaultExtensions}
}

// Files lists the scripts found in sources without interpreting their names.
// Sources are visited in the given order and folders are walked in lexical
// order, so the result is stable for the same tree.
func (s *Scanner) Files(sources []string) ([]*Script, error) {
	var result []*Script

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errs.Config("source %s not found", source)
			}
			return nil, fmt.Errorf("failed to read source %s: %w", source, err)
		}

		if !info.IsDir() {
			if _, ok := TrimExtension(info.Name(), s.Extensions); !ok {
				return nil, errs.Config("file %s is not a script: expected extension %v", source, s.extensions())
			}
			result = append(result, &Script{DisplayName: info.Name(), Path: source})
			continue
		}

		found := 0
		err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := TrimExtension(d.Name(), s.Extensions); !ok {
				return nil
			}

			rel, err := filepath.Rel(source, path)
			if err != nil {
				return err
			}
			result = append(result, &Script{DisplayName: filepath.ToSlash(rel), Path: path})
			found++
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder %s: %w", source, err)
		}

		logger.Debugf("found %d script(s) in %s", found, source)
	}

	return result, nil
}

// Scan lists the scripts found in sources and parses module and versions
// from their names. A malformed name fails the scan.
func (s *Scanner) Scan(sources []string) ([]*Script, error) {
	files, err := s.Files(sources)
	if err != nil {
		return nil, err
	}

	for _, script := range files {
		base, _ := TrimExtension(filepath.Base(script.Path), s.Extensions)

		var name Name
		if s.FolderAsModuleName {
			name, err = ParseVersionPart(base)
			name.Module = filepath.Base(filepath.Dir(script.Path))
		} else {
			name, err = ParseName(base)
		}
		if err != nil {
			return nil, errs.Config("invalid script name %s: %v", script.Path, err)
		}

		script.ModuleName = name.Module
		script.From = name.From
		script.To = name.To
	}

	return files, nil
}

func (s *Scanner) extensions() []string {
	if len(s.Extensions) == 0 {
		return DefaultExtensions
	}
	return s.Extensions
}
