// Package scripts discovers migration scripts on disk and reads the parts of
// their content the sequencer cares about.
package scripts

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/version"
)

// Script is one runnable script file.
type Script struct {
	// DisplayName is the path relative to the source it was found in
	DisplayName string
	Path        string

	// ModuleName, From and To are set by Scanner.Scan; From is zero for
	// creation scripts
	ModuleName string
	From       version.Version
	To         version.Version
}

// IsCreation reports whether the script is named [<module>.]<version>
func (s *Script) IsCreation() bool {
	return s.From.IsZero() && !s.To.IsZero()
}

// IsUpgrade reports whether the script is named [<module>.]<from>-<to>
func (s *Script) IsUpgrade() bool {
	return !s.From.IsZero()
}

// Open opens the script content for reading
func (s *Script) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script %s: %w", s.DisplayName, err)
	}
	return f, nil
}

// ReadText returns the whole script content without a leading byte order mark
func (s *Script) ReadText() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read script %s: %w", s.DisplayName, err)
	}
	return strings.TrimPrefix(string(data), byteOrderMark), nil
}

// Dependencies reads the leading comment batch and returns the module
// dependencies declared there. The rest of the file is not read.
func (s *Script) Dependencies() ([]Dependency, error) {
	r, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	batch, err := ExtractLeadingCommentBatch(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", s.DisplayName, err)
	}

	return ParseDependencies(batch, s.DisplayName)
}

func (s *Script) String() string {
	return s.DisplayName
}
