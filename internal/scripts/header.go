package scripts

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/version"
)

// byteOrderMark is the UTF-8 encoding prefix some editors write
const byteOrderMark = "\ufeff"

var (
	dependencyPattern = regexp.MustCompile(`(?i)^module\s+dependency\s*:\s*(\S+)\s+(\S+)`)
	dependencyMarker  = regexp.MustCompile(`(?i)^module\s+dependency\s*:`)
)

// Dependency states that a script requires Module to be at Version or above
type Dependency struct {
	Module  string
	Version version.Version
}

func (d Dependency) String() string {
	return d.Module + " " + d.Version.String()
}

// ExtractLeadingCommentBatch returns the comments at the top of a script:
// blank lines are skipped, then "--" and "/* */" comments are collected up to
// the first other content. A leading byte order mark is dropped. Nothing past
// that line is read.
func ExtractLeadingCommentBatch(r io.Reader) (string, error) {
	reader := bufio.NewReader(r)

	var lines []string
	inBlock := false
	first := true

	for {
		raw, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := err != nil
		line := strings.TrimRight(raw, "\r\n")
		if first {
			line = strings.TrimPrefix(line, byteOrderMark)
			first = false
		}

		stop := false
		if inBlock {
			lines = append(lines, line)
			if end := strings.Index(line, "*/"); end >= 0 {
				inBlock = false
				stop = !commentOnly(line[end+2:])
			}
		} else {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				if len(lines) > 0 {
					lines = append(lines, line)
				}
			case strings.HasPrefix(trimmed, "--"):
				lines = append(lines, line)
			case strings.HasPrefix(trimmed, "/*"):
				lines = append(lines, line)
				if end := strings.Index(trimmed[2:], "*/"); end >= 0 {
					stop = !commentOnly(trimmed[2+end+2:])
				} else {
					inBlock = true
				}
			default:
				stop = true
			}
		}

		if stop || eof {
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// commentOnly reports whether the rest of a line after a closing "*/" holds no
// statement text
func commentOnly(rest string) bool {
	rest = strings.TrimSpace(rest)
	return rest == "" || strings.HasPrefix(rest, "--")
}

// ParseDependencies finds "module dependency: <name> <version>" declarations
// in a comment batch. A declaration starts the comment text of its line;
// other comment lines are ignored. scriptName is used in error messages only.
func ParseDependencies(batch, scriptName string) ([]Dependency, error) {
	var result []Dependency
	seen := make(map[string]bool)

	for _, line := range strings.Split(batch, "\n") {
		body := commentBody(line)
		if !dependencyMarker.MatchString(body) {
			continue
		}

		match := dependencyPattern.FindStringSubmatch(body)
		if match == nil {
			return nil, errs.Config("invalid dependency declaration %q in script %s", body, scriptName)
		}

		module := match[1]
		text := strings.TrimSuffix(match[2], "*/")
		v, err := version.Parse(text)
		if err != nil {
			return nil, errs.Config("invalid dependency version %q of module %s in script %s", text, module, scriptName)
		}

		key := strings.ToLower(module)
		if seen[key] {
			return nil, errs.Config("module %s is declared as a dependency more than once in script %s", module, scriptName)
		}
		seen[key] = true

		result = append(result, Dependency{Module: module, Version: v})
	}

	return result, nil
}

// commentBody strips the comment decorations ("--", "/*", "*") from the start
// of a line
func commentBody(line string) string {
	body := strings.TrimSpace(strings.TrimPrefix(line, byteOrderMark))
	for {
		trimmed := strings.TrimLeft(body, "-*/ \t")
		if trimmed == body {
			return body
		}
		body = trimmed
	}
}
