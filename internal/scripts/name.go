package scripts

import (
	"fmt"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/version"
)

// DefaultExtensions are the script extensions recognised when none are configured
var DefaultExtensions = []string{".sql"}

// Name is a parsed script file name
type Name struct {
	Module string
	From   version.Version
	To     version.Version
}

// TrimExtension removes the last extension of fileName if it is one of
// extensions. The second result is false if it is not.
func TrimExtension(fileName string, extensions []string) (string, bool) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if len(fileName) > len(ext) && strings.EqualFold(fileName[len(fileName)-len(ext):], ext) {
			return fileName[:len(fileName)-len(ext)], true
		}
	}
	return fileName, false
}

// ParseName parses a file name without extension. Upgrade scripts are named
// [<module>.]<from>-<to>, creation scripts [<module>.]<version>. The module
// prefix ends at the first dot whose remainder is a valid version part.
func ParseName(baseName string) (Name, error) {
	if name, ok, err := parseVersionPart(baseName); ok || err != nil {
		return name, err
	}

	for i := 0; i < len(baseName); i++ {
		if baseName[i] != '.' {
			continue
		}
		name, ok, err := parseVersionPart(baseName[i+1:])
		if err != nil {
			return Name{}, err
		}
		if ok {
			name.Module = baseName[:i]
			return name, nil
		}
	}

	return Name{}, fmt.Errorf("%q does not match [<module>.]<from>-<to> or [<module>.]<version>", baseName)
}

// ParseVersionPart parses a name that must not carry a module prefix
func ParseVersionPart(baseName string) (Name, error) {
	name, ok, err := parseVersionPart(baseName)
	if err != nil {
		return Name{}, err
	}
	if !ok {
		return Name{}, fmt.Errorf("%q does not match <from>-<to> or <version>", baseName)
	}
	return name, nil
}

func parseVersionPart(text string) (Name, bool, error) {
	if text == "" {
		return Name{}, false, nil
	}

	from, to, isRange := strings.Cut(text, "-")
	if !isRange {
		v, err := version.Parse(text)
		if err != nil || strings.TrimSpace(text) != text {
			return Name{}, false, nil
		}
		return Name{To: v}, true, nil
	}

	fromVersion, err := version.Parse(from)
	if err != nil || strings.TrimSpace(from) != from {
		return Name{}, false, nil
	}
	toVersion, err := version.Parse(to)
	if err != nil || strings.TrimSpace(to) != to {
		return Name{}, false, nil
	}
	if !fromVersion.Less(toVersion) {
		return Name{}, false, fmt.Errorf("version %s must be less than %s", fromVersion, toVersion)
	}

	return Name{From: fromVersion, To: toVersion}, true, nil
}
