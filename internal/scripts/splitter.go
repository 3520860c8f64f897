package scripts

import (
	"regexp"
	"strings"
)

// SplitFunc splits script text into batches sent to the server one at a time
type SplitFunc func(text string) []string

var goSeparator = regexp.MustCompile(`(?i)^\s*go\s*;?\s*$`)

// SplitWhole sends the script as a single batch. Blank scripts yield nothing.
func SplitWhole(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []string{text}
}

// SplitGoBatches splits on lines holding only the GO separator
func SplitGoBatches(text string) []string {
	var (
		batches []string
		current []string
	)

	flush := func() {
		batch := strings.Join(current, "\n")
		if strings.TrimSpace(batch) != "" {
			batches = append(batches, strings.TrimSpace(batch))
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if goSeparator.MatchString(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return batches
}
