// Package sanitize strips markup and script-injection fragments from free text
// such as review comments and display names. It is best effort: output is
// always a subsequence of the input and Sanitize is idempotent.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	controlChars = strings.NewReplacer("\x00", "", "\r", "", "\n", "", "<", "", ">", "")

	injectionPattern = regexp.MustCompile(`(?i)javascript:|vbscript:|livescript:|mocha:|data:|on\w+=|style=|src=|href=`)
)

// Sanitize neutralizes raw for storage and rendering.
func Sanitize(raw string) string {
	out := controlChars.Replace(raw)

	// Removing one fragment can join the halves of another ("javajavascript:script:"),
	// so strip until nothing matches.
	for {
		next := injectionPattern.ReplaceAllString(out, "")
		if next == out {
			break
		}
		out = next
	}

	return strings.TrimSpace(out)
}

// Fields sanitizes every value of a metadata map in place and drops keys that end up empty.
func Fields(values map[string]string) map[string]string {
	clean := make(map[string]string, len(values))
	for k, v := range values {
		key := Sanitize(k)
		if key == "" {
			continue
		}
		clean[key] = Sanitize(v)
	}
	return clean
}
