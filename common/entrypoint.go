package common

import "strings"

// ProgramEntrypoint returns a matcher for the configured entrypoint names.
// A trailing '*' matches any suffix.
func ProgramEntrypoint(names []string) func(symbol string) bool {
	if len(names) == 0 {
		return func(symbol string) bool {
			return false
		}
	}
	return func(symbol string) bool {
		for _, name := range names {
			if prefix, ok := strings.CutSuffix(name, "*"); ok {
				if strings.HasPrefix(symbol, prefix) {
					return true
				}
			} else if symbol == name {
				return true
			}
		}
		return false
	}
}
