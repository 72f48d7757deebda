package report

import (
	"sort"
	"strings"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
)

// Truncate shortens s to max characters, marking the cut with "...".
// A max of zero disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// ExtractKeysForMessage lists the sorted top-level keys of value, using
// as many keys as fit in maxLength characters.
func ExtractKeysForMessage(value any, maxLength int) string {
	keys := topLevelKeys(value)
	if len(keys) == 0 {
		return "[object has no keys]"
	}
	sort.Strings(keys)

	if len([]rune(keys[0])) >= maxLength {
		return Truncate(keys[0], maxLength)
	}
	for included := len(keys); included > 0; included-- {
		serialized := strings.Join(keys[:included], ", ")
		if len([]rune(serialized)) > maxLength {
			continue
		}
		if included == len(keys) {
			return serialized
		}
		return Truncate(serialized, maxLength)
	}
	return ""
}

func topLevelKeys(value any) []string {
	fields, ok := normalize.Normalize(value, normalize.WithDepth(1)).(normalize.Fields)
	if !ok {
		return nil
	}
	return fields.Keys()
}
