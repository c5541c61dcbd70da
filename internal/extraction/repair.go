package extraction

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Small models truncate responses and prefix them with preamble prose.
// parseModelResponse runs escalating recovery passes, each a pure
// text -> optional value function, and stops at the first success.

var (
	reFence         = regexp.MustCompile("```json|```")
	reTrailingComma = regexp.MustCompile(`,\s*$`)
	reBraceGroup    = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

type recoveryPass func(raw string) (map[string]any, bool)

var recoveryPasses = []recoveryPass{
	parseDirect,
	parseRepaired,
	parseLargestObject,
}

// parseModelResponse extracts a JSON object from a raw model response.
// The second return reports whether any pass succeeded.
func parseModelResponse(raw string) (map[string]any, bool) {
	for _, pass := range recoveryPasses {
		if parsed, ok := pass(raw); ok {
			return parsed, true
		}
	}
	return nil, false
}

// parseDirect strips fence markers, discards prose before the first brace
// and parses as-is.
func parseDirect(raw string) (map[string]any, bool) {
	clean := strings.TrimSpace(reFence.ReplaceAllString(raw, ""))
	start := strings.Index(clean, "{")
	if start == -1 {
		return nil, false
	}
	clean = clean[start:]

	var parsed map[string]any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// parseRepaired closes unclosed brackets/braces left by a truncated
// response, after trimming any trailing comma.
func parseRepaired(raw string) (map[string]any, bool) {
	repaired := repairTruncated(raw)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

func repairTruncated(raw string) string {
	s := strings.TrimSpace(reFence.ReplaceAllString(raw, ""))

	start := strings.Index(s, "{")
	if start == -1 {
		return s
	}
	s = s[start:]

	s = reTrailingComma.ReplaceAllString(strings.TrimRight(s, " \t\r\n"), "")

	if open := strings.Count(s, "[") - strings.Count(s, "]"); open > 0 {
		s += strings.Repeat("]", open)
	}
	if open := strings.Count(s, "{") - strings.Count(s, "}"); open > 0 {
		s += strings.Repeat("}", open)
	}
	return s
}

// parseLargestObject scans for balanced-brace groups and parses the longest.
func parseLargestObject(raw string) (map[string]any, bool) {
	var largest string
	for _, m := range reBraceGroup.FindAllString(raw, -1) {
		if len(m) > len(largest) {
			largest = m
		}
	}
	if largest == "" {
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(largest), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}
