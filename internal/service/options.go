package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseOptions reads a stored option list. The value is tried, in order, as
// a JSON string array, as a JSON array of scalars, and finally as a comma
// separated list. ok is false when the value looked structured but did not
// decode, so the caller can report the degraded parse.
func ParseOptions(raw string) (options []string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, true
	}

	var list []string
	if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
		return compact(list), true
	}

	var loose []interface{}
	if err := json.Unmarshal([]byte(trimmed), &loose); err == nil {
		out := make([]string, 0, len(loose))
		for _, v := range loose {
			if v == nil {
				continue
			}
			out = append(out, fmt.Sprint(v))
		}
		return compact(out), true
	}

	if !strings.HasPrefix(trimmed, "[") {
		return compact(strings.Split(trimmed, ",")), true
	}
	parts := strings.Split(strings.Trim(trimmed, "[]"), ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"'`)
	}
	return compact(parts), false
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
