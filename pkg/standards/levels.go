package standards

import "strings"

// NormalizeEducationLevels flattens comma-joined codes, trims them, drops
// empty entries and removes duplicates keeping first-seen order.
// The result is never nil.
func NormalizeEducationLevels(levels []string) []string {
	out := make([]string, 0, len(levels))
	seen := make(map[string]struct{}, len(levels))
	for _, level := range levels {
		for _, code := range strings.Split(level, ",") {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}
