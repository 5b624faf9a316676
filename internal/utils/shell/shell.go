package shell

import "strings"

// Quote single quotes s so a POSIX shell takes it as a single literal word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Join quotes every part and joins them into a single command line.
func Join(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, Quote(p))
	}
	return strings.Join(quoted, " ")
}
