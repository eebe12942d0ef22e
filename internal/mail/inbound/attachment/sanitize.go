package attachment

import "strings"

// Sanitize reduces a filename to a safe character subset before it is
// used as a storage path component: letters, digits, spaces, dots,
// underscores and hyphens survive, everything else is dropped. Leading
// dots are stripped so the result can never traverse or hide.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimLeft(out, ".")
	return out
}
