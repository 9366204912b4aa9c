// Package naming derives target secret names. The derivation is a pure
// function of its inputs: re-running a migration against the same tree must
// produce the same names so pre-existing secrets are detected instead of
// duplicated.
package naming

import "strings"

// Derive computes the target secret name for one extracted key:
// "{environment}-{service}-{key}", lower-cased, underscores to hyphens,
// anything outside [a-z0-9-] collapsed to a single hyphen, runs of hyphens
// deduplicated, leading and trailing hyphens trimmed.
func Derive(environment, service, originalKey string) string {
	joined := environment + "-" + service + "-" + originalKey

	var b strings.Builder
	b.Grow(len(joined))
	lastHyphen := true // swallow leading hyphens
	for _, r := range strings.ToLower(joined) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			// underscores, dots and any other separator collapse to one hyphen
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
