//go:build windows

package fileopen

import (
	"strings"
	"unicode/utf8"
)

// trimPathPrefix removes base from the front of p, comparing rune by rune
// under Unicode case folding since NTFS lookups are case-insensitive. Folded
// runes may differ in encoded length, so the two strings advance separately.
func trimPathPrefix(p, base string) (string, bool) {
	for base != "" {
		if p == "" {
			return "", false
		}
		br, bn := utf8.DecodeRuneInString(base)
		pr, pn := utf8.DecodeRuneInString(p)
		if br != pr && !strings.EqualFold(base[:bn], p[:pn]) {
			return "", false
		}
		base, p = base[bn:], p[pn:]
	}
	return p, true
}
