//go:build !windows

package fileopen

import "strings"

func trimPathPrefix(p, base string) (string, bool) {
	return strings.CutPrefix(p, base)
}
