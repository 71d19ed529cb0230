package util

import (
	"regexp"
	"strings"
)

var unsafeDirChars = regexp.MustCompile(`[^a-z0-9._]+`)

// DirSlug turns a display name into a directory name that is safe on every
// platform the game runs on.
func DirSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = unsafeDirChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "remote"
	}
	return s
}
