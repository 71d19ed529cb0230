// Package pathmatch recognises archive references such as "data1:/map/x.bin"
// and extracts the archive-relative file path they point at.
//
// The engine loads a loose file instead of an archive entry when the archive
// tokens are replaced by a path that is relative to the game directory, so a
// match reports how many leading units belong to the archive prefix and the
// normalised remainder used to look for an override.
package pathmatch

import (
	"path"
	"strings"
	"unicode/utf16"
)

// NormalizedPath is a cleaned, slash separated path relative to the game
// directory. It never starts with ".." and is never ".".
type NormalizedPath string

func (p NormalizedPath) String() string { return string(p) }

// Dotted returns the path with the "./" marker the engine uses for loose
// files, e.g. "./map/m10/asset.bin".
func (p NormalizedPath) Dotted() string { return "./" + string(p) }

// Result describes a matched archive reference.
type Result struct {
	// Archive names the grammar that matched.
	Archive string
	// PrefixLen is the number of UTF-16 units covered by the archive prefix.
	PrefixLen int
	Suffix    NormalizedPath
}

// wildcard stands for exactly one unit that is not a line terminator.
const wildcard = '?'

type grammar struct {
	archive string
	pattern string
}

// Order matters only for readability; the prefixes are disjoint.
var grammars = []grammar{
	{archive: "data", pattern: "data?:/"},       // main data archives, data1:/ etc
	{archive: "gamedata", pattern: "gamedata?"}, // DS2 data archives
	{archive: "dlc", pattern: "game_?????"},     // DS3 DLC archives
}

// Match classifies units against the known archive grammars. It reports false when
// units is not an archive reference or the remainder does not name a file
// inside the game directory.
func Match(units []uint16) (Result, bool) {
	for _, g := range grammars {
		n := len(g.pattern)
		if len(units) <= n || !hasPrefix(units, g.pattern) {
			continue
		}
		rest := units[n:]
		if containsLineTerminator(rest) {
			return Result{}, false
		}
		suffix, ok := Normalize(string(utf16.Decode(rest)))
		if !ok {
			return Result{}, false
		}
		return Result{Archive: g.archive, PrefixLen: n, Suffix: suffix}, true
	}
	return Result{}, false
}

// MatchString is Match for a Go string.
func MatchString(s string) (Result, bool) {
	return Match(utf16.Encode([]rune(s)))
}

// Normalize lexically cleans rest as if it were prefixed with "./". Both '/'
// and '\' separate segments. Paths that resolve to the game directory itself
// or escape it are rejected.
func Normalize(rest string) (NormalizedPath, bool) {
	cleaned := path.Clean("./" + strings.ReplaceAll(rest, `\`, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	return NormalizedPath(cleaned), true
}

func hasPrefix(units []uint16, pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		u := units[i]
		if pattern[i] == wildcard {
			if isLineTerminator(u) {
				return false
			}
			continue
		}
		if u != uint16(pattern[i]) {
			return false
		}
	}
	return true
}

func containsLineTerminator(units []uint16) bool {
	for _, u := range units {
		if isLineTerminator(u) {
			return true
		}
	}
	return false
}

func isLineTerminator(u uint16) bool {
	return u == '\n' || u == '\r' || u == 0x2028 || u == 0x2029
}
