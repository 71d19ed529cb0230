// Package overrides finds loose override files under an ordered list of
// roots. The first root containing the file wins.
package overrides

import (
	"path/filepath"

	"github.com/spf13/afero"
)

type Resolver struct {
	fs    afero.Fs
	cwd   string
	roots []string
}

// NewResolver captures roots in order. Relative roots are joined under cwd,
// absolute roots are used as they are. The slice is copied; later changes by
// the caller are not observed.
func NewResolver(fs afero.Fs, cwd string, roots []string) *Resolver {
	rs := make([]string, 0, len(roots))
	for _, r := range roots {
		if filepath.IsAbs(r) {
			rs = append(rs, filepath.Clean(r))
			continue
		}
		rs = append(rs, filepath.Join(cwd, r))
	}
	return &Resolver{fs: fs, cwd: cwd, roots: rs}
}

// Cwd is the working directory the resolver was built with.
func (r *Resolver) Cwd() string { return r.cwd }

// Roots returns the absolute roots in search order.
func (r *Resolver) Roots() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// Resolve returns the absolute path of the first root that contains rel.
// rel is a slash separated path relative to the game directory. Lookup errors
// count as a miss for that root.
func (r *Resolver) Resolve(rel string) (string, bool) {
	native := filepath.FromSlash(rel)
	for _, root := range r.roots {
		candidate := filepath.Join(root, native)
		if ok, err := afero.Exists(r.fs, candidate); err == nil && ok {
			return candidate, true
		}
	}
	return "", false
}
