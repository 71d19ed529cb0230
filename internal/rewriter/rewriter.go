// Package rewriter turns archive references that have a loose override into
// game directory relative paths, in place.
//
// "data1:/map/m10/asset.bin" becomes ".//////map/m10/asset.bin": the first
// unit of the archive prefix becomes '.', the rest of the prefix becomes '/',
// and everything after the prefix is left alone. The buffer length never
// changes, so engine-owned memory can be patched without reallocation.
package rewriter

import (
	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/pathmatch"
	"github.com/example/modengine-overrides/internal/resolvecache"
	"github.com/example/modengine-overrides/internal/wstr"
)

const (
	localMarker = uint16('.')
	separator   = uint16('/')
)

// Resolver finds an override for a game directory relative path.
type Resolver interface {
	Resolve(rel string) (string, bool)
}

type Rewriter struct {
	resolver Resolver
	cache    *resolvecache.Cache
	log      logging.Logger
}

func New(resolver Resolver, cache *resolvecache.Cache, log logging.Logger) *Rewriter {
	if log == nil {
		log = logging.Nop()
	}
	return &Rewriter{resolver: resolver, cache: cache, log: log}
}

// Rewrite patches buf when it is an archive reference with an override and
// reports whether it did. buf is only borrowed for the duration of the call.
func (r *Rewriter) Rewrite(buf *wstr.Buffer) bool {
	if buf.Len() == 0 {
		return false
	}
	units := buf.Units()
	r.log.Trace("checking archive path", map[string]any{"path": buf.String()})

	m, ok := pathmatch.Match(units)
	if !ok {
		return false
	}
	r.log.Debug("path matched", map[string]any{"archive": m.Archive, "path": m.Suffix.Dotted()})

	key := m.Suffix.String()
	override, found := r.cache.GetOrCompute(key, func() (string, bool) {
		p, ok := r.resolver.Resolve(key)
		if ok {
			r.log.Debug("found override", map[string]any{"path": m.Suffix.Dotted(), "override": p})
		}
		return p, ok
	})
	if !found {
		return false
	}

	prefix := m.PrefixLen
	if prefix > buf.Len() {
		prefix = buf.Len()
	}
	if err := buf.Set(0, localMarker); err != nil {
		r.log.Warn("archive path rewrite skipped", map[string]any{"path": buf.String(), "reason": err.Error()})
		return false
	}
	buf.Fill(1, prefix, separator)
	r.log.Trace("archive path rewritten", map[string]any{"path": buf.String(), "override": override})
	return true
}
