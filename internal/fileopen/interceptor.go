// Package fileopen redirects file opens under the game directory to loose
// override files.
//
// The interceptor sits in front of the platform open primitive. A request
// whose path lies under the working directory is looked up in the override
// roots; when an override exists it is opened instead, retrying a bounded
// number of times, and the original request is opened otherwise. Callers
// only ever see the result of one of those two opens.
package fileopen

import (
	"path/filepath"
	"strings"

	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/resolvecache"
)

const DefaultAttempts = 10

type Resolver interface {
	Resolve(rel string) (string, bool)
	Cwd() string
}

type Interceptor struct {
	resolver Resolver
	cache    *resolvecache.Cache
	original OpenFunc
	attempts int
	log      logging.Logger
}

func New(resolver Resolver, cache *resolvecache.Cache, original OpenFunc, log logging.Logger) *Interceptor {
	if log == nil {
		log = logging.Nop()
	}
	return &Interceptor{
		resolver: resolver,
		cache:    cache,
		original: original,
		attempts: DefaultAttempts,
		log:      log,
	}
}

// WithAttempts sets how many times an override is tried before falling back.
// Values below one are ignored.
func (i *Interceptor) WithAttempts(n int) *Interceptor {
	if n > 0 {
		i.attempts = n
	}
	return i
}

// Open serves req from an override when one exists and can be opened, and
// from req.Path otherwise. The fallback result, handle or error, is returned
// unchanged.
func (i *Interceptor) Open(req Request) (Handle, error) {
	if req.Path != "" {
		if override, ok := i.Override(req.Path); ok {
			i.log.Info("loading overridden path", map[string]any{"path": req.Path, "override": override})
			redirected := req
			redirected.Path = override
			for attempt := 1; attempt <= i.attempts; attempt++ {
				h, err := i.original(redirected)
				if !failed(h, err) {
					return h, nil
				}
				if err == nil {
					err = ErrInvalidHandle
				}
				i.log.Warn("failed to load file", map[string]any{"override": override, "attempt": attempt, "error": err.Error()})
			}
		}
	}
	return i.original(req)
}

// Override returns the cached override for the literal requested path,
// searching the roots on first use.
func (i *Interceptor) Override(requested string) (string, bool) {
	return i.cache.GetOrCompute(requested, func() (string, bool) {
		rel, ok := relativeTo(i.resolver.Cwd(), requested)
		if !ok {
			return "", false
		}
		return i.resolver.Resolve(rel)
	})
}

// relativeTo returns p relative to dir in slash form when p lies strictly
// below dir. Relative paths are taken to be relative to dir already.
func relativeTo(dir, p string) (string, bool) {
	if dir == "" {
		return "", false
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	p = filepath.Clean(p)
	base := filepath.Clean(dir)
	if !strings.HasSuffix(base, string(filepath.Separator)) {
		base += string(filepath.Separator)
	}
	rest, ok := trimPathPrefix(p, base)
	if !ok || rest == "" {
		return "", false
	}
	return filepath.ToSlash(rest), true
}
