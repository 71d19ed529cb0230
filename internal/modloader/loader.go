// Package modloader wires archive path rewriting and file open interception
// into the engine's hooked entry points.
//
// The engine first translates a virtual asset path into an archive path.
// The translator hook lets that run, then rewrites archive references that
// have an override into game directory relative paths. When the engine later
// opens such a path, the file open hook maps it to the override root that
// holds the file.
package modloader

import (
	"fmt"

	"github.com/example/modengine-overrides/internal/config"
	"github.com/example/modengine-overrides/internal/fileopen"
	"github.com/example/modengine-overrides/internal/hook"
	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/overrides"
	"github.com/example/modengine-overrides/internal/resolvecache"
	"github.com/example/modengine-overrides/internal/rewriter"
	"github.com/example/modengine-overrides/internal/wstr"
	"github.com/spf13/afero"
)

// TranslateFunc is a virtual-to-archive path translation entry point. It
// returns nil when the engine could not translate path.
type TranslateFunc func(path *wstr.Buffer) *wstr.Buffer

type Loader struct {
	resolver     *overrides.Resolver
	archiveCache *resolvecache.Cache
	fileCache    *resolvecache.Cache
	rewriter     *rewriter.Rewriter
	attempts     int
	log          logging.Logger
}

func New(fs afero.Fs, cwd string, roots []string, attempts int, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	resolver := overrides.NewResolver(fs, cwd, roots)
	archiveCache := resolvecache.New("archive")
	return &Loader{
		resolver:     resolver,
		archiveCache: archiveCache,
		fileCache:    resolvecache.New("file"),
		rewriter:     rewriter.New(resolver, archiveCache, log),
		attempts:     attempts,
		log:          log,
	}
}

// FromConfig builds a Loader over the real filesystem.
func FromConfig(cfg config.Config, log logging.Logger) (*Loader, error) {
	cwd, err := cfg.WorkingDir()
	if err != nil {
		return nil, fmt.Errorf("build loader: %w", err)
	}
	return New(afero.NewOsFs(), cwd, cfg.SearchRoots(), cfg.OpenAttempts, log), nil
}

func (l *Loader) Resolver() *overrides.Resolver { return l.resolver }

func (l *Loader) Rewriter() *rewriter.Rewriter { return l.rewriter }

// Interceptor returns a file open interceptor that calls through to
// original. Interceptors from the same Loader share one cache.
func (l *Loader) Interceptor(original fileopen.OpenFunc) *fileopen.Interceptor {
	return fileopen.New(l.resolver, l.fileCache, original, l.log).WithAttempts(l.attempts)
}

// InstallFileOpen hooks the file open primitive.
func (l *Loader) InstallFileOpen(target hook.Installer[fileopen.OpenFunc]) (*hook.Hook[fileopen.OpenFunc], error) {
	h, err := hook.Install("CreateFileW", target, func(original fileopen.OpenFunc) fileopen.OpenFunc {
		return l.Interceptor(original).Open
	})
	if err != nil {
		return nil, err
	}
	l.log.Debug("hook installed", map[string]any{"hook": h.Name()})
	return h, nil
}

// InstallTranslator hooks a virtual-to-archive path translator so that every
// non-nil result goes through the rewriter.
func (l *Loader) InstallTranslator(name string, target hook.Installer[TranslateFunc]) (*hook.Hook[TranslateFunc], error) {
	h, err := hook.Install(name, target, func(original TranslateFunc) TranslateFunc {
		return func(path *wstr.Buffer) *wstr.Buffer {
			res := original(path)
			if res != nil {
				l.rewriter.Rewrite(res)
			}
			return res
		}
	})
	if err != nil {
		return nil, err
	}
	l.log.Debug("hook installed", map[string]any{"hook": h.Name()})
	return h, nil
}

// ArchiveOverride reports the override the rewriter settled on for a
// normalised archive suffix. It never touches the filesystem; keys the
// rewriter has not seen report false.
func (l *Loader) ArchiveOverride(key string) (string, bool) {
	value, ok, present := l.archiveCache.Lookup(key)
	return value, ok && present
}

func (l *Loader) Stats() map[string]resolvecache.Stats {
	return map[string]resolvecache.Stats{
		l.archiveCache.Name(): l.archiveCache.Stats(),
		l.fileCache.Name():    l.fileCache.Stats(),
	}
}

func (l *Loader) LogStats() {
	for name, st := range l.Stats() {
		l.log.Info("override cache stats", map[string]any{
			"cache":   name,
			"hits":    st.Hits,
			"misses":  st.Misses,
			"shared":  st.Shared,
			"entries": st.Entries,
		})
	}
}
