package fileopen

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/overrides"
	"github.com/example/modengine-overrides/internal/resolvecache"
	"github.com/spf13/afero"
)

var gameDir = filepath.FromSlash("/game")

type fakeOpener struct {
	handles map[string]Handle
	fail    map[string]int // remaining failures per path
	calls   []string
}

func (f *fakeOpener) open(req Request) (Handle, error) {
	f.calls = append(f.calls, req.Path)
	if n := f.fail[req.Path]; n != 0 {
		if n > 0 {
			f.fail[req.Path] = n - 1
		}
		return InvalidHandle, errors.New("sharing violation")
	}
	if h, ok := f.handles[req.Path]; ok {
		return h, nil
	}
	return InvalidHandle, errors.New("file not found")
}

type countingResolver struct {
	*overrides.Resolver
	calls int
}

func (c *countingResolver) Resolve(rel string) (string, bool) {
	c.calls++
	return c.Resolver.Resolve(rel)
}

func newFixture(t *testing.T, files ...string) (*countingResolver, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, filepath.Join(gameDir, filepath.FromSlash(f)), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &countingResolver{Resolver: overrides.NewResolver(fs, gameDir, []string{"mods/a", "mods/b"})}, fs
}

func TestOpenUsesOverrideWhenPresent(t *testing.T) {
	res, _ := newFixture(t, "mods/b/map/m10/asset.bin")
	override := filepath.Join(gameDir, "mods", "b", "map", "m10", "asset.bin")
	requested := filepath.Join(gameDir, "map", "m10", "asset.bin")
	opener := &fakeOpener{handles: map[string]Handle{override: 42, requested: 7}}

	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())
	h, err := ic.Open(ReadOnly(requested))
	if err != nil || h != 42 {
		t.Fatalf("Open=%v err=%v want override handle 42", h, err)
	}
}

func TestOpenResolvesRewrittenRelativePath(t *testing.T) {
	res, _ := newFixture(t, "mods/b/map/m10/asset.bin")
	override := filepath.Join(gameDir, "mods", "b", "map", "m10", "asset.bin")
	opener := &fakeOpener{handles: map[string]Handle{override: 42}}

	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())
	h, err := ic.Open(ReadOnly(".//////map/m10/asset.bin"))
	if err != nil || h != 42 {
		t.Fatalf("Open=%v err=%v want override handle 42", h, err)
	}
}

func TestOpenRetriesOverrideThenFallsBack(t *testing.T) {
	res, _ := newFixture(t, "mods/a/param/x.param")
	override := filepath.Join(gameDir, "mods", "a", "param", "x.param")
	requested := filepath.Join(gameDir, "param", "x.param")
	opener := &fakeOpener{
		handles: map[string]Handle{override: 1, requested: 9},
		fail:    map[string]int{override: -1},
	}

	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())
	h, err := ic.Open(ReadOnly(requested))
	if err != nil || h != 9 {
		t.Fatalf("Open=%v err=%v want fallback handle 9", h, err)
	}
	if len(opener.calls) != DefaultAttempts+1 {
		t.Fatalf("expected %d opens, got %d: %v", DefaultAttempts+1, len(opener.calls), opener.calls)
	}
	for i := 0; i < DefaultAttempts; i++ {
		if opener.calls[i] != override {
			t.Fatalf("attempt %d opened %s", i+1, opener.calls[i])
		}
	}
	if opener.calls[DefaultAttempts] != requested {
		t.Fatalf("fallback opened %s", opener.calls[DefaultAttempts])
	}
}

func TestOpenRecoversFromTransientFailure(t *testing.T) {
	res, _ := newFixture(t, "mods/a/param/x.param")
	override := filepath.Join(gameDir, "mods", "a", "param", "x.param")
	opener := &fakeOpener{
		handles: map[string]Handle{override: 5},
		fail:    map[string]int{override: 3},
	}

	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())
	h, err := ic.Open(ReadOnly(filepath.Join(gameDir, "param", "x.param")))
	if err != nil || h != 5 {
		t.Fatalf("Open=%v err=%v", h, err)
	}
	if len(opener.calls) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(opener.calls))
	}
}

func TestOpenSurfacesOriginalFailure(t *testing.T) {
	res, _ := newFixture(t)
	opener := &fakeOpener{}
	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())

	h, err := ic.Open(ReadOnly(filepath.Join(gameDir, "missing.bin")))
	if h != InvalidHandle || err == nil || err.Error() != "file not found" {
		t.Fatalf("Open=%v err=%v want original failure", h, err)
	}
}

func TestOpenCachesNegativeResultByLiteralPath(t *testing.T) {
	res, _ := newFixture(t)
	requested := filepath.Join(gameDir, "sound", "fdp.fsb")
	opener := &fakeOpener{handles: map[string]Handle{requested: 3}}
	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())

	for i := 0; i < 3; i++ {
		if h, err := ic.Open(ReadOnly(requested)); err != nil || h != 3 {
			t.Fatalf("Open=%v err=%v", h, err)
		}
	}
	if res.calls != 1 {
		t.Fatalf("expected one lookup, got %d", res.calls)
	}
}

func TestOpenOutsideGameDirSkipsLookup(t *testing.T) {
	res, _ := newFixture(t)
	outside := filepath.FromSlash("/windows/system32/kernel32.dll")
	opener := &fakeOpener{handles: map[string]Handle{outside: 11}}
	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop())

	if h, _ := ic.Open(ReadOnly(outside)); h != 11 {
		t.Fatalf("unexpected handle %v", h)
	}
	if res.calls != 0 {
		t.Fatalf("expected no lookup, got %d", res.calls)
	}
}

func TestWithAttempts(t *testing.T) {
	res, _ := newFixture(t, "mods/a/x.bin")
	override := filepath.Join(gameDir, "mods", "a", "x.bin")
	opener := &fakeOpener{fail: map[string]int{override: -1}}
	ic := New(res, resolvecache.New("file"), opener.open, logging.Nop()).WithAttempts(2).WithAttempts(0)

	ic.Open(ReadOnly(filepath.Join(gameDir, "x.bin")))
	if len(opener.calls) != 3 {
		t.Fatalf("expected 2 override attempts and a fallback, got %v", opener.calls)
	}
}

func TestRelativeTo(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{filepath.Join(gameDir, "map", "a.bin"), "map/a.bin", true},
		{"map/./b.bin", "map/b.bin", true},
		{gameDir, "", false},
		{filepath.FromSlash("/gamedata/a.bin"), "", false},
		{"../outside.bin", "", false},
	}
	for _, tc := range cases {
		got, ok := relativeTo(gameDir, tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("relativeTo(%q)=%q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
