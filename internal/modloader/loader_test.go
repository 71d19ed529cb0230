package modloader

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/modengine-overrides/internal/config"
	"github.com/example/modengine-overrides/internal/fileopen"
	"github.com/example/modengine-overrides/internal/hook"
	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/wstr"
	"github.com/spf13/afero"
)

var gameDir = filepath.FromSlash("/game")

func TestTranslateAndOpenEndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	override := filepath.Join(gameDir, "mods", "b", "map", "m10", "asset.bin")
	if err := afero.WriteFile(fs, override, []byte("mod"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(fs, gameDir, []string{"mods/a", "mods/b"}, fileopen.DefaultAttempts, logging.Nop())

	translate := hook.NewSlot[TranslateFunc](func(path *wstr.Buffer) *wstr.Buffer {
		if path.String() == "map:/m10/asset.bin" {
			return wstr.FromString("data1:/map/m10/asset.bin")
		}
		return nil
	})
	var opened []string
	open := hook.NewSlot[fileopen.OpenFunc](func(req fileopen.Request) (fileopen.Handle, error) {
		opened = append(opened, req.Path)
		if req.Path == override {
			return 42, nil
		}
		return fileopen.InvalidHandle, errors.New("not found")
	})
	if _, err := l.InstallTranslator("virtual_to_archive_path", translate); err != nil {
		t.Fatal(err)
	}
	if _, err := l.InstallFileOpen(open); err != nil {
		t.Fatal(err)
	}

	res := translate.Load()(wstr.FromString("map:/m10/asset.bin"))
	if res == nil || res.String() != ".//////map/m10/asset.bin" {
		t.Fatalf("unexpected translated path %v", res)
	}
	if res.Len() != len("data1:/map/m10/asset.bin") {
		t.Fatalf("length changed to %d", res.Len())
	}
	h, err := open.Load()(fileopen.ReadOnly(res.String()))
	if err != nil || h != 42 {
		t.Fatalf("open=%v err=%v", h, err)
	}
	if len(opened) != 1 || opened[0] != override {
		t.Fatalf("unexpected open sequence %v", opened)
	}
}

func TestTranslatorPassesNilThrough(t *testing.T) {
	l := New(afero.NewMemMapFs(), gameDir, []string{"mods"}, 1, nil)
	translate := hook.NewSlot[TranslateFunc](func(*wstr.Buffer) *wstr.Buffer { return nil })
	if _, err := l.InstallTranslator("virtual_to_archive_path", translate); err != nil {
		t.Fatal(err)
	}
	if res := translate.Load()(wstr.FromString("x")); res != nil {
		t.Fatalf("expected nil, got %v", res)
	}
}

func TestConcurrentTranslationsShareCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, filepath.Join(gameDir, "mods", "chr", "c1000.chrbnd"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(fs, gameDir, []string{"mods"}, 1, logging.Nop())
	translate := hook.NewSlot[TranslateFunc](func(path *wstr.Buffer) *wstr.Buffer { return path })
	if _, err := l.InstallTranslator("virtual_to_archive_path", translate); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := translate.Load()(wstr.FromString("data2:/chr/c1000.chrbnd"))
			if res.String() != ".//////chr/c1000.chrbnd" {
				t.Errorf("unexpected rewrite %q", res.String())
			}
		}()
	}
	wg.Wait()

	st := l.Stats()["archive"]
	if st.Entries != 1 || st.Misses != 1 {
		t.Fatalf("unexpected archive cache stats %+v", st)
	}
}

func TestArchiveOverrideReportsRewriterDecision(t *testing.T) {
	fs := afero.NewMemMapFs()
	override := filepath.Join(gameDir, "mods", "map", "m10", "asset.bin")
	if err := afero.WriteFile(fs, override, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := New(fs, gameDir, []string{"mods"}, 1, logging.Nop())

	if _, ok := l.ArchiveOverride("map/m10/asset.bin"); ok {
		t.Fatal("expected no decision before the first rewrite")
	}
	if !l.Rewriter().Rewrite(wstr.FromString("data1:/map/m10/asset.bin")) {
		t.Fatal("expected rewrite")
	}
	if l.Rewriter().Rewrite(wstr.FromString("data1:/map/none.bin")) {
		t.Fatal("unexpected rewrite of a path without override")
	}

	// The decision is read back from the cache, not from the filesystem.
	if err := fs.Remove(override); err != nil {
		t.Fatal(err)
	}
	got, ok := l.ArchiveOverride("map/m10/asset.bin")
	if !ok || got != override {
		t.Fatalf("got %q ok=%v want %q", got, ok, override)
	}
	if got, ok := l.ArchiveOverride("map/none.bin"); ok {
		t.Fatalf("expected negative decision, got %q", got)
	}
	if st := l.Stats()["archive"]; st.Entries != 2 || st.Misses != 2 {
		t.Fatalf("unexpected archive cache stats %+v", st)
	}
}

func TestFromConfigUsesGameDirAndSearchRoots(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Sample()
	cfg.GameDir = dir
	l, err := FromConfig(cfg, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if l.Resolver().Cwd() != dir {
		t.Fatalf("unexpected cwd %s", l.Resolver().Cwd())
	}
	roots := l.Resolver().Roots()
	if len(roots) != 3 || roots[0] != filepath.Join(dir, "mods", "patches") || roots[2] != filepath.Join(dir, "mods", "shared-mods") {
		t.Fatalf("unexpected roots %v", roots)
	}
}
