// Package modsync mirrors remote override roots over SFTP into local
// directories that the override resolver searches.
package modsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/modengine-overrides/internal/config"
	"github.com/example/modengine-overrides/internal/logging"
	"github.com/example/modengine-overrides/internal/state"
)

// remote is the read side of an SFTP session.
type remote interface {
	Stat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Close() error
}

type dialFn func(rr config.RemoteRootConfig) (remote, error)

type Engine struct {
	now  func() time.Time
	dial dialFn
	log  logging.Logger
}

type treeEntry struct {
	Path    string
	IsDir   bool
	Size    int64
	MTime   int64
	ModTime time.Time
}

type syncPlan struct {
	deleteTypeConflicts []treeEntry
	mkdirs              []treeEntry
	downloads           []treeEntry
	deleteExtrasFiles   []treeEntry
	deleteExtrasDirs    []treeEntry
}

// Result summarises one mirrored root.
type Result struct {
	Downloaded int
	Removed    int
}

func NewEngine(log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		now:  func() time.Time { return time.Now().UTC() },
		dial: dialSFTP,
		log:  log,
	}
}

// SyncRoots mirrors every configured remote root into its local root under
// gameDir and records the outcome in st.
func (e *Engine) SyncRoots(ctx context.Context, cfg config.Config, gameDir string, st *state.State) error {
	if st.Remotes == nil {
		st.Remotes = map[string]state.RemoteState{}
	}
	parallel := cfg.Concurrency.RemoteSyncParallelism
	if parallel < 1 {
		parallel = 1
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, parallel)
	errCh := make(chan error, len(cfg.RemoteRoots))
	var mu sync.Mutex

	for _, rr := range cfg.RemoteRoots {
		rr := rr
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errCh <- fmt.Errorf("sync remote root %s: %w", rr.Name, ctx.Err())
				return
			}
			defer func() { <-sem }()

			local := rr.LocalRoot
			if !filepath.IsAbs(local) {
				local = filepath.Join(gameDir, filepath.FromSlash(local))
			}
			e.log.Info("mirroring remote root", map[string]any{"remote_root": rr.Name, "host": rr.Host, "remote_path": rr.RemotePath, "local_root": local})
			res, err := e.syncRoot(ctx, rr, local)

			now := e.now()
			mu.Lock()
			rs := st.Remotes[rr.Name]
			rs.LocalRoot = rr.LocalRoot
			if err != nil {
				rs.LastError = err.Error()
				rs.LastErrorAt = &now
			} else {
				rs.LastError = ""
				rs.LastErrorAt = nil
				rs.LastSyncedAt = &now
				rs.Downloaded = res.Downloaded
				rs.Removed = res.Removed
			}
			st.Remotes[rr.Name] = rs
			mu.Unlock()

			if err != nil {
				e.log.Error("remote root mirror failed", err, map[string]any{"remote_root": rr.Name})
				errCh <- fmt.Errorf("sync remote root %s: %w", rr.Name, err)
				return
			}
			e.log.Info("remote root mirrored", map[string]any{"remote_root": rr.Name, "downloaded": res.Downloaded, "removed": res.Removed})
		}()
	}

	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) syncRoot(ctx context.Context, rr config.RemoteRootConfig, localRoot string) (Result, error) {
	client, err := e.dial(rr)
	if err != nil {
		return Result{}, fmt.Errorf("connect sftp: %w", err)
	}
	defer client.Close()
	return mirror(ctx, client, rr.RemotePath, localRoot)
}

func mirror(ctx context.Context, client remote, remoteRoot, localRoot string) (Result, error) {
	remoteTree, err := buildRemoteTree(client, remoteRoot)
	if err != nil {
		return Result{}, fmt.Errorf("build remote tree: %w", err)
	}
	if err := os.MkdirAll(localRoot, 0o755); err != nil {
		return Result{}, fmt.Errorf("create local root: %w", err)
	}
	localTree, err := buildLocalTree(localRoot)
	if err != nil {
		return Result{}, fmt.Errorf("build local tree: %w", err)
	}
	plan := buildPlan(remoteTree, localTree)

	var res Result
	for _, entry := range plan.deleteTypeConflicts {
		target, err := localPath(localRoot, entry.Path)
		if err != nil {
			return res, err
		}
		if err := os.RemoveAll(target); err != nil {
			return res, fmt.Errorf("delete type conflict %s: %w", entry.Path, err)
		}
		res.Removed++
	}
	for _, dir := range plan.mkdirs {
		target, err := localPath(localRoot, dir.Path)
		if err != nil {
			return res, err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return res, fmt.Errorf("mkdir %s: %w", dir.Path, err)
		}
	}
	for _, file := range plan.downloads {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		target, err := localPath(localRoot, file.Path)
		if err != nil {
			return res, err
		}
		if err := downloadAtomically(client, path.Join(remoteRoot, file.Path), target, file.ModTime); err != nil {
			return res, fmt.Errorf("download %s: %w", file.Path, err)
		}
		res.Downloaded++
	}
	for _, file := range plan.deleteExtrasFiles {
		target, err := localPath(localRoot, file.Path)
		if err != nil {
			return res, err
		}
		if err := os.Remove(target); err != nil {
			return res, fmt.Errorf("delete extra file %s: %w", file.Path, err)
		}
		res.Removed++
	}
	for _, dir := range plan.deleteExtrasDirs {
		target, err := localPath(localRoot, dir.Path)
		if err != nil {
			return res, err
		}
		if err := os.Remove(target); err != nil {
			return res, fmt.Errorf("delete extra dir %s: %w", dir.Path, err)
		}
		res.Removed++
	}
	return res, nil
}

func downloadAtomically(client remote, remotePath, localPath string, mtime time.Time) error {
	src, err := client.Open(remotePath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := dst.Name()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	sec := mtime.UTC().Truncate(time.Second)
	return os.Chtimes(localPath, sec, sec)
}

func buildLocalTree(root string) (map[string]treeEntry, error) {
	tree := map[string]treeEntry{}
	if err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		tree[rel] = newEntry(rel, info)
		return nil
	}); err != nil {
		return nil, err
	}
	return tree, nil
}

func buildRemoteTree(client remote, root string) (map[string]treeEntry, error) {
	tree := map[string]treeEntry{}
	info, err := client.Stat(root)
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(strings.ToLower(err.Error()), "not exist") {
			return tree, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	var walk func(rel string) error
	walk = func(rel string) error {
		infos, err := client.ReadDir(path.Join(root, rel))
		if err != nil {
			return err
		}
		for _, info := range infos {
			childRel, err := remoteChild(rel, info.Name())
			if err != nil {
				return err
			}
			tree[childRel] = newEntry(childRel, info)
			if info.IsDir() {
				if err := walk(childRel); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return tree, nil
}

// remoteChild joins a name returned by the server onto rel. Names that are
// not a single path element would place the entry outside the mirror root.
func remoteChild(rel, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("remote entry %q in %q is not a plain name", name, rel)
	}
	childRel := path.Join(rel, name)
	if path.IsAbs(childRel) || childRel == ".." || strings.HasPrefix(childRel, "../") {
		return "", fmt.Errorf("remote entry %q escapes the mirror root", childRel)
	}
	return childRel, nil
}

// localPath maps a slash-separated tree path to a path under localRoot.
func localPath(localRoot, rel string) (string, error) {
	p := filepath.Join(localRoot, filepath.FromSlash(rel))
	back, err := filepath.Rel(localRoot, p)
	if err != nil || back == "." || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) || filepath.IsAbs(back) {
		return "", fmt.Errorf("%q is outside %s", rel, localRoot)
	}
	return p, nil
}

func newEntry(rel string, info os.FileInfo) treeEntry {
	mt := info.ModTime().UTC().Truncate(time.Second)
	return treeEntry{Path: rel, IsDir: info.IsDir(), Size: info.Size(), MTime: mt.Unix(), ModTime: mt}
}

// buildPlan computes the local changes that make localTree equal remoteTree.
func buildPlan(remoteTree, localTree map[string]treeEntry) syncPlan {
	plan := syncPlan{}
	for rel, src := range remoteTree {
		dst, exists := localTree[rel]
		if !exists {
			if src.IsDir {
				plan.mkdirs = append(plan.mkdirs, src)
			} else {
				plan.downloads = append(plan.downloads, src)
			}
			continue
		}
		if src.IsDir != dst.IsDir {
			plan.deleteTypeConflicts = append(plan.deleteTypeConflicts, dst)
			if src.IsDir {
				plan.mkdirs = append(plan.mkdirs, src)
			} else {
				plan.downloads = append(plan.downloads, src)
			}
			continue
		}
		if !src.IsDir && (src.Size != dst.Size || src.MTime != dst.MTime) {
			plan.downloads = append(plan.downloads, src)
		}
	}
	for rel, dst := range localTree {
		if _, exists := remoteTree[rel]; exists {
			continue
		}
		if underAny(rel, plan.deleteTypeConflicts) {
			continue
		}
		if dst.IsDir {
			plan.deleteExtrasDirs = append(plan.deleteExtrasDirs, dst)
		} else {
			plan.deleteExtrasFiles = append(plan.deleteExtrasFiles, dst)
		}
	}

	sort.Slice(plan.deleteTypeConflicts, func(i, j int) bool {
		return pathDepth(plan.deleteTypeConflicts[i].Path) > pathDepth(plan.deleteTypeConflicts[j].Path)
	})
	sort.Slice(plan.mkdirs, func(i, j int) bool {
		di := pathDepth(plan.mkdirs[i].Path)
		dj := pathDepth(plan.mkdirs[j].Path)
		if di == dj {
			return plan.mkdirs[i].Path < plan.mkdirs[j].Path
		}
		return di < dj
	})
	sort.Slice(plan.downloads, func(i, j int) bool { return plan.downloads[i].Path < plan.downloads[j].Path })
	sort.Slice(plan.deleteExtrasFiles, func(i, j int) bool { return plan.deleteExtrasFiles[i].Path < plan.deleteExtrasFiles[j].Path })
	sort.Slice(plan.deleteExtrasDirs, func(i, j int) bool {
		di := pathDepth(plan.deleteExtrasDirs[i].Path)
		dj := pathDepth(plan.deleteExtrasDirs[j].Path)
		if di == dj {
			return plan.deleteExtrasDirs[i].Path > plan.deleteExtrasDirs[j].Path
		}
		return di > dj
	})
	return plan
}

// underAny reports whether rel lives inside one of the removed directories.
func underAny(rel string, removed []treeEntry) bool {
	for _, r := range removed {
		if r.IsDir && strings.HasPrefix(rel, r.Path+"/") {
			return true
		}
	}
	return false
}

func pathDepth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}
