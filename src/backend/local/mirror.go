package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"resource-backup/src/backend"
	"resource-backup/src/util/progress"
)

type item struct {
	rel  string
	info fs.FileInfo
}

// mirrorDir makes dst hold the contents of src, the way `rsync -a src/ dst`
// does: regular files, directories and symlinks are copied with mode and mtime,
// devices and sockets are skipped.
func mirrorDir(ctx context.Context, src, dst string, opts backend.MirrorOptions) error {
	label := filepath.Base(src)
	// Roots are followed when they are symlinks, like the trailing slash
	// does for rsync; entries below them are copied as links.
	src, err := resolveRoot(src)
	if err != nil {
		return err
	}
	if dst, err = resolveRoot(dst); err != nil {
		return err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	items, total, err := plan(src)
	if err != nil {
		return err
	}
	if err := ensureDir(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	tracker := progress.NewTracker(opts.Progress, label, total)
	keep := make(map[string]struct{}, len(items))
	var dirs []item
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		keep[it.rel] = struct{}{}
		target := filepath.Join(dst, it.rel)
		source := filepath.Join(src, it.rel)
		switch mode := it.info.Mode(); {
		case mode.IsDir():
			if err := ensureDir(target, mode.Perm()); err != nil {
				return err
			}
			dirs = append(dirs, it)
		case mode&fs.ModeSymlink != 0:
			if err := copySymlink(source, target); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := copyFile(source, target, it.info, tracker); err != nil {
				return err
			}
		}
	}

	if opts.DeleteExtraneous {
		if err := prune(ctx, dst, keep); err != nil {
			return err
		}
	}

	// Directory mtimes last, deepest first, since writing children bumps them.
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		_ = os.Chtimes(filepath.Join(dst, d.rel), d.info.ModTime(), d.info.ModTime())
	}
	_ = os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
	if opts.Progress != nil {
		tracker.Finish()
	}
	return nil
}

// resolveRoot follows symlinks in p. A path that does not exist yet is
// returned unchanged.
func resolveRoot(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	return resolved, err
}

// mirrorFile copies the single file src to the literal path dst.
func mirrorFile(ctx context.Context, src, dst string, opts backend.MirrorOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", src)
	}
	if existing, err := os.Lstat(dst); err == nil && existing.IsDir() {
		return fmt.Errorf("destination %s is a directory", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return copySymlink(src, dst)
	}
	tracker := progress.NewTracker(opts.Progress, filepath.Base(src), info.Size())
	if err := copyFile(src, dst, info, tracker); err != nil {
		return err
	}
	if opts.Progress != nil {
		tracker.Finish()
	}
	return nil
}

// plan lists every entry below src in lexical order, parents before children.
func plan(src string) ([]item, int64, error) {
	var items []item
	var total int64
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		items = append(items, item{rel: rel, info: info})
		return nil
	})
	return items, total, err
}

// prune removes every entry below dst whose relative path is not in keep.
func prune(ctx context.Context, dst string, keep map[string]struct{}) error {
	var extraneous []string
	err := filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == dst {
			return nil
		}
		rel, err := filepath.Rel(dst, path)
		if err != nil {
			return err
		}
		if _, ok := keep[rel]; ok {
			return nil
		}
		extraneous = append(extraneous, path)
		if d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(extraneous)))
	for _, p := range extraneous {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

func ensureDir(path string, perm fs.FileMode) error {
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.IsDir():
		return os.Chmod(path, perm)
	case err == nil:
		if err := os.Remove(path); err != nil {
			return err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if current, err := os.Readlink(dst); err == nil && current == link {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return os.Symlink(link, dst)
}

// copyFile skips files whose size and mtime already match, like rsync's quick
// check. Otherwise content goes through a temp file renamed over dst.
func copyFile(src, dst string, info fs.FileInfo, tracker *progress.Tracker) error {
	if existing, err := os.Lstat(dst); err == nil {
		if existing.Mode().IsRegular() && existing.Size() == info.Size() && existing.ModTime().Equal(info.ModTime()) {
			if existing.Mode().Perm() != info.Mode().Perm() {
				return os.Chmod(dst, info.Mode().Perm())
			}
			return nil
		}
		if existing.IsDir() {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".tmp-"+strings.TrimPrefix(filepath.Base(dst), ".")+"-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, tracker.Wrap(in)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	chownLike(tmpName, info)
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// chownLike copies ownership when running as root, as rsync -a does.
func chownLike(path string, info fs.FileInfo) {
	if os.Geteuid() != 0 {
		return
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		_ = os.Lchown(path, int(st.Uid), int(st.Gid))
	}
}
