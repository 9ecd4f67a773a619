package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"resource-backup/src/backend"
	"resource-backup/src/errs"
)

// Backend implements backend.Backend with direct filesystem calls.
type Backend struct{}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

// ListMetadataFiles walks root for info.json files. Descent stops at a
// directory holding one, so snapshot data that itself contains info.json
// files never shows up as a catalog entry. The root is not a snapshot
// directory: an info.json directly in it is ignored. A symlinked root is
// followed and results are reported below root as given.
func (b *Backend) ListMetadataFiles(ctx context.Context, root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Storage("list", root, err)
	}
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, errs.Storage("list", root, err)
	}
	var found []string
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() || path == walkRoot {
			return nil
		}
		candidate := filepath.Join(path, backend.MetadataFile)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			rel, err := filepath.Rel(walkRoot, candidate)
			if err != nil {
				return err
			}
			found = append(found, filepath.Join(root, rel))
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storage("list", root, err)
	}
	return found, nil
}

func (b *Backend) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Storage("read", path, err)
	}
	return data, nil
}

// WriteFile stages data next to path and renames it into place.
func (b *Backend) WriteFile(_ context.Context, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".tmp-%s-", filepath.Base(path)))
	if err != nil {
		return errs.Storage("write", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Storage("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Storage("write", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errs.Storage("write", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.Storage("write", path, err)
	}
	tmpName = ""
	return nil
}

func (b *Backend) Mkdir(_ context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Storage("mkdir", path, err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return errs.Storage("mkdir", path, err)
	}
	return nil
}

func (b *Backend) RemoveTree(_ context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errs.Storage("remove", path, err)
	}
	return nil
}

func (b *Backend) MirrorTree(ctx context.Context, src, dst string, opts backend.MirrorOptions) error {
	var err error
	switch opts.Semantics {
	case backend.WholeEntry:
		err = mirrorFile(ctx, src, dst, opts)
	default:
		err = mirrorDir(ctx, src, dst, opts)
	}
	if err != nil {
		return errs.Storage("mirror", src+" -> "+dst, err)
	}
	return nil
}

func (b *Backend) Close() error { return nil }
