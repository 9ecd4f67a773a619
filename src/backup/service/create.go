package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"resource-backup/src/acl"
	"resource-backup/src/backend"
	"resource-backup/src/catalog"
	"resource-backup/src/errs"
)

// maxNameSuffix bounds the -N suffixes tried when a snapshot directory for
// the current second already exists.
const maxNameSuffix = 100

// Create snapshots the resource. The snapshot only becomes visible once
// info.json is written last; an interrupted create leaves an orphaned
// directory that scans ignore.
func (s *Service) Create(ctx context.Context, extraGroups []string, progress io.Writer) (catalog.Entry, error) {
	if err := s.checkResource(true); err != nil {
		return catalog.Entry{}, err
	}

	createdAt := catalog.Timestamp(s.now())
	dir, fullName, err := s.makeSnapshotDir(ctx, s.cfg.Name+"-"+createdAt)
	if err != nil {
		return catalog.Entry{}, err
	}
	log := s.log.With().Str("snapshot", fullName).Logger()

	data := path.Join(dir, DataName)
	opts := backend.MirrorOptions{Direction: backend.ToStorage, DeleteExtraneous: true, Progress: progress}
	if s.cfg.IsDirectory() {
		if err := s.be.Mkdir(ctx, data); err != nil {
			return catalog.Entry{}, err
		}
		opts.Semantics = backend.ContentsOnly
	} else {
		opts.Semantics = backend.WholeEntry
	}
	log.Info().Str("src", s.cfg.ResourcePath).Str("dst", data).Msg("copying resource")
	if err := s.be.MirrorTree(ctx, s.cfg.ResourcePath, data, opts); err != nil {
		return catalog.Entry{}, err
	}

	if s.cfg.ACL {
		listing, err := acl.Capture(ctx, s.cfg.ResourcePath, s.cfg.IsDirectory())
		if err != nil {
			return catalog.Entry{}, err
		}
		if err := s.be.WriteFile(ctx, path.Join(dir, ACLName), listing); err != nil {
			return catalog.Entry{}, err
		}
		log.Debug().Int("bytes", len(listing)).Msg("acl captured")
	}

	groups := make([]string, 0, 2+len(extraGroups))
	groups = append(groups, s.cfg.Name, createdAt)
	groups = append(groups, extraGroups...)
	rec := catalog.Record{
		Name:        fullName,
		Description: s.cfg.Description,
		ACL:         s.cfg.ACL,
		CreatedAt:   createdAt,
		Groups:      groups,
	}
	doc, err := rec.Marshal()
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("encode metadata: %w", err)
	}
	if err := s.be.WriteFile(ctx, path.Join(dir, backend.MetadataFile), doc); err != nil {
		return catalog.Entry{}, err
	}
	log.Info().Msg("snapshot created")
	return catalog.Entry{Record: rec, Meta: catalog.Meta{BackupPath: dir}}, nil
}

// makeSnapshotDir creates storage/base, falling back to base-1, base-2, ...
// when a snapshot of the same second already exists.
func (s *Service) makeSnapshotDir(ctx context.Context, base string) (string, string, error) {
	for i := 0; i <= maxNameSuffix; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d", base, i)
		}
		dir := path.Join(s.cfg.StoragePath, name)
		err := s.be.Mkdir(ctx, dir)
		if err == nil {
			return dir, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
		s.log.Debug().Str("dir", dir).Msg("snapshot directory exists, trying next suffix")
	}
	return "", "", errs.Storage("mkdir", path.Join(s.cfg.StoragePath, base),
		fmt.Errorf("%d suffixes already taken: %w", maxNameSuffix, fs.ErrExist))
}

// checkResource verifies the live resource against resource_type. A missing
// resource is an error only when mustExist is set.
func (s *Service) checkResource(mustExist bool) error {
	info, err := os.Stat(s.cfg.ResourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		if mustExist {
			return errs.ResourceMissing(s.cfg.ResourcePath)
		}
		return nil
	}
	if err != nil {
		return errs.Storage("inspect", s.cfg.ResourcePath, err)
	}
	if info.IsDir() != s.cfg.IsDirectory() {
		actual := "file"
		if info.IsDir() {
			actual = "directory"
		}
		return errs.Validation("resource %s is a %s but resource_type is %s", s.cfg.ResourcePath, actual, s.cfg.ResourceType)
	}
	return nil
}
