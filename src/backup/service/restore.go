package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"resource-backup/src/acl"
	"resource-backup/src/backend"
	"resource-backup/src/catalog"
	"resource-backup/src/errs"
)

// Latest returns the most recent entry matching q.
func (s *Service) Latest(ctx context.Context, q catalog.Query) (catalog.Entry, error) {
	entries, err := s.Entries(ctx, q)
	if err != nil {
		return catalog.Entry{}, err
	}
	if len(entries) == 0 {
		return catalog.Entry{}, errs.NotFound("no backup of %q matches %s", s.cfg.Name, describeQuery(q))
	}
	return entries[len(entries)-1], nil
}

// Restore mirrors the most recent snapshot matching q back onto the resource,
// removing anything the snapshot does not contain, and replays its ACLs.
func (s *Service) Restore(ctx context.Context, q catalog.Query, progress io.Writer) (catalog.Entry, error) {
	e, err := s.Latest(ctx, q)
	if err != nil {
		return catalog.Entry{}, err
	}
	return e, s.RestoreEntry(ctx, e, progress)
}

// RestoreEntry mirrors the given snapshot onto the resource. Callers that
// confirmed a specific entry restore exactly that one.
func (s *Service) RestoreEntry(ctx context.Context, e catalog.Entry, progress io.Writer) error {
	if err := s.checkResource(false); err != nil {
		return err
	}
	log := s.log.With().Str("snapshot", e.Name).Logger()
	target := s.cfg.ResourcePath
	opts := backend.MirrorOptions{Direction: backend.FromStorage, DeleteExtraneous: true, Progress: progress}

	ensure := filepath.Dir(target)
	opts.Semantics = backend.WholeEntry
	if s.cfg.IsDirectory() {
		ensure = target
		opts.Semantics = backend.ContentsOnly
	}
	if err := os.MkdirAll(ensure, 0o755); err != nil {
		return errs.Storage("prepare", ensure, err)
	}

	data := path.Join(e.Meta.BackupPath, DataName)
	log.Info().Str("src", data).Str("dst", target).Msg("restoring resource")
	if err := s.be.MirrorTree(ctx, data, target, opts); err != nil {
		return err
	}

	if e.ACL {
		listing, err := s.be.ReadFile(ctx, path.Join(e.Meta.BackupPath, ACLName))
		if err != nil {
			return err
		}
		if err := acl.Restore(ctx, listing, target, s.cfg.IsDirectory()); err != nil {
			return err
		}
		log.Debug().Msg("acl restored")
	}
	log.Info().Msg("snapshot restored")
	return nil
}

func describeQuery(q catalog.Query) string {
	if q.Kind == catalog.KindNone {
		return "any filter"
	}
	return fmt.Sprintf("%s %s", q.Kind, strings.Join(q.Values, " "))
}
