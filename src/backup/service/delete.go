package service

import (
	"context"
	"errors"

	"resource-backup/src/catalog"
)

// DeleteMode selects how a batch delete reacts to a failed removal.
type DeleteMode int

const (
	// FailFast stops at the first failed removal.
	FailFast DeleteMode = iota
	// BestEffort attempts every removal and reports all failures together.
	BestEffort
)

// Delete removes every snapshot matching q, oldest first, and returns the
// entries actually removed. Removal is irreversible.
func (s *Service) Delete(ctx context.Context, q catalog.Query, mode DeleteMode) ([]catalog.Entry, error) {
	entries, err := s.Entries(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.DeleteEntries(ctx, entries, mode)
}

// DeleteEntries removes exactly the given snapshots, in order, without
// rescanning storage.
func (s *Service) DeleteEntries(ctx context.Context, entries []catalog.Entry, mode DeleteMode) ([]catalog.Entry, error) {
	var removed []catalog.Entry
	var failures []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.be.RemoveTree(ctx, e.Meta.BackupPath); err != nil {
			if mode == FailFast {
				return removed, err
			}
			s.log.Warn().Err(err).Str("snapshot", e.Name).Msg("delete failed, continuing")
			failures = append(failures, err)
			continue
		}
		s.log.Info().Str("snapshot", e.Name).Str("path", e.Meta.BackupPath).Msg("snapshot deleted")
		removed = append(removed, e)
	}
	return removed, errors.Join(failures...)
}
