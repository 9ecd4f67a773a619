// Package service drives snapshots of one configured resource: it lists,
// describes, creates, restores and deletes them through a storage backend.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"resource-backup/src/backend"
	"resource-backup/src/catalog"
	"resource-backup/src/config"
)

// Snapshot layout below storage_path/<name>.
const (
	DataName = "data"
	ACLName  = "acl.txt"
)

// Service runs every operation against one backup config and one backend.
type Service struct {
	cfg config.Config
	be  backend.Backend
	log zerolog.Logger
	now func() time.Time
}

func New(cfg config.Config, be backend.Backend, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, be: be, log: log, now: time.Now}
}

// SetClockForTest replaces the clock used for created_at.
func (s *Service) SetClockForTest(now func() time.Time) {
	s.now = now
}

// Config returns the config the service runs against.
func (s *Service) Config() config.Config { return s.cfg }

// Summary is the list view of an entry.
type Summary struct {
	Name      string   `json:"name"`
	CreatedAt string   `json:"created_at"`
	Groups    []string `json:"groups"`
}

// Entries scans storage and returns the entries of the configured target
// matching q, oldest first.
func (s *Service) Entries(ctx context.Context, q catalog.Query) ([]catalog.Entry, error) {
	all, err := catalog.Scan(ctx, s.be, s.cfg.StoragePath, s.log)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(all, s.cfg.Name, q), nil
}

func (s *Service) List(ctx context.Context, q catalog.Query) ([]Summary, error) {
	entries, err := s.Entries(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, Summary{Name: e.Name, CreatedAt: e.CreatedAt, Groups: e.Groups})
	}
	return out, nil
}

// Describe returns full entries including their storage location.
func (s *Service) Describe(ctx context.Context, q catalog.Query) ([]catalog.Entry, error) {
	return s.Entries(ctx, q)
}
