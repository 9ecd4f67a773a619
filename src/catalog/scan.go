package catalog

import (
	"context"
	"path"

	"github.com/rs/zerolog"

	"resource-backup/src/backend"
	"resource-backup/src/errs"
)

// Scan reads every info.json below root and returns the valid entries in
// backend order. Invalid archives are skipped and logged at info level; only
// a failure to list the root fails the scan.
func Scan(ctx context.Context, be backend.Backend, root string, log zerolog.Logger) ([]Entry, error) {
	files, err := be.ListMetadataFiles(ctx, root)
	if err != nil {
		return nil, errs.Storage("list", root, err)
	}
	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := load(ctx, be, f)
		if err != nil {
			log.Info().Err(err).Str("path", f).Msg("skipping invalid archive")
			continue
		}
		entries = append(entries, entry)
	}
	log.Debug().Str("root", root).Int("found", len(files)).Int("valid", len(entries)).Msg("catalog scanned")
	return entries, nil
}

func load(ctx context.Context, be backend.Backend, file string) (Entry, error) {
	data, err := be.ReadFile(ctx, file)
	if err != nil {
		return Entry{}, errs.InvalidArchive(file, err)
	}
	rec, err := ParseRecord(data)
	if err != nil {
		return Entry{}, errs.InvalidArchive(file, err)
	}
	return Entry{Record: rec, Meta: Meta{BackupPath: path.Dir(file)}}, nil
}
