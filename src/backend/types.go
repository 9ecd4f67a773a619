package backend

import (
	"context"
	"io"
)

// MetadataFile is the name of the per-snapshot metadata document.
const MetadataFile = "info.json"

// Direction tells a backend which side of a mirror lives on storage.
type Direction int

const (
	// ToStorage copies from the live resource into storage.
	ToStorage Direction = iota
	// FromStorage copies from storage back onto the live resource.
	FromStorage
)

// Semantics selects how the mirror source is interpreted.
type Semantics int

const (
	// ContentsOnly populates dst with the contents of directory src.
	ContentsOnly Semantics = iota
	// WholeEntry copies the single file src to the literal path dst.
	WholeEntry
)

// MirrorOptions controls MirrorTree.
type MirrorOptions struct {
	Direction Direction
	Semantics Semantics
	// DeleteExtraneous removes from dst anything absent in src.
	DeleteExtraneous bool
	// Progress receives transfer progress when non-nil.
	Progress io.Writer
}

// Backend is the capability surface the catalog and the backup service run
// against. Storage paths are slash-separated. Every failure aborts the caller;
// implementations do not retry.
type Backend interface {
	// ListMetadataFiles returns every info.json below root. A missing root
	// yields no paths and no error.
	ListMetadataFiles(ctx context.Context, root string) ([]string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	// Mkdir creates missing parents and then path itself, failing with an
	// error wrapping fs.ErrExist when path is already present.
	Mkdir(ctx context.Context, path string) error
	// RemoveTree deletes path recursively. A missing path is not an error.
	RemoveTree(ctx context.Context, path string) error
	MirrorTree(ctx context.Context, src, dst string, opts MirrorOptions) error
	Close() error
}
