// Package errs defines the error kinds shared by every layer of the tool and
// maps them to process exit codes.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed configuration or arguments.
	ErrValidation = errors.New("validation error")
	// ErrResourceMissing marks a create against a resource that does not exist.
	ErrResourceMissing = errors.New("resource missing")
	// ErrStorage marks any storage backend failure.
	ErrStorage = errors.New("storage error")
	// ErrNotFound marks a restore with no matching snapshot.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArchive marks an unusable info.json. It never leaves the scanner.
	ErrInvalidArchive = errors.New("invalid archive")
)

// Validation returns an ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ResourceMissing returns an ErrResourceMissing naming the path.
func ResourceMissing(path string) error {
	return fmt.Errorf("%w: %s does not exist", ErrResourceMissing, path)
}

// NotFound returns an ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Storage wraps a backend failure. Nil in, nil out; errors that are already
// storage errors are returned unchanged.
func Storage(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, path, err)
}

// InvalidArchive wraps the reason a metadata file was rejected.
func InvalidArchive(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidArchive, path, err)
}
