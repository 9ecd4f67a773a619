// Package fake wraps a real backend for unit tests: it records every call and
// can inject failures for chosen paths.
package fake

import (
	"context"
	"fmt"
	"sync"

	"resource-backup/src/backend"
	"resource-backup/src/errs"
)

// Call is one recorded backend invocation.
type Call struct {
	Op   string
	Path string
}

func (c Call) String() string { return c.Op + " " + c.Path }

// Backend delegates to Inner unless a failure is registered for the path.
type Backend struct {
	Inner backend.Backend

	// Fail maps "op path" (e.g. "remove /backups/x") to the error returned.
	Fail map[string]error

	mu    sync.Mutex
	calls []Call
}

var _ backend.Backend = (*Backend)(nil)

func New(inner backend.Backend) *Backend {
	return &Backend{Inner: inner, Fail: map[string]error{}}
}

// FailOn makes op on path return err.
func (f *Backend) FailOn(op, path string, err error) {
	f.Fail[Call{Op: op, Path: path}.String()] = err
}

// Calls returns the recorded calls in order.
func (f *Backend) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the paths passed to op, in order.
func (f *Backend) CallsTo(op string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c.Path)
		}
	}
	return out
}

func (f *Backend) record(op, path string) error {
	c := Call{Op: op, Path: path}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if err, ok := f.Fail[c.String()]; ok {
		return errs.Storage(op, path, fmt.Errorf("injected: %w", err))
	}
	return nil
}

func (f *Backend) ListMetadataFiles(ctx context.Context, root string) ([]string, error) {
	if err := f.record("list", root); err != nil {
		return nil, err
	}
	return f.Inner.ListMetadataFiles(ctx, root)
}

func (f *Backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := f.record("read", path); err != nil {
		return nil, err
	}
	return f.Inner.ReadFile(ctx, path)
}

func (f *Backend) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := f.record("write", path); err != nil {
		return err
	}
	return f.Inner.WriteFile(ctx, path, data)
}

func (f *Backend) Mkdir(ctx context.Context, path string) error {
	if err := f.record("mkdir", path); err != nil {
		return err
	}
	return f.Inner.Mkdir(ctx, path)
}

func (f *Backend) RemoveTree(ctx context.Context, path string) error {
	if err := f.record("remove", path); err != nil {
		return err
	}
	return f.Inner.RemoveTree(ctx, path)
}

// MirrorTree records the destination path.
func (f *Backend) MirrorTree(ctx context.Context, src, dst string, opts backend.MirrorOptions) error {
	if err := f.record("mirror", dst); err != nil {
		return err
	}
	return f.Inner.MirrorTree(ctx, src, dst, opts)
}

func (f *Backend) Close() error {
	_ = f.record("close", "")
	return f.Inner.Close()
}
