// Package acl captures and restores POSIX ACLs of a resource tree through
// getfacl/setfacl. Listings use paths relative to the restore root so a
// capture can be replayed onto the resource wherever it lives.
package acl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"resource-backup/src/tools"
)

// Root returns the directory a listing is relative to and the entry to list:
// the directory itself for a directory resource, the parent for a file.
func Root(resourcePath string, isDir bool) (dir, target string) {
	if isDir {
		return resourcePath, "."
	}
	return filepath.Dir(resourcePath), filepath.Base(resourcePath)
}

// Capture returns the ACL listing of the resource, recursive for directories.
func Capture(ctx context.Context, resourcePath string, isDir bool) ([]byte, error) {
	bin, err := tools.Detect(tools.GetFACL)
	if err != nil {
		return nil, err
	}
	dir, target := Root(resourcePath, isDir)
	args := []string{target}
	if isDir {
		args = []string{"-R", target}
	}
	out, err := tools.Run(ctx, tools.Command{Bin: bin, Args: args, Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("capture acl of %s: %w", resourcePath, err)
	}
	return []byte(out), nil
}

// Restore replays a listing produced by Capture onto the resource. The listing
// is staged in a temporary file that is removed on every return path.
func Restore(ctx context.Context, listing []byte, resourcePath string, isDir bool) error {
	bin, err := tools.Detect(tools.SetFACL)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp("", "acl-*.txt")
	if err != nil {
		return fmt.Errorf("stage acl listing: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(listing); err != nil {
		tmp.Close()
		return fmt.Errorf("stage acl listing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage acl listing: %w", err)
	}

	dir, _ := Root(resourcePath, isDir)
	cmd := tools.Command{Bin: bin, Args: []string{"--restore=" + tmpName}, Dir: dir}
	if _, err := tools.Run(ctx, cmd); err != nil {
		return fmt.Errorf("restore acl of %s: %w", resourcePath, err)
	}
	return nil
}
