package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// socketNamespace scopes workspace hashes so they never collide with other
// name-based UUIDs derived from the same path.
var socketNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/berrythewa/pwrepl/socket"))

// WorkspaceHash returns a short stable identifier for a workspace directory.
func WorkspaceHash(workspace string) string {
	id := uuid.NewSHA1(socketNamespace, []byte(filepath.Clean(workspace)))
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}

// DefaultSocketPath derives the backend socket address for a workspace.
// Unix socket paths are limited to ~100 bytes, so the hash is used instead of the path itself.
func DefaultSocketPath(workspace string) string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pwrepl-"+WorkspaceHash(workspace)+".sock")
}
