// Package fileid derives stable model IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "model:"

// ModelID returns a stable ID for the model file at path. Relative paths
// are made absolute first so the CLI, the watcher and the server agree on
// the ID of the same file.
func ModelID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return prefix + hex.EncodeToString(hash[:])
}
