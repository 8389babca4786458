// Package storage defines the world file-system abstraction.
package storage

import (
	"context"
	"time"
)

// FileInfo is lightweight metadata returned by list operations.
type FileInfo struct {
	Path       string
	Checksum   string
	ModifiedAt time.Time
}

// Provider is the interface for world file operations. All paths are
// relative to the world root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]FileInfo, error)
	// Dirs returns the names of the immediate subdirectories of dir.
	Dirs(dir string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether path exists.
	Exists(path string) bool
	// Stat returns metadata for a single file.
	Stat(path string) (FileInfo, error)
	// CopyTree recursively copies the directory at src to dst, checking ctx
	// between files. A partial copy is removed on failure or cancellation.
	CopyTree(ctx context.Context, src, dst string) error
	// RemoveTree removes the directory at path and everything under it.
	RemoveTree(path string) error
}
