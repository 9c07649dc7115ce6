// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable persistence for conversations, the
// listing index and per-conversation preferences.
//
// All stores follow the same write model: read the entire resource, mutate it
// in memory, write the entire resource back. No store takes a lock, so two
// logically concurrent mutations of the same resource are last-writer-wins.
// That is an accepted property of the single-user client this core serves,
// not an oversight; callers that need stronger guarantees must serialize
// access themselves.
package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// DRIVER BOUNDARY
// =============================================================================

// Driver is the storage boundary the stores are built on. Absence is a value
// here, not an error: Read and Remove report "not found" through their ok
// result so callers branch on a value instead of inspecting error metadata.
type Driver interface {
	// Read returns the file contents. ok is false when the path does not
	// exist; err is reserved for real I/O failures.
	Read(path string) (data []byte, ok bool, err error)

	// Write atomically replaces the file contents, creating parent
	// directories as needed.
	Write(path string, data []byte) error

	// Remove deletes the file. ok is false when the path did not exist.
	Remove(path string) (ok bool, err error)

	// List returns the file names (not paths) inside a directory.
	List(dir string) ([]string, error)
}

// =============================================================================
// OS FILESYSTEM DRIVER
// =============================================================================

// DirDriver implements Driver over the OS filesystem, with every path
// resolved relative to Base. Base is the userdata root, e.g.
// ~/.parley; documents live under <Base>/data/....
type DirDriver struct {
	Base string
}

// NewDirDriver creates a driver rooted at the given directory.
func NewDirDriver(base string) *DirDriver {
	return &DirDriver{Base: base}
}

// DefaultBase returns the default userdata root, ~/.parley.
func DefaultBase() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".parley"), nil
}

func (d *DirDriver) resolve(path string) string {
	return filepath.Join(d.Base, filepath.FromSlash(path))
}

// Read implements Driver.
func (d *DirDriver) Read(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(d.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Write implements Driver. Writes go through util.AtomicWriteFile so a crash
// never leaves a partially written document.
func (d *DirDriver) Write(path string, data []byte) error {
	return util.AtomicWriteFile(d.resolve(path), data, 0644)
}

// Remove implements Driver.
func (d *DirDriver) Remove(path string) (bool, error) {
	if err := os.Remove(d.resolve(path)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List implements Driver. Only regular files are returned.
func (d *DirDriver) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(d.resolve(dir))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// jsonName reports whether a directory entry looks like a stored document.
func jsonName(name string) bool {
	return strings.HasSuffix(name, ".json")
}
