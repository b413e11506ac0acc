package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// Saver stores a downloaded file on the client side and returns where it went.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(name string, data []byte) (string, error)

// Save calls f.
func (f SaverFunc) Save(name string, data []byte) (string, error) {
	return f(name, data)
}

// DirSaver writes files into a directory.
type DirSaver struct {
	Dir string
}

// Save writes data to Dir/name, creating Dir if needed.
func (s DirSaver) Save(name string, data []byte) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
