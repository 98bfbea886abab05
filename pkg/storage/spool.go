package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidKey is returned for keys that would escape the spool directory.
var ErrInvalidKey = errors.New("invalid spool key")

// Spool keeps uploaded files on local disk between acceptance and
// processing. Keys are flat file names inside the base directory.
type Spool struct {
	baseDir string
}

// NewSpool ensures the base directory exists and returns a handle.
func NewSpool(baseDir string) (*Spool, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "enrollment-imports")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Spool{baseDir: baseDir}, nil
}

// Put writes data under key. The file appears atomically so a reader never
// sees a partial upload.
func (s *Spool) Put(key string, data []byte) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close spool file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish spool file: %w", err)
	}
	return key, nil
}

// Read returns the bytes stored under key.
func (s *Spool) Read(key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spool file: %w", err)
	}
	return data, nil
}

// Remove deletes key if present.
func (s *Spool) Remove(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete spool file: %w", err)
	}
	return nil
}

// Sweep removes files older than ttl, such as uploads left behind by a
// crash, and returns their keys.
func (s *Spool) Sweep(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list spool: %w", err)
	}
	deleted := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("stat spool file: %w", err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return deleted, fmt.Errorf("sweep spool: %w", err)
		}
		deleted = append(deleted, entry.Name())
	}
	return deleted, nil
}

// Dir exposes the spool directory.
func (s *Spool) Dir() string {
	return s.baseDir
}

func (s *Spool) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.baseDir, key), nil
}
