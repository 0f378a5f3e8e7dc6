// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package blob stores attachment content on the local filesystem under a
// single root directory. Locators are forward-slash relative paths handed
// out by the attachment layer; the blob store never invents or interprets
// them beyond containment checks.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// Store is a filesystem-backed blob store rooted at a single directory.
type Store struct {
	root string
}

// NewStore ensures the root directory exists and returns a store over it.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// resolve maps a locator to an absolute path, rejecting anything that would
// escape the root.
func (s *Store) resolve(locator string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob locator %q", locator)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes the content to the locator and returns the byte count. The
// write lands in a temp file first and renames into place, so a concurrent
// reader sees either the old content or the new, never a torn file.
func (s *Store) Put(locator string, r io.Reader) (int64, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write blob %s: %w", locator, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync blob %s: %w", locator, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close blob %s: %w", locator, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("install blob %s: %w", locator, err)
	}
	return n, nil
}

// Size returns the stored content length, or models.ErrNotFound.
func (s *Store) Size(locator string) (int64, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, models.ErrNotFound
		}
		return 0, fmt.Errorf("stat blob %s: %w", locator, err)
	}
	return info.Size(), nil
}

// Open returns a reader over the full content and its size, or
// models.ErrNotFound.
func (s *Store) Open(locator string) (io.ReadSeekCloser, int64, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, models.ErrNotFound
		}
		return nil, 0, fmt.Errorf("open blob %s: %w", locator, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat blob %s: %w", locator, err)
	}
	return f, info.Size(), nil
}

// sectionCloser couples a SectionReader with the file it reads from.
type sectionCloser struct {
	*io.SectionReader
	f *os.File
}

func (s *sectionCloser) Close() error {
	return s.f.Close()
}

// OpenRange returns a reader over [offset, offset+length) of the content.
// The caller has already validated the range against the stored size.
func (s *Store) OpenRange(locator string, offset, length int64) (io.ReadCloser, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", locator, err)
	}
	return &sectionCloser{
		SectionReader: io.NewSectionReader(f, offset, length),
		f:             f,
	}, nil
}

// Delete removes the content. Deleting an absent blob is not an error.
func (s *Store) Delete(locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", locator, err)
	}
	return nil
}
