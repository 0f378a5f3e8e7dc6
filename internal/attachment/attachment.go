// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package attachment manages attachment content and metadata: blob storage
// of the original bytes and any size variants, plus byte-range serving.
// Ownership and authorization stay with the observation engine; this
// package trusts its callers on both.
package attachment

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/BrianFlannery/mage-server-1/internal/blob"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/store"
)

// Service stores and serves attachment content.
type Service struct {
	meta  *store.Attachments
	blobs *blob.Store
}

// NewService builds an attachment service over the metadata store and blob
// storage.
func NewService(meta *store.Attachments, blobs *blob.Store) *Service {
	return &Service{meta: meta, blobs: blobs}
}

// locator builds the blob path for an attachment's original content.
func locator(eventID, observationID, attachmentID string) string {
	return path.Join(eventID, observationID, attachmentID)
}

// Create stores the content and registers the attachment. The returned
// attachment carries the assigned id, measured size, and blob locator.
func (s *Service) Create(ctx context.Context, eventID, observationID, name, contentType string, content io.Reader) (*models.Attachment, error) {
	att := &models.Attachment{
		ID:            uuid.New().String(),
		ObservationID: observationID,
		EventID:       eventID,
		Name:          name,
		ContentType:   contentType,
		LastModified:  time.Now().UTC(),
	}
	att.Path = locator(eventID, observationID, att.ID)

	size, err := s.blobs.Put(att.Path, content)
	if err != nil {
		return nil, err
	}
	att.Size = size

	if err := s.meta.Put(ctx, att); err != nil {
		// Metadata is the source of truth; orphaned bytes get removed.
		_ = s.blobs.Delete(att.Path)
		return nil, err
	}
	return att, nil
}

// UpdateContent replaces the original bytes of an existing attachment. Size
// variants derived from the old content become stale and are dropped.
func (s *Service) UpdateContent(ctx context.Context, id, contentType string, content io.Reader) (*models.Attachment, error) {
	att, err := s.meta.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	size, err := s.blobs.Put(att.Path, content)
	if err != nil {
		return nil, err
	}
	for _, v := range att.Variants {
		if err := s.blobs.Delete(v.Path); err != nil {
			logging.Warn().Err(err).Str("attachment_id", id).Str("variant", v.Name).
				Msg("Failed to remove stale variant content")
		}
	}
	att.Variants = nil
	att.Size = size
	if contentType != "" {
		att.ContentType = contentType
	}
	att.LastModified = time.Now().UTC()

	if err := s.meta.Put(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

// PutVariant stores an alternate rendition (e.g. a thumbnail) of the
// attachment under the given variant name, replacing any previous one.
func (s *Service) PutVariant(ctx context.Context, id, name, contentType string, content io.Reader) (*models.Attachment, error) {
	if name == "" {
		return nil, models.NewInvalidInput("variant", "variant name is required")
	}
	att, err := s.meta.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	variantPath := att.Path + "@" + name
	size, err := s.blobs.Put(variantPath, content)
	if err != nil {
		return nil, err
	}
	if att.Variants == nil {
		att.Variants = make(map[string]models.SizeVariant, 1)
	}
	att.Variants[name] = models.SizeVariant{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Path:        variantPath,
	}
	att.LastModified = time.Now().UTC()

	if err := s.meta.Put(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

// Get returns the attachment metadata, or models.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Attachment, error) {
	return s.meta.Get(ctx, id)
}

// Delete removes the attachment's metadata and all of its content,
// variants included. Missing blobs do not fail the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	att, err := s.meta.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.meta.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(att.Path); err != nil {
		logging.Warn().Err(err).Str("attachment_id", id).Msg("Failed to remove attachment content")
	}
	for _, v := range att.Variants {
		if err := s.blobs.Delete(v.Path); err != nil {
			logging.Warn().Err(err).Str("attachment_id", id).Str("variant", v.Name).
				Msg("Failed to remove variant content")
		}
	}
	return nil
}

// Content is an opened attachment ready to stream. When Partial is set the
// reader covers [Start, End] of a blob of TotalSize bytes; otherwise it
// covers the whole blob and Start/End span it entirely.
type Content struct {
	Reader      io.ReadCloser
	ContentType string
	TotalSize   int64
	Start       int64
	End         int64
	Partial     bool
}

// ContentLength returns the number of bytes the reader will produce.
func (c *Content) ContentLength() int64 {
	return c.End - c.Start + 1
}

// Open opens the attachment's content for serving. An empty or unknown
// variant name selects the original bytes. rangeHeader is the raw Range
// header; a syntactically valid range whose start lies beyond the content
// fails with models.ErrRangeNotSatisfiable.
func (s *Service) Open(ctx context.Context, id, variant, rangeHeader string) (*Content, error) {
	att, err := s.meta.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	contentType, size, blobPath := att.Variant(variant)
	if blobPath == "" {
		return nil, models.ErrNotFound
	}

	br, ranged, err := ParseRange(rangeHeader, size)
	if err != nil {
		return nil, &RangeError{Size: size}
	}
	if !ranged {
		br = ByteRange{Start: 0, End: size - 1}
	}

	r, err := s.blobs.OpenRange(blobPath, br.Start, br.Length())
	if err != nil {
		return nil, err
	}
	return &Content{
		Reader:      r,
		ContentType: contentType,
		TotalSize:   size,
		Start:       br.Start,
		End:         br.End,
		Partial:     ranged,
	}, nil
}
