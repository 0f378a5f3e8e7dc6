// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

const attachmentKeyPrefix = "attachment:"

func attachmentKey(id string) []byte {
	return []byte(attachmentKeyPrefix + id)
}

// attachmentRecord is the persisted form of an attachment. The wire form
// hides blob locators; the record carries them explicitly so they survive
// the round trip.
type attachmentRecord struct {
	Attachment   models.Attachment `json:"attachment"`
	Path         string            `json:"path"`
	VariantPaths map[string]string `json:"variantPaths,omitempty"`
}

func newAttachmentRecord(att *models.Attachment) attachmentRecord {
	rec := attachmentRecord{Attachment: *att, Path: att.Path}
	if len(att.Variants) > 0 {
		rec.VariantPaths = make(map[string]string, len(att.Variants))
		for name, v := range att.Variants {
			rec.VariantPaths[name] = v.Path
		}
	}
	return rec
}

func (rec *attachmentRecord) restore() *models.Attachment {
	att := rec.Attachment
	att.Path = rec.Path
	for name, path := range rec.VariantPaths {
		v, ok := att.Variants[name]
		if !ok {
			continue
		}
		v.Path = path
		att.Variants[name] = v
	}
	return &att
}

// Attachments persists attachment metadata. The binary content itself lives
// in blob storage; only the locators are recorded here.
type Attachments struct {
	db *badger.DB
}

// NewAttachments builds an attachment metadata store over db.
func NewAttachments(db *badger.DB) *Attachments {
	return &Attachments{db: db}
}

// Put writes the attachment metadata, blob locators included.
func (s *Attachments) Put(ctx context.Context, att *models.Attachment) error {
	rec := newAttachmentRecord(att)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode attachment %s: %w", att.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(attachmentKey(att.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store attachment %s: %w", att.ID, err)
	}
	return nil
}

// Get returns the attachment metadata, or models.ErrNotFound.
func (s *Attachments) Get(ctx context.Context, id string) (*models.Attachment, error) {
	var att *models.Attachment
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attachmentKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var rec attachmentRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			att = rec.restore()
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load attachment %s: %w", id, err)
	}
	return att, nil
}

// Delete removes the attachment metadata. Deleting an absent attachment is
// not an error; the observation document is the source of truth for which
// attachments exist.
func (s *Attachments) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(attachmentKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}
	return nil
}
