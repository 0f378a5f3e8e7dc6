// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package attachment

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/BrianFlannery/mage-server-1/internal/blob"
	"github.com/BrianFlannery/mage-server-1/internal/models"
	"github.com/BrianFlannery/mage-server-1/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})
	blobs, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob.NewStore() error = %v", err)
	}
	return NewService(store.NewAttachments(db), blobs)
}

func createTestAttachment(t *testing.T, s *Service, content string) *models.Attachment {
	t.Helper()
	att, err := s.Create(context.Background(), "e1", "o1", "photo.jpg", "image/jpeg", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return att
}

func readContent(t *testing.T, c *Content) string {
	t.Helper()
	defer func() { _ = c.Reader.Close() }()
	data, err := io.ReadAll(c.Reader)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	return string(data)
}

func TestCreateAndOpen(t *testing.T) {
	s := newTestService(t)
	att := createTestAttachment(t, s, "jpeg bytes here")

	if att.ID == "" {
		t.Fatal("Create() must assign an id")
	}
	if att.Size != int64(len("jpeg bytes here")) {
		t.Errorf("Size = %d, want measured content length", att.Size)
	}

	c, err := s.Open(context.Background(), att.ID, "", "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Partial {
		t.Error("full read should not be partial")
	}
	if c.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q", c.ContentType)
	}
	if got := readContent(t, c); got != "jpeg bytes here" {
		t.Errorf("content = %q", got)
	}
}

func TestOpenRange(t *testing.T) {
	s := newTestService(t)
	att := createTestAttachment(t, s, "0123456789")
	ctx := context.Background()

	tests := []struct {
		name       string
		header     string
		want       string
		wantStart  int64
		wantEnd    int64
		wantErr    bool
		wantWhole  bool
	}{
		{name: "interior range", header: "bytes=2-5", want: "2345", wantStart: 2, wantEnd: 5},
		{name: "open ended", header: "bytes=7-", want: "789", wantStart: 7, wantEnd: 9},
		{name: "end clamped", header: "bytes=8-500", want: "89", wantStart: 8, wantEnd: 9},
		{name: "start past content", header: "bytes=10-12", wantErr: true},
		{name: "malformed serves whole", header: "bytes=abc", want: "0123456789", wantWhole: true},
		{name: "foreign unit serves whole", header: "chunks=1-2", want: "0123456789", wantWhole: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := s.Open(ctx, att.ID, "", tt.header)
			if tt.wantErr {
				if !errors.Is(err, models.ErrRangeNotSatisfiable) {
					t.Fatalf("Open() error = %v, want ErrRangeNotSatisfiable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if tt.wantWhole && c.Partial {
				t.Error("unusable range header should serve the whole content")
			}
			if !tt.wantWhole {
				if !c.Partial {
					t.Error("ranged read should be partial")
				}
				if c.Start != tt.wantStart || c.End != tt.wantEnd {
					t.Errorf("range = %d-%d, want %d-%d", c.Start, c.End, tt.wantStart, tt.wantEnd)
				}
				if c.ContentLength() != int64(len(tt.want)) {
					t.Errorf("ContentLength() = %d, want %d", c.ContentLength(), len(tt.want))
				}
			}
			if c.TotalSize != 10 {
				t.Errorf("TotalSize = %d, want 10", c.TotalSize)
			}
			if got := readContent(t, c); got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVariants(t *testing.T) {
	s := newTestService(t)
	att := createTestAttachment(t, s, "full resolution bytes")
	ctx := context.Background()

	updated, err := s.PutVariant(ctx, att.ID, "thumbnail", "image/png", strings.NewReader("tiny"))
	if err != nil {
		t.Fatalf("PutVariant() error = %v", err)
	}
	v, ok := updated.Variants["thumbnail"]
	if !ok || v.Size != 4 {
		t.Fatalf("variant = %+v, want 4-byte thumbnail", v)
	}

	c, err := s.Open(ctx, att.ID, "thumbnail", "")
	if err != nil {
		t.Fatalf("Open(thumbnail) error = %v", err)
	}
	if c.ContentType != "image/png" {
		t.Errorf("variant ContentType = %q, want image/png", c.ContentType)
	}
	if got := readContent(t, c); got != "tiny" {
		t.Errorf("variant content = %q", got)
	}

	// Unknown variant falls back to the original.
	c, err = s.Open(ctx, att.ID, "huge", "")
	if err != nil {
		t.Fatalf("Open(unknown variant) error = %v", err)
	}
	if got := readContent(t, c); got != "full resolution bytes" {
		t.Errorf("fallback content = %q, want the original", got)
	}

	if _, err := s.PutVariant(ctx, att.ID, "", "image/png", strings.NewReader("x")); !models.IsInvalidInput(err) {
		t.Errorf("PutVariant with empty name error = %v, want invalid input", err)
	}
}

func TestUpdateContentDropsVariants(t *testing.T) {
	s := newTestService(t)
	att := createTestAttachment(t, s, "version one")
	ctx := context.Background()

	if _, err := s.PutVariant(ctx, att.ID, "thumbnail", "image/png", strings.NewReader("tiny")); err != nil {
		t.Fatalf("PutVariant() error = %v", err)
	}

	updated, err := s.UpdateContent(ctx, att.ID, "image/webp", strings.NewReader("v2"))
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if updated.Size != 2 || updated.ContentType != "image/webp" {
		t.Errorf("updated = size %d type %q", updated.Size, updated.ContentType)
	}
	if len(updated.Variants) != 0 {
		t.Error("replacing content must drop stale variants")
	}

	c, err := s.Open(ctx, att.ID, "", "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := readContent(t, c); got != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestDelete(t *testing.T) {
	s := newTestService(t)
	att := createTestAttachment(t, s, "content")
	ctx := context.Background()

	if _, err := s.PutVariant(ctx, att.ID, "thumbnail", "image/png", strings.NewReader("tiny")); err != nil {
		t.Fatalf("PutVariant() error = %v", err)
	}
	if err := s.Delete(ctx, att.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Get(ctx, att.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := s.Open(ctx, att.ID, "", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Open() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, att.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestOpenMissing(t *testing.T) {
	s := newTestService(t)
	if _, err := s.Open(context.Background(), "missing", "", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
}
