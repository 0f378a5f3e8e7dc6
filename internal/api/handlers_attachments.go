// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/metrics"
)

// maxAttachmentBytes caps a single attachment upload.
const maxAttachmentBytes = 500 << 20

// AddAttachment handles POST .../observations/{observationID}/attachments.
// The body is the raw content; name comes from the query, content type
// from the header.
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")
	name := r.URL.Query().Get("name")
	contentType := r.Header.Get("Content-Type")

	body := http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
	att, err := h.observations.AddAttachment(r.Context(), user, eventID, observationID, name, contentType, body)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.AttachmentBytesStored.Add(float64(att.Size))
	writeJSON(w, http.StatusCreated, att)
}

// GetAttachment handles GET .../attachments/{attachmentID}, serving the
// content with byte-range support. A size query parameter selects a
// variant; unknown variants fall back to the original bytes.
func (h *Handler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")
	attachmentID := chi.URLParam(r, "attachmentID")
	variant := r.URL.Query().Get("size")

	content, err := h.observations.OpenAttachment(r.Context(), user, eventID, observationID, attachmentID,
		variant, r.Header.Get("Range"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	if content.ContentType != "" {
		w.Header().Set("Content-Type", content.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(content.ContentLength(), 10))

	if content.Partial {
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", content.Start, content.End, content.TotalSize))
		metrics.AttachmentRangeRequests.Inc()
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if _, err := io.Copy(w, content.Reader); err != nil {
		logging.Debug().Err(err).Str("attachment_id", attachmentID).Msg("Attachment stream interrupted")
	}
}

// UpdateAttachment handles PUT .../attachments/{attachmentID}, replacing
// the content wholesale.
func (h *Handler) UpdateAttachment(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")
	attachmentID := chi.URLParam(r, "attachmentID")
	contentType := r.Header.Get("Content-Type")

	body := http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
	att, err := h.observations.UpdateAttachment(r.Context(), user, eventID, observationID, attachmentID, contentType, body)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	metrics.AttachmentBytesStored.Add(float64(att.Size))
	writeJSON(w, http.StatusOK, att)
}

// DeleteAttachment handles DELETE .../attachments/{attachmentID}.
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	eventID := chi.URLParam(r, "eventID")
	observationID := chi.URLParam(r, "observationID")
	attachmentID := chi.URLParam(r, "attachmentID")

	if err := h.observations.DeleteAttachment(r.Context(), user, eventID, observationID, attachmentID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
