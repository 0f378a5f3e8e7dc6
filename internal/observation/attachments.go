// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package observation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BrianFlannery/mage-server-1/internal/attachment"
	"github.com/BrianFlannery/mage-server-1/internal/authz"
	"github.com/BrianFlannery/mage-server-1/internal/eventbus"
	"github.com/BrianFlannery/mage-server-1/internal/logging"
	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// AddAttachment stores new content and links it to the observation. The
// observation document and the attachment metadata are kept consistent: if
// the observation vanished between content upload and linking, the orphaned
// content is removed again.
func (e *Engine) AddAttachment(ctx context.Context, user models.User, eventID, observationID, name, contentType string, content io.Reader) (*models.Attachment, error) {
	if name == "" {
		return nil, models.NewInvalidInput("name", "attachment name is required")
	}
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermUpdateObservationEvent); err != nil {
		return nil, err
	}
	if _, err := e.store.Get(ctx, eventID, observationID); err != nil {
		return nil, err
	}

	att, err := e.attachments.Create(ctx, eventID, observationID, name, contentType, content)
	if err != nil {
		return nil, err
	}

	obs, err := e.store.Mutate(ctx, eventID, observationID, func(obs *models.Observation) error {
		obs.Attachments = append(obs.Attachments, *att)
		obs.LastModified = time.Now().UTC()
		return nil
	})
	if err != nil {
		if derr := e.attachments.Delete(ctx, att.ID); derr != nil {
			logging.Warn().Err(derr).Str("attachment_id", att.ID).
				Msg("Failed to remove orphaned attachment content")
		}
		return nil, err
	}

	e.publish(eventbus.ActionUpdate, obs)
	logging.Info().Str("attachment_id", att.ID).Str("observation_id", observationID).
		Str("user_id", user.ID).Msg("Attachment added")
	return att, nil
}

// UpdateAttachment replaces the attachment's content.
func (e *Engine) UpdateAttachment(ctx context.Context, user models.User, eventID, observationID, attachmentID, contentType string, content io.Reader) (*models.Attachment, error) {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermUpdateObservationEvent); err != nil {
		return nil, err
	}
	if err := e.requireAttachmentRef(ctx, eventID, observationID, attachmentID); err != nil {
		return nil, err
	}

	att, err := e.attachments.UpdateContent(ctx, attachmentID, contentType, content)
	if err != nil {
		return nil, err
	}

	obs, err := e.store.Mutate(ctx, eventID, observationID, func(obs *models.Observation) error {
		for i := range obs.Attachments {
			if obs.Attachments[i].ID == attachmentID {
				obs.Attachments[i] = *att
				break
			}
		}
		obs.LastModified = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(eventbus.ActionUpdate, obs)
	return att, nil
}

// DeleteAttachment unlinks the attachment and removes its content.
func (e *Engine) DeleteAttachment(ctx context.Context, user models.User, eventID, observationID, attachmentID string) error {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermUpdateObservationEvent); err != nil {
		return err
	}
	if err := e.requireAttachmentRef(ctx, eventID, observationID, attachmentID); err != nil {
		return err
	}

	obs, err := e.store.Mutate(ctx, eventID, observationID, func(obs *models.Observation) error {
		kept := obs.Attachments[:0]
		for _, a := range obs.Attachments {
			if a.ID != attachmentID {
				kept = append(kept, a)
			}
		}
		obs.Attachments = kept
		obs.LastModified = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.attachments.Delete(ctx, attachmentID); err != nil && !errors.Is(err, models.ErrNotFound) {
		logging.Warn().Err(err).Str("attachment_id", attachmentID).
			Msg("Failed to remove unlinked attachment content")
	}

	e.publish(eventbus.ActionUpdate, obs)
	logging.Info().Str("attachment_id", attachmentID).Str("observation_id", observationID).
		Str("user_id", user.ID).Msg("Attachment deleted")
	return nil
}

// OpenAttachment opens attachment content for serving, optionally a size
// variant and optionally a byte range.
func (e *Engine) OpenAttachment(ctx context.Context, user models.User, eventID, observationID, attachmentID, variant, rangeHeader string) (*attachment.Content, error) {
	if err := e.gate.Authorize(ctx, user, eventID, authz.PermReadObservationEvent); err != nil {
		return nil, err
	}
	if err := e.requireAttachmentRef(ctx, eventID, observationID, attachmentID); err != nil {
		return nil, err
	}
	return e.attachments.Open(ctx, attachmentID, variant, rangeHeader)
}

// requireAttachmentRef confirms the observation exists and references the
// attachment. Attachment access always goes through the owning observation;
// a bare attachment id is not addressable.
func (e *Engine) requireAttachmentRef(ctx context.Context, eventID, observationID, attachmentID string) error {
	obs, err := e.store.Get(ctx, eventID, observationID)
	if err != nil {
		return err
	}
	if _, ok := obs.AttachmentByID(attachmentID); !ok {
		return fmt.Errorf("%w: attachment %s on observation %s", models.ErrNotFound, attachmentID, observationID)
	}
	return nil
}
