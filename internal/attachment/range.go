// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

package attachment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// RangeError reports an unsatisfiable byte range along with the content
// size, so the transport layer can answer with Content-Range: bytes */size.
type RangeError struct {
	Size int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("requested range not satisfiable: size is %d bytes", e.Size)
}

func (e *RangeError) Unwrap() error {
	return models.ErrRangeNotSatisfiable
}

// ByteRange is a validated inclusive byte range within a blob of known size.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ParseRange interprets a "bytes=start-end" header against the content size.
// An omitted end means through the last byte; an end past the content is
// clamped. A start at or beyond the content size fails with
// models.ErrRangeNotSatisfiable. Malformed headers and units other than
// bytes are ignored (ok=false), which serves the full content.
func ParseRange(header string, size int64) (r ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, nil
	}
	// Multiple ranges degrade to full content.
	if strings.Contains(spec, ",") {
		return ByteRange{}, false, nil
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found || startStr == "" {
		return ByteRange{}, false, nil
	}

	start, perr := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if perr != nil || start < 0 {
		return ByteRange{}, false, nil
	}
	if start >= size {
		return ByteRange{}, false, models.ErrRangeNotSatisfiable
	}

	end := size - 1
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		end, perr = strconv.ParseInt(endStr, 10, 64)
		if perr != nil || end < start {
			return ByteRange{}, false, nil
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return ByteRange{Start: start, End: end}, true, nil
}
