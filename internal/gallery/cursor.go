// Package gallery provides resumable, sequence-safe pagination over the
// media catalog. Paging runs in two phases: timestamped records scanned in
// (timestamp, ID) order and grouped into sequences, then untimed records in a
// flat offset scan, presented as singleton sequences for uniform display.
package gallery

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCursor marks a token that does not decode to one of the two
// cursor shapes.
var ErrInvalidCursor = errors.New("invalid cursor")

// Phase identifies which scan a cursor resumes.
type Phase string

const (
	PhaseTimestamped Phase = "timestamped"
	PhaseUntimed     Phase = "untimed"
)

// Cursor is an opaque, round-trippable paging position. A timestamped cursor
// carries the (timestamp, media ID) pair of the last item returned and
// resumes strictly after it, so tied timestamps can neither duplicate nor
// drop records. An untimed cursor carries the count already returned.
type Cursor struct {
	Phase   Phase      `json:"phase"`
	Time    *time.Time `json:"t,omitempty"`
	MediaID string     `json:"m,omitempty"`
	Offset  int        `json:"offset,omitempty"`
}

// Encode serializes the cursor into an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by Encode and validates its shape.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	switch c.Phase {
	case PhaseTimestamped:
		if c.Time == nil || c.MediaID == "" {
			return Cursor{}, fmt.Errorf("%w: timestamped cursor missing position", ErrInvalidCursor)
		}
	case PhaseUntimed:
		if c.Offset < 0 {
			return Cursor{}, fmt.Errorf("%w: negative offset", ErrInvalidCursor)
		}
	default:
		return Cursor{}, fmt.Errorf("%w: unknown phase %q", ErrInvalidCursor, c.Phase)
	}
	return c, nil
}
