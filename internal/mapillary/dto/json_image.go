package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/handiism/streetgrab/internal/model"
)

// JSONPage is one page of the Graph API /images search.
type JSONPage struct {
	Data   []JSONImage `json:"data"`
	Paging JSONPaging  `json:"paging"`
}

// JSONPaging carries the cursor for the next page.
type JSONPaging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

// NextCursor returns the cursor for the following page, or "" when the
// provider signals no more pages.
func (p *JSONPage) NextCursor() string {
	return p.Paging.Cursors.After
}

// JSONImage represents an image entity from the Graph API.
type JSONImage struct {
	ID               string    `json:"id"`
	ThumbOriginalURL string    `json:"thumb_original_url"`
	IsPano           *bool     `json:"is_pano"`
	IsPanorama       *bool     `json:"is_panorama"`
	CapturedAt       Timestamp `json:"captured_at"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Sequence         string    `json:"sequence"`
}

// ToRecord converts JSONImage to a model.ImageRecord.
func (ji *JSONImage) ToRecord() model.ImageRecord {
	// Older API versions named the flag is_panorama
	isPano := false
	switch {
	case ji.IsPano != nil:
		isPano = *ji.IsPano
	case ji.IsPanorama != nil:
		isPano = *ji.IsPanorama
	}

	return model.ImageRecord{
		ID:          ji.ID,
		CapturedAt:  time.Time(ji.CapturedAt),
		IsPano:      isPano,
		Width:       ji.Width,
		Height:      ji.Height,
		DownloadURL: ji.ThumbOriginalURL,
		SequenceID:  ji.Sequence,
	}
}

// Timestamp accepts captured_at as milliseconds since the epoch (the
// Graph API's form) or as an RFC 3339 string.
type Timestamp time.Time

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			*t = Timestamp(time.UnixMilli(ms).UTC())
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("captured_at %q: %w", s, err)
		}
		*t = Timestamp(parsed.UTC())
		return nil
	}

	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("captured_at %s: %w", b, err)
	}
	*t = Timestamp(time.UnixMilli(int64(ms)).UTC())
	return nil
}
