package model

import (
	"fmt"
	"time"
)

// Attribution is the credit line written next to every downloaded image.
const Attribution = "Mapillary © contributors (CC-BY-SA 4.0)"

// ImageRecord is one image as reported by the imagery provider.
//
// Records are values: nothing in the pipeline mutates a record after the
// metadata client has built it. ID is the identity key used for
// deduplication and for the output file name.
type ImageRecord struct {
	// ID is the provider's unique, immutable image identifier.
	ID string

	// CapturedAt is when the image was taken. Zero if the provider omitted it.
	CapturedAt time.Time

	// IsPano is the provider's own panorama flag. It is advisory only.
	IsPano bool

	// Width and Height are the original pixel dimensions reported by the provider.
	Width  int
	Height int

	// DownloadURL points at the original-resolution image bytes.
	// Empty means the image cannot be downloaded.
	DownloadURL string

	// SequenceID groups images captured in the same session, if known.
	SequenceID string
}

// FileName returns the name the image is saved under.
func (r ImageRecord) FileName() string {
	return FileNameFor(r.ID)
}

// AspectRatio returns width/height, or 0 when the height is unknown.
func (r ImageRecord) AspectRatio() float64 {
	if r.Height <= 0 || r.Width <= 0 {
		return 0
	}
	return float64(r.Width) / float64(r.Height)
}

// FileNameFor returns "img_<id>.jpg".
func FileNameFor(id string) string {
	return fmt.Sprintf("img_%s.jpg", id)
}

// DownloadStatus is the terminal state of one download.
type DownloadStatus int

const (
	// StatusSuccess means the file is on disk and complete.
	StatusSuccess DownloadStatus = iota

	// StatusFailed means the item was given up on; Reason says why.
	StatusFailed
)

// String returns "success" or "failed".
func (s DownloadStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

// DownloadResult is the outcome of downloading one ImageRecord.
type DownloadResult struct {
	ImageID     string
	Filename    string
	CapturedAt  time.Time
	IsPano      bool
	Width       int
	Height      int
	Attribution string
	Status      DownloadStatus
	Reason      string
}

// Succeeded builds the Success result for a record saved as filename.
func Succeeded(rec ImageRecord, filename string) DownloadResult {
	return DownloadResult{
		ImageID:     rec.ID,
		Filename:    filename,
		CapturedAt:  rec.CapturedAt,
		IsPano:      rec.IsPano,
		Width:       rec.Width,
		Height:      rec.Height,
		Attribution: Attribution,
		Status:      StatusSuccess,
	}
}

// Failed builds the Failed result for a record.
func Failed(rec ImageRecord, reason string) DownloadResult {
	return DownloadResult{
		ImageID:    rec.ID,
		CapturedAt: rec.CapturedAt,
		IsPano:     rec.IsPano,
		Width:      rec.Width,
		Height:     rec.Height,
		Status:     StatusFailed,
		Reason:     reason,
	}
}
