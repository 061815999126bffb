package ioutils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration

	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// ErrNotImage is returned when downloaded bytes are not a decodable image.
var ErrNotImage = errors.New("not a decodable image")

// ImageInfo describes an image header.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// AspectRatio returns Width/Height, or 0 for an empty image.
func (i ImageInfo) AspectRatio() float64 {
	if i.Height <= 0 {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// ImageService inspects downloaded images.
//
// ImageService is used by the download scheduler's pixel check to confirm
// the real dimensions of a file before it is written, independently of what
// the provider's metadata claims. Only the header is decoded, so large
// panoramas cost a few kilobytes of parsing, not a full decode.
//
// Example usage:
//
//	svc := NewImageService()
//	info, err := svc.Inspect(body)
//	if err == nil && info.AspectRatio() < 1.9 {
//	    // not an equirectangular panorama
//	}
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// Inspect decodes the image header in data.
//
// JPEG, PNG, WebP and TIFF are recognized.
func (s *ImageService) Inspect(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
