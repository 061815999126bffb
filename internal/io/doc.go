// Package ioutils provides file system and image inspection utilities.
//
// This package contains functions for:
//   - Atomic file writing (temp file + fsync + rename)
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Image header inspection
//
// # File Operations
//
//	// Ensure the output directory exists
//	err := ioutils.EnsureDir("/path/to/panos")
//
//	// Write a downloaded image so that a crash never leaves a half file
//	err := ioutils.WriteFileAtomic("/path/to/panos/img_123.jpg", body)
//
// # Filename Sanitization
//
//	safe := ioutils.SanitizeFileName("img_a:b.jpg") // Returns "img_a_b.jpg"
//
// # Image Inspection
//
//	svc := ioutils.NewImageService()
//	info, err := svc.Inspect(body)
//	fmt.Println(info.Format, info.Width, info.Height)
package ioutils
