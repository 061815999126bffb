// Package model defines the core data structures used throughout streetgrab.
//
// # Geometry
//
// BoundingBox is a WGS-84 rectangle. Boxes are built around a point or padded
// by a radius in meters:
//
//	box := model.BoxAround(lat, lon, 25)
//	wider := box.Pad(25)
//	if err := wider.Validate(); err != nil {
//	    // degenerate or out of range
//	}
//
// # Images
//
// ImageRecord is one provider image, keyed by ID. DownloadResult is the
// outcome of fetching it:
//
//	res := model.Succeeded(rec, rec.FileName()) // "img_<id>.jpg"
//
// # Errors
//
// Error carries an ErrorKind (config, geocode, metadata, download) so callers
// can map failures to exit codes with IsKind.
package model
