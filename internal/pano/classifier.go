// Package pano decides whether an image record is an equirectangular
// panorama.
//
// Classification is pure metadata evaluation with no network access, so it
// runs inline while filtering, before any download is scheduled.
package pano

import (
	"fmt"

	"github.com/handiism/streetgrab/internal/model"
)

const (
	// MinAspect and MaxAspect bound the width/height ratio accepted as 2:1.
	MinAspect = 1.9
	MaxAspect = 2.1
)

// Decision is the keep/drop verdict for one record. Reason is empty when the
// record is kept.
type Decision struct {
	Keep   bool
	Reason string
}

// Classifier applies the aspect-ratio test and, when Strict is set, also
// requires the provider's is_pano flag.
type Classifier struct {
	Strict bool
}

// Classify returns the decision for rec.
func (c Classifier) Classify(rec model.ImageRecord) Decision {
	if d := CheckAspect(rec.AspectRatio()); !d.Keep {
		return d
	}
	if c.Strict && !rec.IsPano {
		return Decision{Reason: "provider is_pano=false"}
	}
	return Decision{Keep: true}
}

// CheckPixels applies the aspect-ratio test to real pixel dimensions, e.g.
// those decoded from a downloaded image header.
func CheckPixels(width, height int) Decision {
	if width <= 0 || height <= 0 {
		return Decision{Reason: fmt.Sprintf("invalid dimensions %dx%d", width, height)}
	}
	return CheckAspect(float64(width) / float64(height))
}

// CheckAspect reports whether aspect is within [MinAspect, MaxAspect].
func CheckAspect(aspect float64) Decision {
	switch {
	case aspect <= 0:
		return Decision{Reason: "unknown dimensions"}
	case aspect < MinAspect || aspect > MaxAspect:
		return Decision{Reason: fmt.Sprintf("aspect %.3f outside %.1f..%.1f", aspect, MinAspect, MaxAspect)}
	}
	return Decision{Keep: true}
}
