// Package geocode turns a free-text street query into a padded bounding box.
//
// A Resolver asks a Geocoder for candidates, prefers those tagged as roads
// (OSM class "highway"), and pads the chosen candidate's box, or a box
// synthesized around its point, by a radius in meters.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/handiism/streetgrab/internal/metrics"
	"github.com/handiism/streetgrab/internal/model"
	"go.uber.org/zap"
)

// ErrNoCandidates is returned when the geocoder finds nothing for a query.
var ErrNoCandidates = errors.New("no geocoding candidates")

// Geocoder returns ranked candidates for a query.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]model.GeocodeResult, error)
}

// Diagnostic describes how a candidate was chosen.
type Diagnostic struct {
	Query    string
	Chosen   model.GeocodeResult
	Rejected []model.GeocodeResult
	BBox     model.BoundingBox
}

// Resolver selects a candidate and builds the search box.
type Resolver struct {
	geocoder Geocoder
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  *metrics.Recorder

	// OnDiagnostic, when set, receives the selection details of every
	// successful Resolve.
	OnDiagnostic func(Diagnostic)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache caches candidate lists for ttl.
func WithCache(c Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// WithMetrics records lookups on m.
func WithMetrics(m *metrics.Recorder) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver.
func NewResolver(g Geocoder, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		geocoder: g,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the padded bounding box for query. All failures are
// model.KindGeocode errors.
func (r *Resolver) Resolve(ctx context.Context, query string, radiusMeters float64) (model.BoundingBox, error) {
	op := fmt.Sprintf("resolve %q", query)
	candidates, err := r.candidates(ctx, query)
	if err != nil {
		return model.BoundingBox{}, model.NewError(model.KindGeocode, op, err)
	}
	if len(candidates) == 0 {
		return model.BoundingBox{}, model.NewError(model.KindGeocode, op, ErrNoCandidates)
	}

	ranked := Rank(candidates)
	chosen := ranked[0]

	var box model.BoundingBox
	if chosen.BBox != nil {
		box = chosen.BBox.Pad(radiusMeters)
	} else {
		box = model.BoxAround(chosen.Lat, chosen.Lon, radiusMeters)
	}
	if err := box.Validate(); err != nil {
		return model.BoundingBox{}, model.NewError(model.KindGeocode, op, err)
	}

	r.logger.Debug("geocode candidate chosen",
		zap.String("query", query),
		zap.String("display_name", chosen.DisplayName),
		zap.String("class", chosen.Class),
		zap.String("type", chosen.Type),
		zap.Int("rejected", len(ranked)-1),
		zap.Stringer("bbox", box),
	)
	if r.OnDiagnostic != nil {
		r.OnDiagnostic(Diagnostic{
			Query:    query,
			Chosen:   chosen,
			Rejected: ranked[1:],
			BBox:     box,
		})
	}

	return box, nil
}

// Rank orders candidates with highway-class results first, keeping the
// provider's rank within each group. The input is not modified.
func Rank(candidates []model.GeocodeResult) []model.GeocodeResult {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b model.GeocodeResult) int {
		if a.IsHighway() != b.IsHighway() {
			if a.IsHighway() {
				return -1
			}
			return 1
		}
		return a.Rank - b.Rank
	})
	return ranked
}

func (r *Resolver) candidates(ctx context.Context, query string) ([]model.GeocodeResult, error) {
	key := CacheKey(query)

	if r.cache != nil {
		data, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
		case data != nil:
			var cached []model.GeocodeResult
			if err := json.Unmarshal(data, &cached); err == nil && len(cached) > 0 {
				r.metrics.Geocode("cache")
				return cached, nil
			}
		}
	}

	results, err := r.geocoder.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	r.metrics.Geocode("remote")

	if r.cache != nil && len(results) > 0 {
		data, err := json.Marshal(results)
		if err == nil {
			err = r.cache.Set(ctx, key, data, r.cacheTTL)
		}
		if err != nil {
			r.logger.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return results, nil
}

// CacheKey normalizes a query into a cache key: case-folded, with runs of
// whitespace collapsed.
func CacheKey(query string) string {
	return "geocode:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}
