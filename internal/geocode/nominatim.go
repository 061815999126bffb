package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	ihttp "github.com/handiism/streetgrab/internal/http"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/handiism/streetgrab/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultLimit is the number of candidates requested per query.
const DefaultLimit = 10

// nominatimPlace mirrors one element of Nominatim's format=json response.
// Coordinates arrive as strings.
type nominatimPlace struct {
	PlaceID     int64    `json:"place_id"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"` // south, north, west, east
	Class       string   `json:"class"`
	Type        string   `json:"type"`
	DisplayName string   `json:"display_name"`
}

// Nominatim is a Geocoder backed by an OSM Nominatim instance.
//
// Requests are limited to one per second, as required by the public
// instance's usage policy, and retried on transient failures.
type Nominatim struct {
	client  *ihttp.Client
	baseURL string
	limit   int
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *zap.Logger
}

// NominatimOption configures a Nominatim client.
type NominatimOption func(*Nominatim)

// WithRateLimit overrides the one request per second default.
func WithRateLimit(l *rate.Limiter) NominatimOption {
	return func(n *Nominatim) { n.limiter = l }
}

// WithRetryPolicy overrides retry.DefaultPolicy.
func WithRetryPolicy(p retry.Policy) NominatimOption {
	return func(n *Nominatim) { n.policy = p }
}

// WithLimit sets the number of candidates requested.
func WithLimit(limit int) NominatimOption {
	return func(n *Nominatim) {
		if limit > 0 {
			n.limit = limit
		}
	}
}

// NewNominatim creates a client for the Nominatim instance at baseURL.
func NewNominatim(client *ihttp.Client, baseURL string, logger *zap.Logger, opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   DefaultLimit,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		policy:  retry.DefaultPolicy(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Search returns candidates in the provider's rank order.
func (n *Nominatim) Search(ctx context.Context, query string) ([]model.GeocodeResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(n.limit))
	endpoint := n.baseURL + "/search?" + q.Encode()

	var places []nominatimPlace
	err := retry.Do(ctx, n.policy, ihttp.Classify, func(ctx context.Context) error {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		places = nil
		return n.client.GetJSON(ctx, endpoint, nil, &places)
	}, func(s retry.State) {
		n.logger.Warn("geocoder request failed, retrying",
			zap.Int("attempt", s.Attempt),
			zap.Duration("backoff", s.Delay),
			zap.Error(s.Err),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("nominatim search %q: %w", query, err)
	}

	results := make([]model.GeocodeResult, 0, len(places))
	for i, p := range places {
		r, err := p.toResult(i)
		if err != nil {
			n.logger.Debug("skipping unparsable candidate",
				zap.Int64("place_id", p.PlaceID),
				zap.Error(err),
			)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func (p nominatimPlace) toResult(rank int) (model.GeocodeResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return model.GeocodeResult{}, fmt.Errorf("lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return model.GeocodeResult{}, fmt.Errorf("lon %q: %w", p.Lon, err)
	}

	r := model.GeocodeResult{
		Lon:         lon,
		Lat:         lat,
		Class:       p.Class,
		Type:        p.Type,
		DisplayName: p.DisplayName,
		Rank:        rank,
	}

	if len(p.BoundingBox) == 4 {
		var v [4]float64
		ok := true
		for i, s := range p.BoundingBox {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			v[i] = f
		}
		if ok {
			r.BBox = &model.BoundingBox{MinLat: v[0], MaxLat: v[1], MinLon: v[2], MaxLon: v[3]}
		}
	}
	return r, nil
}
