// Package mapillary fetches image metadata from the Mapillary Graph API.
//
// Client.Fetch pages through the /images search for a bounding box and
// returns the records deduplicated by image ID. Authentication failures and
// a failing first page are fatal; a later page that exhausts its retries
// ends pagination and is reported in FetchResult.PageErrors.
package mapillary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	ihttp "github.com/handiism/streetgrab/internal/http"
	"github.com/handiism/streetgrab/internal/mapillary/dto"
	"github.com/handiism/streetgrab/internal/metrics"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/handiism/streetgrab/internal/retry"
	"go.uber.org/zap"
)

// Fields requested for every image.
const Fields = "id,thumb_original_url,is_pano,captured_at,width,height,sequence"

const (
	DefaultPageSize  = 500
	DefaultMaxImages = 10000
)

// ErrUnauthorized is returned when the provider rejects the access token.
var ErrUnauthorized = errors.New("mapillary rejected the access token")

// FetchResult is the outcome of one bounding-box search.
type FetchResult struct {
	// Records are unique by ID, in the order first seen.
	Records []model.ImageRecord

	// Pages is the number of pages fetched successfully.
	Pages int

	// Duplicates counts records dropped because their ID was already seen.
	Duplicates int

	// Truncated is set when the record cap stopped pagination early.
	Truncated bool

	// PageErrors holds failures of pages after the first.
	PageErrors []error
}

// Client talks to the Graph API.
type Client struct {
	http      *ihttp.Client
	baseURL   string
	token     string
	pageSize  int
	maxImages int
	policy    retry.Policy
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the limit parameter sent with every page request.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithMaxImages caps the number of unique records collected.
func WithMaxImages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxImages = n
		}
	}
}

// WithRetryPolicy sets the per-page retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithMetrics records page fetches on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Graph API client.
func NewClient(httpClient *ihttp.Client, baseURL, token string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		pageSize:  DefaultPageSize,
		maxImages: DefaultMaxImages,
		policy:    retry.DefaultPolicy(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns every image record intersecting bbox.
//
// Pagination stops when the provider returns no cursor, an empty page or a
// cursor it already returned, or when the record cap is reached.
// Fatal failures are model.KindMetadata errors.
func (c *Client) Fetch(ctx context.Context, bbox model.BoundingBox) (*FetchResult, error) {
	res := &FetchResult{}
	seen := make(map[string]struct{})
	cursors := make(map[string]struct{})
	cursor := ""

	for page := 1; ; page++ {
		p, err := c.fetchPage(ctx, bbox, cursor)
		if err != nil {
			c.metrics.Page("error", 0)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if page == 1 || errors.Is(err, ErrUnauthorized) {
				return nil, model.NewError(model.KindMetadata, fmt.Sprintf("fetch page %d", page), err)
			}
			c.logger.Warn("metadata page failed, keeping records fetched so far",
				zap.Int("page", page),
				zap.Int("records", len(res.Records)),
				zap.Error(err),
			)
			res.PageErrors = append(res.PageErrors, fmt.Errorf("page %d: %w", page, err))
			break
		}

		res.Pages++
		added := 0
		for i := range p.Data {
			rec := p.Data[i].ToRecord()
			if rec.ID == "" {
				continue
			}
			if _, dup := seen[rec.ID]; dup {
				res.Duplicates++
				continue
			}
			if len(res.Records) >= c.maxImages {
				res.Truncated = true
				break
			}
			seen[rec.ID] = struct{}{}
			res.Records = append(res.Records, rec)
			added++
		}
		c.metrics.Page("ok", added)

		c.logger.Debug("metadata page fetched",
			zap.Int("page", page),
			zap.Int("records", len(p.Data)),
			zap.Int("added", added),
		)

		if res.Truncated || len(p.Data) == 0 {
			break
		}

		next := p.NextCursor()
		if next == "" {
			break
		}
		if _, again := cursors[next]; again {
			c.logger.Debug("metadata cursor repeated, stopping", zap.String("cursor", next))
			break
		}
		cursors[next] = struct{}{}
		cursor = next

		if len(res.Records) >= c.maxImages {
			res.Truncated = true
			break
		}
	}

	return res, nil
}

func (c *Client) fetchPage(ctx context.Context, bbox model.BoundingBox, cursor string) (*dto.JSONPage, error) {
	q := url.Values{}
	q.Set("bbox", bbox.String())
	q.Set("fields", Fields)
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("after", cursor)
	}
	endpoint := c.baseURL + "/images?" + q.Encode()
	header := http.Header{"Authorization": {"OAuth " + c.token}}

	var page dto.JSONPage
	err := retry.Do(ctx, c.policy, ihttp.Classify, func(ctx context.Context) error {
		page = dto.JSONPage{}
		return c.http.GetJSON(ctx, endpoint, header, &page)
	}, func(s retry.State) {
		c.logger.Warn("metadata request failed, retrying",
			zap.Int("attempt", s.Attempt),
			zap.Duration("backoff", s.Delay),
			zap.Error(s.Err),
		)
	})
	if err != nil {
		if code := ihttp.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, err
	}
	return &page, nil
}
