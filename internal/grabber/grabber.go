// Package grabber wires the pipeline together: resolve the street, fetch
// image metadata, filter panoramas and download the survivors.
package grabber

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/handiism/streetgrab/internal/download"
	"github.com/handiism/streetgrab/internal/ledger"
	"github.com/handiism/streetgrab/internal/mapillary"
	"github.com/handiism/streetgrab/internal/metrics"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/handiism/streetgrab/internal/pano"
	"go.uber.org/zap"
)

// Resolver turns a query into a search box.
type Resolver interface {
	Resolve(ctx context.Context, query string, radiusMeters float64) (model.BoundingBox, error)
}

// Fetcher returns the image records inside a box.
type Fetcher interface {
	Fetch(ctx context.Context, bbox model.BoundingBox) (*mapillary.FetchResult, error)
}

// Downloader saves records and writes the ledger.
type Downloader interface {
	Run(ctx context.Context, records []model.ImageRecord) (*download.Report, error)
	Progress() (done, total int)
}

// Options are the per-run switches.
type Options struct {
	Radius      float64
	PanoOnly    bool
	Strict      bool
	Debug       bool
	OutDir      string
	MetricsFile string
}

// Summary is the outcome of one run.
type Summary struct {
	RunID string
	Query string
	BBox  model.BoundingBox

	Found      int
	Duplicates int
	Truncated  bool
	PageErrors int

	NoURL   int
	Kept    int
	Dropped int

	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int

	Failures   []model.DownloadResult
	LedgerPath string
	Duration   time.Duration
}

// Grabber runs the pipeline.
type Grabber struct {
	resolver   Resolver
	fetcher    Fetcher
	downloader Downloader
	classifier pano.Classifier
	opts       Options
	logger     *zap.Logger
	metrics    *metrics.Recorder
	onProgress func(download.ProgressEvent)
}

// New creates a Grabber from its collaborators.
func New(r Resolver, f Fetcher, d Downloader, opts Options, logger *zap.Logger, m *metrics.Recorder, onProgress func(download.ProgressEvent)) *Grabber {
	return &Grabber{
		resolver:   r,
		fetcher:    f,
		downloader: d,
		classifier: pano.Classifier{Strict: opts.Strict},
		opts:       opts,
		logger:     logger,
		metrics:    m,
		onProgress: onProgress,
	}
}

// Progress reports download progress; both values are zero before the
// download phase starts.
func (g *Grabber) Progress() (done, total int) {
	return g.downloader.Progress()
}

// Run executes one grab for query.
//
// Geocoding and first-page metadata failures are returned before any
// download starts. An empty area, or no records passing the filter, is a
// successful run. If every attempted download fails, Run returns a
// model.KindDownload error alongside the summary.
func (g *Grabber) Run(ctx context.Context, query string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{
		RunID:      uuid.NewString(),
		Query:      query,
		LedgerPath: filepath.Join(g.opts.OutDir, ledger.FileName),
	}
	log := g.logger.With(zap.String("run_id", sum.RunID))
	defer func() {
		sum.Duration = time.Since(start)
		g.metrics.Run(sum.Duration)
		if err := g.metrics.WriteTextfile(g.opts.MetricsFile); err != nil {
			log.Warn("failed to write metrics file", zap.String("path", g.opts.MetricsFile), zap.Error(err))
		}
	}()

	log.Info("run started", zap.String("query", query), zap.Float64("radius", g.opts.Radius))

	g.progress(download.LevelInfo, "Geocoding: %s", query)
	bbox, err := g.resolver.Resolve(ctx, query, g.opts.Radius)
	if err != nil {
		log.Error("geocoding failed", zap.Error(err))
		return sum, err
	}
	sum.BBox = bbox
	g.progress(download.LevelInfo, "Search bbox: %s", bbox)

	g.progress(download.LevelInfo, "Fetching metadata...")
	res, err := g.fetcher.Fetch(ctx, bbox)
	if err != nil {
		log.Error("metadata fetch failed", zap.Error(err))
		return sum, err
	}
	sum.Found = len(res.Records)
	sum.Duplicates = res.Duplicates
	sum.Truncated = res.Truncated
	sum.PageErrors = len(res.PageErrors)

	g.progress(download.LevelInfo, "%d total image(s) found.", sum.Found)
	if res.Truncated {
		g.progress(download.LevelWarning, "Stopping early at %d images. Narrow the search area.", sum.Found)
	}
	for _, pe := range res.PageErrors {
		g.progress(download.LevelWarning, "Metadata incomplete: %v", pe)
	}
	if sum.Found == 0 {
		g.progress(download.LevelInfo, "No images in area.")
		return sum, nil
	}

	kept := g.filter(res.Records, sum)
	if g.opts.Debug {
		g.progress(download.LevelInfo, "Kept %d, dropped %d", sum.Kept, sum.Dropped+sum.NoURL)
	}
	if len(kept) == 0 {
		g.progress(download.LevelInfo, "No images match criteria.")
		return sum, nil
	}

	report, err := g.downloader.Run(ctx, kept)
	if report != nil {
		sum.Succeeded = report.Succeeded
		sum.Failed = report.Failed
		sum.Skipped = len(report.Skipped)
		sum.Cancelled = report.Cancelled
		sum.Failures = report.Failures
	}
	if err != nil {
		log.Warn("download phase ended early", zap.Error(err))
		return sum, err
	}

	log.Info("run finished",
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)

	switch {
	case sum.Succeeded == 0 && sum.Failed > 0:
		return sum, model.NewError(model.KindDownload, "download",
			fmt.Errorf("all %d attempted download(s) failed", sum.Failed))
	case sum.Succeeded == 0:
		g.progress(download.LevelInfo, "No images match criteria.")
	default:
		g.progress(download.LevelSuccess, "Finished. %d file(s) in %s.", sum.Succeeded, g.opts.OutDir)
	}
	return sum, nil
}

func (g *Grabber) filter(records []model.ImageRecord, sum *Summary) []model.ImageRecord {
	kept := make([]model.ImageRecord, 0, len(records))
	for _, rec := range records {
		if rec.DownloadURL == "" {
			sum.NoURL++
			if g.opts.Debug {
				g.progress(download.LevelVerbose, "Drop %s: no download url", rec.ID)
			}
			continue
		}
		if g.opts.PanoOnly {
			d := g.classifier.Classify(rec)
			if !d.Keep {
				sum.Dropped++
				g.metrics.Filter("dropped")
				if g.opts.Debug {
					g.progress(download.LevelVerbose, "Drop %s: %s", rec.ID, d.Reason)
				}
				continue
			}
			g.metrics.Filter("kept")
		}
		kept = append(kept, rec)
	}
	sum.Kept = len(kept)
	return kept
}

func (g *Grabber) progress(level download.ProgressLevel, format string, args ...any) {
	if g.onProgress != nil {
		g.onProgress(download.ProgressEvent{Message: fmt.Sprintf(format, args...), Level: level})
	}
}
