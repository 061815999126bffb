package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	ihttp "github.com/handiism/streetgrab/internal/http"
	ioutils "github.com/handiism/streetgrab/internal/io"
	"github.com/handiism/streetgrab/internal/ledger"
	"github.com/handiism/streetgrab/internal/metrics"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/handiism/streetgrab/internal/pano"
	"github.com/handiism/streetgrab/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// ErrEmptyBody is returned when a 2xx response carries no bytes.
var ErrEmptyBody = errors.New("empty response body")

// ErrNoURL is returned for records without a download URL.
var ErrNoURL = errors.New("record has no download url")

// Options configures a Scheduler.
type Options struct {
	// OutDir receives the images and the ledger. Created if absent.
	OutDir string

	// Workers is the number of concurrent downloads (at least 1).
	Workers int

	// Policy bounds per-item retries.
	Policy retry.Policy

	// VerifyPixels decodes each downloaded image header and drops images
	// whose real dimensions are not 2:1.
	VerifyPixels bool
}

// Report summarizes a finished (or cancelled) run.
type Report struct {
	// Ledger holds the rows written to the attribution file, in completion order.
	Ledger []model.DownloadResult

	// Failures holds one Failed result per permanently failed item.
	Failures []model.DownloadResult

	// Skipped holds items dropped by the pixel check.
	Skipped []model.DownloadResult

	Succeeded int
	Failed    int
	Cancelled int
	Retries   int
}

// Attempted returns the number of items that reached a verdict.
func (r *Report) Attempted() int {
	return r.Succeeded + r.Failed + len(r.Skipped)
}

// Scheduler downloads images with a bounded worker pool.
type Scheduler struct {
	http    *ihttp.Client
	opts    Options
	images  *ioutils.ImageService
	logger  *zap.Logger
	metrics *metrics.Recorder

	total   int32
	done    int32
	retries int32

	onProgress func(ProgressEvent)
}

// Option configures optional Scheduler collaborators.
type Option func(*Scheduler)

// WithMetrics records per-item results on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a Scheduler. The HTTP client is shared with the
// rest of the run and is not closed by the scheduler.
func NewScheduler(client *ihttp.Client, opts Options, logger *zap.Logger, onProgress func(ProgressEvent), extra ...Option) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy = retry.DefaultPolicy()
	}

	s := &Scheduler{
		http:       client,
		opts:       opts,
		images:     ioutils.NewImageService(),
		logger:     logger,
		onProgress: onProgress,
	}
	for _, opt := range extra {
		opt(s)
	}
	return s
}

type itemStatus int

const (
	itemSucceeded itemStatus = iota
	itemFailed
	itemSkipped
	itemCancelled
)

type itemOutcome struct {
	status itemStatus
	result model.DownloadResult
}

// Run downloads every record and writes the attribution ledger.
//
// Per-item failures never abort the run; they are counted in the Report.
// If ctx is cancelled, no new downloads start, unstarted items are counted
// as cancelled and Run returns the partial report together with ctx.Err().
// Rows already in the ledger stay valid.
func (s *Scheduler) Run(ctx context.Context, records []model.ImageRecord) (*Report, error) {
	if err := ioutils.EnsureDir(s.opts.OutDir); err != nil {
		return nil, model.NewError(model.KindDownload, "create output directory", err)
	}

	lw, err := ledger.Open(filepath.Join(s.opts.OutDir, ledger.FileName))
	if err != nil {
		return nil, model.NewError(model.KindDownload, "open ledger", err)
	}

	atomic.StoreInt32(&s.total, int32(len(records)))
	atomic.StoreInt32(&s.done, 0)
	atomic.StoreInt32(&s.retries, 0)

	queue := make(chan model.ImageRecord, len(records))
	for _, rec := range records {
		queue <- rec
	}
	close(queue)

	outcomes := make(chan itemOutcome, len(records))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i := 0; i < s.opts.Workers; i++ {
		g.Go(func() error {
			for rec := range queue {
				if ctx.Err() != nil {
					return nil
				}
				outcomes <- s.process(ctx, rec, lw)
				atomic.AddInt32(&s.done, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	rows, closeErr := lw.Close()

	report := &Report{
		Ledger:  rows,
		Retries: int(atomic.LoadInt32(&s.retries)),
	}
	for out := range outcomes {
		switch out.status {
		case itemSucceeded:
			report.Succeeded++
		case itemFailed:
			report.Failed++
			report.Failures = append(report.Failures, out.result)
		case itemSkipped:
			report.Skipped = append(report.Skipped, out.result)
		}
	}
	report.Cancelled = len(records) - report.Attempted()

	if closeErr != nil {
		return report, model.NewError(model.KindDownload, "close ledger", closeErr)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Progress returns the number of finished items and the total.
func (s *Scheduler) Progress() (done, total int) {
	return int(atomic.LoadInt32(&s.done)), int(atomic.LoadInt32(&s.total))
}

func (s *Scheduler) process(ctx context.Context, rec model.ImageRecord, lw *ledger.Writer) itemOutcome {
	start := time.Now()
	filename := ioutils.SanitizeFileName(rec.FileName())
	log := s.logger.With(zap.String("image_id", rec.ID))

	body, st := s.fetchWithRetry(ctx, rec, log)
	if ctx.Err() != nil && !st.Done() {
		return itemOutcome{status: itemCancelled}
	}
	if st.Phase == retry.FailedPermanent {
		return s.fail(rec, st.Err, start, log)
	}

	if s.opts.VerifyPixels {
		info, err := s.images.Inspect(body)
		if err != nil {
			return s.fail(rec, err, start, log)
		}
		if d := pano.CheckPixels(info.Width, info.Height); !d.Keep {
			s.metrics.Download("skipped", 0, time.Since(start))
			s.progress(ProgressEvent{Message: fmt.Sprintf("Skipped %s: %s", rec.ID, d.Reason), Level: LevelVerbose})
			log.Debug("pixel check rejected image", zap.String("reason", d.Reason))
			return itemOutcome{status: itemSkipped, result: model.Failed(rec, d.Reason)}
		}
	}

	if err := ioutils.WriteFileAtomic(filepath.Join(s.opts.OutDir, filename), body); err != nil {
		return s.fail(rec, fmt.Errorf("write %s: %w", filename, err), start, log)
	}

	result := model.Succeeded(rec, filename)
	if err := lw.Append(result); err != nil {
		return s.fail(rec, fmt.Errorf("record %s: %w", filename, err), start, log)
	}

	s.metrics.Download("success", len(body), time.Since(start))
	s.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filename), Level: LevelVerbose})
	log.Debug("image saved", zap.String("file", filename), zap.Int("bytes", len(body)))
	return itemOutcome{status: itemSucceeded, result: result}
}

// fetchWithRetry drives the retry state machine for one item. The returned
// state is terminal unless ctx was cancelled.
func (s *Scheduler) fetchWithRetry(ctx context.Context, rec model.ImageRecord, log *zap.Logger) ([]byte, retry.State) {
	p := s.opts.Policy
	st := retry.Next(retry.State{}, retry.Outcome{Kind: retry.Start}, p)

	var body []byte
	for !st.Done() {
		switch st.Phase {
		case retry.Attempting:
			var err error
			body, err = s.fetch(ctx, rec)
			if ctx.Err() != nil {
				return nil, st
			}
			o := classify(err)
			o.Err = err
			st = retry.Next(st, o, p)

		case retry.Backoff:
			atomic.AddInt32(&s.retries, 1)
			s.metrics.Retry()
			s.progress(ProgressEvent{
				Message: fmt.Sprintf("Retry %d/%d for %s in %s: %v", st.Attempt, p.MaxAttempts, rec.ID, st.Delay, st.Err),
				Level:   LevelWarning,
			})
			log.Debug("download failed, backing off",
				zap.Int("attempt", st.Attempt),
				zap.Duration("delay", st.Delay),
				zap.Error(st.Err),
			)
			if err := retry.Sleep(ctx, st, p); err != nil {
				return nil, st
			}
			st = retry.Next(st, retry.Outcome{Kind: retry.Waited}, p)

		default:
			return nil, st
		}
	}
	return body, st
}

func (s *Scheduler) fetch(ctx context.Context, rec model.ImageRecord) ([]byte, error) {
	if rec.DownloadURL == "" {
		return nil, ErrNoURL
	}
	body, err := s.http.Get(ctx, rec.DownloadURL, nil)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	return body, nil
}

func classify(err error) retry.Outcome {
	if errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrNoURL) {
		return retry.Outcome{Kind: retry.Permanent}
	}
	return ihttp.Classify(err)
}

func (s *Scheduler) fail(rec model.ImageRecord, err error, start time.Time, log *zap.Logger) itemOutcome {
	s.metrics.Download("failed", 0, time.Since(start))
	s.progress(ProgressEvent{Message: fmt.Sprintf("Failed %s: %v", rec.ID, err), Level: LevelError})
	log.Warn("download failed", zap.Error(err))
	return itemOutcome{status: itemFailed, result: model.Failed(rec, err.Error())}
}

func (s *Scheduler) progress(event ProgressEvent) {
	if s.onProgress != nil {
		s.onProgress(event)
	}
}
