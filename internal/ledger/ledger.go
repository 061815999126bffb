// Package ledger writes the attribution CSV for downloaded images.
//
// A Writer owns the output file from a single goroutine. Workers hand it
// results through Append, which is safe for concurrent use; each row is
// flushed as soon as it is written so an interrupted run still leaves a
// well-formed partial ledger.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/handiism/streetgrab/internal/model"
)

// FileName is the ledger's name inside the output directory.
const FileName = "attribution.csv"

// Header is the fixed column order.
var Header = []string{"image_id", "filename", "captured_at", "is_pano", "width", "height", "attribution"}

var (
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("ledger closed")

	// ErrNotSuccess is returned when a failed result is appended.
	ErrNotSuccess = errors.New("only successful downloads are recorded")
)

type appendReq struct {
	result model.DownloadResult
	done   chan error
}

// Writer is the single owner of the ledger file.
type Writer struct {
	reqs chan appendReq
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	// set by the owner goroutine, read after done is closed
	rows []model.DownloadResult
	err  error

	file *os.File
}

// Open creates (or truncates) the ledger at path and writes the header.
func Open(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write ledger header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write ledger header: %w", err)
	}

	w := &Writer{
		reqs: make(chan appendReq),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		file: f,
	}
	go w.run(cw)
	return w, nil
}

func (w *Writer) run(cw *csv.Writer) {
	defer close(w.done)

	for {
		select {
		case req := <-w.reqs:
			err := cw.Write(Row(req.result))
			if err == nil {
				cw.Flush()
				err = cw.Error()
			}
			if err == nil {
				w.rows = append(w.rows, req.result)
			} else if w.err == nil {
				w.err = err
			}
			req.done <- err

		case <-w.quit:
			cw.Flush()
			if err := cw.Error(); err != nil && w.err == nil {
				w.err = err
			}
			if err := w.file.Sync(); err != nil && w.err == nil {
				w.err = err
			}
			if err := w.file.Close(); err != nil && w.err == nil {
				w.err = err
			}
			return
		}
	}
}

// Append records one successful download. It returns once the row has been
// written and flushed.
func (w *Writer) Append(r model.DownloadResult) error {
	if r.Status != model.StatusSuccess {
		return ErrNotSuccess
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	req := appendReq{result: r, done: make(chan error, 1)}
	w.reqs <- req
	return <-req.done
}

// Close stops the owner goroutine, syncs the file and returns the rows
// written, in the order they were appended. Close is idempotent.
func (w *Writer) Close() ([]model.DownloadResult, error) {
	w.closeOnce.Do(func() {
		// Wait for in-flight appends to drain before stopping the owner.
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.quit)
	})
	<-w.done
	return w.rows, w.err
}

// Row renders a result in Header order.
func Row(r model.DownloadResult) []string {
	captured := ""
	if !r.CapturedAt.IsZero() {
		captured = r.CapturedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.ImageID,
		r.Filename,
		captured,
		strconv.FormatBool(r.IsPano),
		strconv.Itoa(r.Width),
		strconv.Itoa(r.Height),
		r.Attribution,
	}
}
