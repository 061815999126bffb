package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/handiism/streetgrab/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func success(id string) model.DownloadResult {
	rec := model.ImageRecord{
		ID:         id,
		CapturedAt: time.Date(2023, 7, 14, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
		IsPano:     true,
		Width:      4096,
		Height:     2048,
	}
	return model.Succeeded(rec, rec.FileName())
}

func TestWriter_AppendAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(success("42")))

	rows, err := w.Close()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := readCSV(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, Header, got[0])
	assert.Equal(t, []string{
		"42", "img_42.jpg", "2023-07-14T07:30:00Z", "true", "4096", "2048", model.Attribution,
	}, got[1])
}

func TestWriter_RowsVisibleBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(success("1")))
	require.NoError(t, w.Append(success("2")))

	assert.Len(t, readCSV(t, path), 3, "rows are flushed as they are appended")
}

func TestWriter_RejectsFailedResults(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(model.Failed(model.ImageRecord{ID: "x"}, "HTTP 404"))
	assert.ErrorIs(t, err, ErrNotSuccess)
}

func TestWriter_AppendAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)

	_, err = w.Close()
	require.NoError(t, err)
	_, err = w.Close()
	require.NoError(t, err, "Close is idempotent")

	assert.ErrorIs(t, w.Append(success("1")), ErrClosed)
}

func TestWriter_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w, err := Open(path)
	require.NoError(t, err)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, w.Append(success(fmt.Sprintf("%d-%d", i, j))))
			}
		}(i)
	}
	wg.Wait()

	rows, err := w.Close()
	require.NoError(t, err)
	assert.Len(t, rows, workers*perWorker)

	got := readCSV(t, path)
	require.Len(t, got, workers*perWorker+1)

	seen := make(map[string]bool)
	for _, row := range got[1:] {
		require.Len(t, row, len(Header))
		assert.False(t, seen[row[0]], "duplicate row %s", row[0])
		seen[row[0]] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestRow_UnknownCaptureTime(t *testing.T) {
	r := model.Succeeded(model.ImageRecord{ID: "7", Width: 2, Height: 1}, "img_7.jpg")
	assert.Equal(t, "", Row(r)[2])
	assert.Equal(t, "false", Row(r)[3])
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", FileName))
	assert.Error(t, err)
}
