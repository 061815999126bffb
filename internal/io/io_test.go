package ioutils

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img_1.jpg")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files should remain")
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "img_1.jpg")
	assert.Error(t, WriteFileAtomic(path, []byte("x")))
	assert.NoFileExists(t, path)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"img_123.jpg", "img_123.jpg"},
		{"img_a:b.jpg", "img_a_b.jpg"},
		{"img_../x.jpg", "img_.._x.jpg"},
		{"img_a\\b.jpg", "img_a_b.jpg"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir), "EnsureDir must be idempotent")
	assert.DirExists(t, dir)
}

func TestImageService_Inspect(t *testing.T) {
	svc := NewImageService()

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 32)), nil))

		info, err := svc.Inspect(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, ImageInfo{Format: "jpeg", Width: 64, Height: 32}, info)
		assert.Equal(t, 2.0, info.AspectRatio())
	})

	t.Run("png", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))

		info, err := svc.Inspect(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "png", info.Format)
		assert.Equal(t, 1.0, info.AspectRatio())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Inspect([]byte("not an image"))
		assert.ErrorIs(t, err, ErrNotImage)
	})
}
