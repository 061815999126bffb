package model

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestBoxAround(t *testing.T) {
	box := BoxAround(0, 0, MetersPerDegree)

	if math.Abs(box.MinLat+1) > 1e-9 || math.Abs(box.MaxLat-1) > 1e-9 {
		t.Errorf("lat span = [%f, %f], want [-1, 1]", box.MinLat, box.MaxLat)
	}
	if math.Abs(box.MinLon+1) > 1e-9 || math.Abs(box.MaxLon-1) > 1e-9 {
		t.Errorf("lon span = [%f, %f], want [-1, 1]", box.MinLon, box.MaxLon)
	}
}

func TestBoxAround_LongitudeShrinkage(t *testing.T) {
	box := BoxAround(60, 10, 1000)

	latSpan := box.MaxLat - box.MinLat
	lonSpan := box.MaxLon - box.MinLon

	// cos(60°) = 0.5, so a degree of longitude is half as long.
	if math.Abs(lonSpan-2*latSpan) > 1e-9 {
		t.Errorf("lonSpan = %f, want %f", lonSpan, 2*latSpan)
	}
}

func TestBoundingBox_Pad(t *testing.T) {
	box := BoundingBox{MinLon: 10, MinLat: 59.9, MaxLon: 10.2, MaxLat: 60.1}
	padded := box.Pad(MetersPerDegree / 10)

	if math.Abs(padded.MinLat-59.8) > 1e-9 || math.Abs(padded.MaxLat-60.2) > 1e-9 {
		t.Errorf("padded lat = [%f, %f], want [59.8, 60.2]", padded.MinLat, padded.MaxLat)
	}
	// Converted at center latitude 60: 0.1 / cos(60°) = 0.2
	if math.Abs(padded.MinLon-9.8) > 1e-6 || math.Abs(padded.MaxLon-10.4) > 1e-6 {
		t.Errorf("padded lon = [%f, %f], want [9.8, 10.4]", padded.MinLon, padded.MaxLon)
	}
}

func TestBoundingBox_Validate(t *testing.T) {
	tests := []struct {
		name    string
		box     BoundingBox
		wantErr bool
	}{
		{"valid", BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 2, MaxLat: 2}, false},
		{"zero width", BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 1, MaxLat: 2}, true},
		{"inverted lat", BoundingBox{MinLon: 1, MinLat: 3, MaxLon: 2, MaxLat: 2}, true},
		{"out of range", BoundingBox{MinLon: 1, MinLat: 1, MaxLon: 200, MaxLat: 2}, true},
		{"NaN", BoundingBox{MinLon: math.NaN(), MinLat: 1, MaxLon: 2, MaxLat: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrDegenerateBox) {
					t.Errorf("Validate() = %v, want ErrDegenerateBox", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBoundingBox_String(t *testing.T) {
	box := BoundingBox{MinLon: -0.5, MinLat: 51.25, MaxLon: 0.125, MaxLat: 51.5}
	want := "-0.500000,51.250000,0.125000,51.500000"
	if got := box.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestImageRecord_AspectRatio(t *testing.T) {
	tests := []struct {
		w, h int
		want float64
	}{
		{4096, 2048, 2},
		{1000, 1000, 1},
		{100, 0, 0},
		{0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.w, tt.h), func(t *testing.T) {
			rec := ImageRecord{Width: tt.w, Height: tt.h}
			if got := rec.AspectRatio(); got != tt.want {
				t.Errorf("AspectRatio() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestFileNameFor(t *testing.T) {
	if got := FileNameFor("123"); got != "img_123.jpg" {
		t.Errorf("FileNameFor() = %q, want %q", got, "img_123.jpg")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("run: %w", NewError(KindGeocode, "resolve", errors.New("boom")))

	if !IsKind(err, KindGeocode) {
		t.Error("IsKind(KindGeocode) = false, want true")
	}
	if IsKind(err, KindMetadata) {
		t.Error("IsKind(KindMetadata) = true, want false")
	}
	if IsKind(errors.New("plain"), KindGeocode) {
		t.Error("IsKind on plain error = true, want false")
	}
}
