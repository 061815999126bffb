package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/handiism/streetgrab/internal/config"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"config", model.NewError(model.KindConfig, "load", errors.New("x")), exitUsage},
		{"geocode", model.NewError(model.KindGeocode, "resolve", errors.New("x")), exitGeocode},
		{"metadata", model.NewError(model.KindMetadata, "fetch", errors.New("x")), exitMetadata},
		{"download", model.NewError(model.KindDownload, "run", errors.New("x")), exitDownload},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), exitInterrupted},
		{"unknown", errors.New("boom"), exitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), version)
}

func TestRun_NoQueryPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), nil, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "Usage:")
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--nope", "Main St"}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
}

func TestRun_MissingToken(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	t.Setenv(config.EnvPrefix+"_TOKEN", "")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"Main", "St"}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), config.TokenEnv)
}

func TestRun_GeocodeFailureExitCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	t.Setenv(config.TokenEnv, "tok")
	t.Setenv("STREETGRAB_GEOCODER_URL", server.URL)
	t.Setenv("STREETGRAB_MAPILLARY_URL", server.URL)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--out", t.TempDir(), "Nowhere Lane"}, &stdout, &stderr)

	assert.Equal(t, exitGeocode, code)
	assert.Contains(t, stderr.String(), "Nowhere Lane")
}
