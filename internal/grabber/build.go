package grabber

import (
	"fmt"
	"strings"

	"github.com/handiism/streetgrab/internal/config"
	"github.com/handiism/streetgrab/internal/download"
	"github.com/handiism/streetgrab/internal/geocode"
	ihttp "github.com/handiism/streetgrab/internal/http"
	"github.com/handiism/streetgrab/internal/mapillary"
	"github.com/handiism/streetgrab/internal/metrics"
	"go.uber.org/zap"
)

// Build constructs a Grabber and its collaborators from settings.
//
// One HTTP client is shared by the geocoder, the metadata client and the
// download scheduler. The returned cleanup function releases it and the
// optional Redis connection.
func Build(s *config.Settings, logger *zap.Logger, onProgress func(download.ProgressEvent)) (*Grabber, func(), error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	client := ihttp.NewClient(
		ihttp.WithTimeout(s.RequestTimeout),
		ihttp.WithUserAgent(s.UserAgent),
		ihttp.WithMaxConnsPerHost(s.Threads),
	)
	rec := metrics.New()

	closers := []func(){client.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	resolverOpts := []geocode.ResolverOption{geocode.WithMetrics(rec)}
	if s.RedisAddr != "" {
		cache, err := geocode.NewRedisCache(s.RedisAddr, logger)
		if err != nil {
			logger.Warn("geocode cache disabled", zap.String("addr", s.RedisAddr), zap.Error(err))
		} else {
			closers = append(closers, func() { _ = cache.Close() })
			resolverOpts = append(resolverOpts, geocode.WithCache(cache, s.CacheTTL))
		}
	}

	nominatim := geocode.NewNominatim(client, s.GeocoderURL, logger)
	resolver := geocode.NewResolver(nominatim, logger, resolverOpts...)
	if s.Debug || s.GeoDebug {
		resolver.OnDiagnostic = geoDiagnostics(onProgress)
	}

	fetcher := mapillary.NewClient(client, s.MapillaryURL, s.Token, logger,
		mapillary.WithPageSize(s.PageSize),
		mapillary.WithMaxImages(s.MaxImages),
		mapillary.WithRetryPolicy(s.RetryPolicy()),
		mapillary.WithMetrics(rec),
	)

	scheduler := download.NewScheduler(client, download.Options{
		OutDir:       s.OutDir,
		Workers:      s.Threads,
		Policy:       s.RetryPolicy(),
		VerifyPixels: s.VerifyPixels,
	}, logger, onProgress, download.WithMetrics(rec))

	g := New(resolver, fetcher, scheduler, Options{
		Radius:      s.Radius,
		PanoOnly:    s.Pano,
		Strict:      s.Strict,
		Debug:       s.Debug,
		OutDir:      s.OutDir,
		MetricsFile: s.MetricsFile,
	}, logger, rec, onProgress)

	return g, cleanup, nil
}

func geoDiagnostics(onProgress func(download.ProgressEvent)) func(geocode.Diagnostic) {
	return func(d geocode.Diagnostic) {
		if onProgress == nil {
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Geocoder picked: %s [%s/%s]", d.Chosen.DisplayName, d.Chosen.Class, d.Chosen.Type)
		for _, r := range d.Rejected {
			fmt.Fprintf(&b, "\n  rejected: %s [%s/%s]", r.DisplayName, r.Class, r.Type)
		}
		onProgress(download.ProgressEvent{Message: b.String(), Level: download.LevelInfo})
	}
}
