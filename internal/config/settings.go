package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/handiism/streetgrab/internal/retry"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable except the token.
const EnvPrefix = "STREETGRAB"

// TokenEnv is the environment variable holding the Mapillary access token.
const TokenEnv = "MAPILLARY_TOKEN"

// ErrMissingToken is returned when no Mapillary token is configured.
var ErrMissingToken = errors.New(TokenEnv + " is not set")

var validate = validator.New()

// Settings holds all configuration options.
type Settings struct {
	// Provider settings
	Token          string        `mapstructure:"token" validate:"required"`
	GeocoderURL    string        `mapstructure:"geocoder_url" validate:"required,url"`
	MapillaryURL   string        `mapstructure:"mapillary_url" validate:"required,url"`
	UserAgent      string        `mapstructure:"user_agent" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`

	// Search settings
	Radius    float64 `mapstructure:"radius" validate:"gte=0,lte=50000"`
	PageSize  int     `mapstructure:"page_size" validate:"gte=1,lte=2000"`
	MaxImages int     `mapstructure:"max_images" validate:"gte=1"`

	// Filter settings
	Pano         bool `mapstructure:"pano"`
	Strict       bool `mapstructure:"strict"`
	VerifyPixels bool `mapstructure:"verify_pixels"`

	// Download settings
	OutDir         string        `mapstructure:"out" validate:"required"`
	Threads        int           `mapstructure:"threads" validate:"gte=1,lte=64"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=1,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay" validate:"gte=0"`
	RetryJitter    float64       `mapstructure:"retry_jitter" validate:"gte=0,lte=1"`

	// Cache settings
	RedisAddr string        `mapstructure:"redis_addr"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`

	// Diagnostics
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Debug       bool   `mapstructure:"debug"`
	GeoDebug    bool   `mapstructure:"geo_debug"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		GeocoderURL:    "https://nominatim.openstreetmap.org",
		MapillaryURL:   "https://graph.mapillary.com",
		UserAgent:      "streetgrab/0.8.1 (+https://github.com/handiism/streetgrab)",
		RequestTimeout: 30 * time.Second,

		Radius:    25,
		PageSize:  500,
		MaxImages: 10000,

		Pano:         false,
		Strict:       true,
		VerifyPixels: false,

		OutDir:         "./panos",
		Threads:        4,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
		RetryJitter:    0.2,

		CacheTTL: 24 * time.Hour,

		LogLevel: "warn",
	}
}

// Load builds Settings from defaults, an optional config file, the
// environment and any flags already bound to v.
//
// Precedence, lowest first: DefaultSettings, config file, STREETGRAB_*
// environment variables (MAPILLARY_TOKEN for the token), bound flags.
// A missing config file is not an error. Validation failures are returned as
// model.KindConfig errors.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}

	d := DefaultSettings()
	v.SetDefault("token", "")
	v.SetDefault("geocoder_url", d.GeocoderURL)
	v.SetDefault("mapillary_url", d.MapillaryURL)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("radius", d.Radius)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("max_images", d.MaxImages)
	v.SetDefault("pano", d.Pano)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("verify_pixels", d.VerifyPixels)
	v.SetDefault("out", d.OutDir)
	v.SetDefault("threads", d.Threads)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_base_delay", d.RetryBaseDelay)
	v.SetDefault("retry_max_delay", d.RetryMaxDelay)
	v.SetDefault("retry_jitter", d.RetryJitter)
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("geo_debug", false)
	v.SetDefault("metrics_file", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewError(model.KindConfig, "read config", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("token", TokenEnv, EnvPrefix+"_TOKEN"); err != nil {
		return nil, model.NewError(model.KindConfig, "bind env", err)
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, model.NewError(model.KindConfig, "unmarshal config", err)
	}

	if s.Debug {
		s.LogLevel = "debug"
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that required configuration fields are present and sane.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return model.NewError(model.KindConfig, "validate", ErrMissingToken)
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			err = fmt.Errorf("invalid settings:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return model.NewError(model.KindConfig, "validate", err)
	}
	return nil
}

// RetryPolicy converts settings to the download retry policy.
func (s *Settings) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: s.MaxRetries,
		BaseDelay:   s.RetryBaseDelay,
		MaxDelay:    s.RetryMaxDelay,
		Jitter:      s.RetryJitter,
	}
}
