package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/handiism/streetgrab/internal/model"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv(TokenEnv, "")
	t.Setenv(EnvPrefix+"_TOKEN", "")

	_, err := Load(viper.New(), "")

	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConfig))
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(TokenEnv, "MLY|abc")

	s, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "MLY|abc", s.Token)
	assert.Equal(t, 4, s.Threads)
	assert.Equal(t, 25.0, s.Radius)
	assert.Equal(t, "./panos", s.OutDir)
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, time.Second, s.RetryBaseDelay)
	assert.True(t, s.Strict)
	assert.Equal(t, "warn", s.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(TokenEnv, "tok")
	t.Setenv("STREETGRAB_THREADS", "8")
	t.Setenv("STREETGRAB_RETRY_BASE_DELAY", "250ms")
	t.Setenv("STREETGRAB_REDIS_ADDR", "localhost:6379")

	s, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 8, s.Threads)
	assert.Equal(t, 250*time.Millisecond, s.RetryBaseDelay)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
}

func TestLoad_ConfigFileAndFlags(t *testing.T) {
	t.Setenv(TokenEnv, "tok")

	path := filepath.Join(t.TempDir(), "streetgrab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threads: 6\nradius: 40\nout: /tmp/panos\n"), 0644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("threads", 4, "")
	require.NoError(t, fs.Parse([]string{"--threads", "2"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("threads", fs.Lookup("threads")))

	s, err := Load(v, path)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Threads, "flag beats config file")
	assert.Equal(t, 40.0, s.Radius)
	assert.Equal(t, "/tmp/panos", s.OutDir)
}

func TestLoad_MissingConfigFileUsesDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "tok")

	s, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Threads)
}

func TestLoad_DebugRaisesLogLevel(t *testing.T) {
	t.Setenv(TokenEnv, "tok")
	t.Setenv("STREETGRAB_DEBUG", "true")

	s, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"zero threads", func(s *Settings) { s.Threads = 0 }},
		{"negative radius", func(s *Settings) { s.Radius = -1 }},
		{"bad url", func(s *Settings) { s.MapillaryURL = "not a url" }},
		{"zero retries", func(s *Settings) { s.MaxRetries = 0 }},
		{"jitter above one", func(s *Settings) { s.RetryJitter = 1.5 }},
		{"unknown log level", func(s *Settings) { s.LogLevel = "loud" }},
		{"empty out dir", func(s *Settings) { s.OutDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.Token = "tok"
			tt.modify(s)

			err := s.Validate()
			require.Error(t, err)
			assert.True(t, model.IsKind(err, model.KindConfig))
		})
	}
}

func TestSettings_RetryPolicy(t *testing.T) {
	s := DefaultSettings()
	p := s.RetryPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 0.2, p.Jitter)
}
