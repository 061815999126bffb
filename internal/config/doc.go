// Package config provides configuration management for streetgrab.
//
// This package handles:
//   - Default configuration values
//   - Loading from an optional config file, the environment and CLI flags (viper)
//   - Validation (go-playground/validator)
//   - Conversion to retry.Policy for the download scheduler
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Saves to ./panos with 4 workers
//	// 3 attempts per image, 1s base back-off
//	// Strict panorama classification
//
// # Loading
//
//	v := viper.New()
//	_ = v.BindPFlag("threads", flags.Lookup("threads"))
//	settings, err := config.Load(v, "/path/to/streetgrab.yaml")
//	if model.IsKind(err, model.KindConfig) {
//	    // e.g. MAPILLARY_TOKEN missing
//	}
//
// # Environment
//
// The access token is read from MAPILLARY_TOKEN. Every other key can be set
// with a STREETGRAB_ prefix, e.g. STREETGRAB_THREADS=8 or
// STREETGRAB_REDIS_ADDR=localhost:6379.
package config
