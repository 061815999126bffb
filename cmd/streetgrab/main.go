package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/handiism/streetgrab/internal/config"
	"github.com/handiism/streetgrab/internal/download"
	"github.com/handiism/streetgrab/internal/grabber"
	"github.com/handiism/streetgrab/internal/logger"
	"github.com/handiism/streetgrab/internal/model"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.8.1"

const (
	exitOK          = 0
	exitUsage       = 1
	exitGeocode     = 2
	exitMetadata    = 3
	exitDownload    = 4
	exitInterrupted = 130
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling...")
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	d := config.DefaultSettings()

	flags := pflag.NewFlagSet("streetgrab", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Float64("radius", d.Radius, "padding around the street in meters")
	flags.String("out", d.OutDir, "output directory")
	flags.Int("threads", d.Threads, "concurrent downloads")
	flags.Bool("pano", false, "only save 360-degree panoramas")
	flags.Bool("strict", d.Strict, "require the provider's panorama flag as well as a 2:1 aspect ratio")
	flags.Bool("verify-pixels", false, "check the real pixel dimensions of each downloaded image")
	flags.Bool("debug", false, "verbose filtering, geocoder and failure output")
	flags.Bool("geo-debug", false, "always print the geocoder pick regardless of --debug")
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("metrics-file", "", "write Prometheus metrics to this file when done")
	showVersion := flags.BoolP("version", "V", false, "print the version and exit")
	showHelp := flags.BoolP("help", "h", false, "show this help")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "streetgrab - download street-level imagery from Mapillary")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  streetgrab <street-query...> [flags]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "For interactive mode, use: streetgrab-tui")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		fmt.Fprint(stderr, flags.FlagUsages())
		fmt.Fprintln(stderr)
		fmt.Fprintf(stderr, "Environment:\n  %s (required), %s_* for any setting\n", config.TokenEnv, config.EnvPrefix)
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *showHelp {
		flags.Usage()
		return exitOK
	}
	if *showVersion {
		fmt.Fprintf(stdout, "streetgrab, version %s\n", version)
		return exitOK
	}

	query := strings.TrimSpace(strings.Join(flags.Args(), " "))
	if query == "" {
		flags.Usage()
		return exitUsage
	}

	v := viper.New()
	for key, name := range map[string]string{
		"radius":        "radius",
		"out":           "out",
		"threads":       "threads",
		"pano":          "pano",
		"strict":        "strict",
		"verify_pixels": "verify-pixels",
		"debug":         "debug",
		"geo_debug":     "geo-debug",
		"metrics_file":  "metrics-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
			return exitUsage
		}
	}

	configPath, _ := flags.GetString("config")
	settings, err := config.Load(v, configPath)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		return exitCode(err)
	}

	log, err := logger.New(settings.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error creating logger: "+err.Error()))
		return exitUsage
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("version", version))

	g, cleanup, err := grabber.Build(settings, log, printer(stdout, settings.Debug))
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		return exitCode(err)
	}
	defer cleanup()

	sum, err := g.Run(ctx, query)
	printSummary(stdout, sum, settings.Debug)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(stderr, warningStyle.Render("Cancelled. Files and ledger rows written so far are complete."))
		} else {
			fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		}
		return exitCode(err)
	}
	return exitOK
}

// printer renders progress events as plain lines; verbose events only with
// --debug.
func printer(w io.Writer, debug bool) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !debug {
			return
		}

		var line string
		switch event.Level {
		case download.LevelError:
			line = errorStyle.Render("✗ " + event.Message)
		case download.LevelWarning:
			line = warningStyle.Render("! " + event.Message)
		case download.LevelSuccess:
			line = successStyle.Render("✓ " + event.Message)
		case download.LevelVerbose:
			line = dimStyle.Render("  " + event.Message)
		default:
			line = event.Message
		}
		fmt.Fprintln(w, line)
	}
}

func printSummary(w io.Writer, sum *grabber.Summary, debug bool) {
	if sum == nil || sum.Found == 0 {
		return
	}

	fmt.Fprintf(w, "Summary: %d found, %d kept, %d saved, %d failed, %d skipped",
		sum.Found, sum.Kept, sum.Succeeded, sum.Failed, sum.Skipped)
	if sum.Cancelled > 0 {
		fmt.Fprintf(w, ", %d cancelled", sum.Cancelled)
	}
	fmt.Fprintln(w)

	if debug {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("run %s: %d duplicate record(s), %d without url, %d dropped by filter, took %s",
			sum.RunID, sum.Duplicates, sum.NoURL, sum.Dropped, sum.Duration)))
		for _, f := range sum.Failures {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  failed %s: %s", f.ImageID, f.Reason)))
		}
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case model.IsKind(err, model.KindConfig):
		return exitUsage
	case model.IsKind(err, model.KindGeocode):
		return exitGeocode
	case model.IsKind(err, model.KindMetadata):
		return exitMetadata
	case model.IsKind(err, model.KindDownload):
		return exitDownload
	default:
		return exitUsage
	}
}
