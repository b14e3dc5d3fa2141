// Package cli implements the shortsget command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shortsget/shortsget/internal/audit"
	"github.com/shortsget/shortsget/internal/config"
	"github.com/shortsget/shortsget/internal/downloader"
	"github.com/shortsget/shortsget/internal/provider"
	"github.com/shortsget/shortsget/internal/request"
	"github.com/shortsget/shortsget/internal/resolver"
	"github.com/shortsget/shortsget/internal/validate"
	"github.com/shortsget/shortsget/internal/version"
)

var (
	flagOutput  string
	flagFormat  string
	flagQuality string
	flagInfo    bool
	flagPlain   bool
)

var rootCmd = &cobra.Command{
	Use:     "shortsget [url]",
	Short:   "Download YouTube Shorts via a chain of link-resolution providers",
	Version: version.Version,
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(config.LoadOrDefault())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		cmd.SilenceUsage = true
		return runDownload(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output directory (default from config)")
	rootCmd.Flags().StringVarP(&flagFormat, "format", "f", "video", "video or audio")
	rootCmd.Flags().StringVarP(&flagQuality, "quality", "q", "", "preferred quality (720p, 480p, 360p)")
	rootCmd.Flags().BoolVar(&flagInfo, "info", false, "resolve and print the media URL without downloading")
	rootCmd.Flags().BoolVar(&flagPlain, "plain", false, "disable the interactive progress display")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func runDownload(ctx context.Context, rawURL string) error {
	cfg := config.LoadOrDefault()

	req, err := request.Normalize(rawURL, flagFormat, flagQuality)
	if err != nil {
		return err
	}

	chain := provider.Chain(cfg)
	if len(chain) == 0 {
		return fmt.Errorf("no providers available; set an API key with 'shortsget config key set' or install yt-dlp")
	}

	res := resolver.New(chain, validate.New(cfg.ProbeTimeout)).
		WithTimeout(cfg.ProviderTimeout)

	recorder := openRecorder(cfg)
	defer recorder.Close()

	if flagInfo {
		return printInfo(ctx, res, recorder, req)
	}

	outputDir := flagOutput
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	dl := downloader.New(res, outputDir, cfg.MaxAttempts)

	var result *downloader.Result
	if flagPlain || !isTerminal() {
		dl.OnProgress(plainProgress())
		result, err = dl.Download(ctx, req)
	} else {
		result, err = dl.DownloadTUI(ctx, req)
	}

	recordOutcome(recorder, req, result, err)
	return reportResult(result, err)
}

func printInfo(ctx context.Context, res *resolver.Resolver, recorder *audit.Recorder, req request.Request) error {
	resolved, err := res.Resolve(ctx, req)
	if err != nil {
		recorder.Record(audit.Record{
			SourceURL: req.SourceURL,
			Outcome:   "error",
			Format:    string(req.Format),
			Quality:   string(req.Quality),
			Error:     err.Error(),
			ClientIP:  "local",
		})
		return err
	}

	recorder.Record(audit.Record{
		SourceURL: req.SourceURL,
		Outcome:   "success",
		Format:    string(req.Format),
		Quality:   resolved.Quality,
		Provider:  resolved.Provider,
		ClientIP:  "local",
	})

	fmt.Printf("  Title:    %s\n", resolved.Title)
	if resolved.Author != "" {
		fmt.Printf("  Author:   %s\n", resolved.Author)
	}
	if resolved.DurationSeconds > 0 {
		fmt.Printf("  Duration: %ds\n", resolved.DurationSeconds)
	}
	fmt.Printf("  Quality:  %s (%s)\n", resolved.Quality, resolved.Ext)
	fmt.Printf("  Provider: %s\n", resolved.Provider)
	fmt.Printf("  URL:      %s\n", resolved.MediaURL)
	return nil
}

func reportResult(result *downloader.Result, err error) error {
	if result == nil {
		return err
	}

	switch result.Outcome {
	case downloader.OutcomeSaved:
		color.Green("Saved %s", result.Path)
		return nil
	case downloader.OutcomeOpenDirect:
		color.Yellow("Could not fetch the file, but the direct link works in a browser:")
		fmt.Println(result.URL)
		return err
	default:
		color.Yellow("Download unavailable right now. You can open the video page instead:")
		fmt.Println(result.URL)
		return err
	}
}

func recordOutcome(recorder *audit.Recorder, req request.Request, result *downloader.Result, err error) {
	rec := audit.Record{
		SourceURL: req.SourceURL,
		Outcome:   "success",
		Format:    string(req.Format),
		Quality:   string(req.Quality),
		ClientIP:  "local",
	}
	if result != nil && result.Resolved != nil {
		rec.Provider = result.Resolved.Provider
		rec.Quality = result.Resolved.Quality
	}
	if err != nil || result == nil || result.Outcome != downloader.OutcomeSaved {
		rec.Outcome = "error"
		if err != nil {
			rec.Error = err.Error()
		}
	}
	recorder.Record(rec)
}

// openRecorder returns nil when auditing is off or the DB cannot be
// opened; a nil recorder silently drops records.
func openRecorder(cfg *config.Config) *audit.Recorder {
	if !cfg.AuditEnabled {
		return nil
	}
	recorder, err := audit.Open()
	if err != nil {
		logrus.WithError(err).Debug("audit disabled")
		return nil
	}
	return recorder
}

func plainProgress() downloader.Progress {
	var last downloader.State = -1
	return func(state downloader.State, written, total int64) {
		if state != last {
			last = state
			fmt.Fprintf(os.Stderr, "  %s...\n", state)
		}
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func setupLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
