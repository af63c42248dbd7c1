package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/ontahood/drivefetch/internal/config"
	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/httpx"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/pathutil"
	"github.com/ontahood/drivefetch/internal/prescan"
	"github.com/ontahood/drivefetch/internal/progress"
	"github.com/ontahood/drivefetch/internal/scheduler"
)

// loadConfig resolves the layered configuration: file, environment, then
// any flags the user actually set on this invocation.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("token-file") {
		cfg.TokenFile = tokenFile
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("width") {
		cfg.ImageWidth = imageWidth
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = maxAttempts
	}
	if flags.Changed("original") {
		cfg.OriginalImages = originalImages
	}
	if flags.Changed("no-videos") {
		cfg.DownloadVideos = !skipVideos
	}
	if flags.Changed("docs") {
		cfg.DownloadDocs = withDocs
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = overwrite
	}

	if resolved, err := pathutil.ResolveAbsolute(cfg.OutputDir); err == nil {
		cfg.OutputDir = resolved
	}

	applyLogLevel(cfg.LogLevel)

	if err := promptProxyPassword(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLogLevel maps the configured level onto the global logger; the
// --verbose flag already forced debug and wins.
func applyLogLevel(level string) {
	if verbose {
		return
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return
	}
	zerolog.SetGlobalLevel(parsed)
}

// promptProxyPassword asks for the proxy password when the configured
// mode needs one. Prompting only works on a real terminal; otherwise the
// password must come from the environment.
func promptProxyPassword(cfg *config.Config) error {
	if !httpx.NeedsProxyPassword(cfg) {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("proxy mode %q requires a password: set PROXY_PASSWORD or run interactively", cfg.ProxyMode)
	}
	fmt.Fprintf(os.Stderr, "Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading proxy password: %w", err)
	}
	cfg.ProxyPassword = string(pw)
	return nil
}

// newDriveClient builds the authenticated metadata client plus the token
// source shared with the content fetcher.
func newDriveClient(ctx context.Context, cfg *config.Config) (*drive.Client, oauth2.TokenSource, error) {
	ts, err := drive.TokenSource(ctx, cfg.TokenFile)
	if err != nil {
		return nil, nil, err
	}
	client, err := drive.NewClient(ctx, cfg, ts)
	if err != nil {
		return nil, nil, err
	}
	return client, ts, nil
}

func scanOptions(cfg *config.Config) prescan.Options {
	return prescan.Options{
		OutputDir:      cfg.OutputDir,
		ImageWidth:     cfg.ImageWidth,
		OriginalImages: cfg.OriginalImages,
		DownloadVideos: cfg.DownloadVideos,
		DownloadDocs:   cfg.DownloadDocs,
		Overwrite:      cfg.Overwrite,
		Workers:        cfg.Workers,
	}
}

func retryConfig(cfg *config.Config) httpx.Config {
	return httpx.Config{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: constants.DefaultInitialDelay,
		MaxDelay:     constants.DefaultMaxDelay,
	}
}

// newScanReporter picks the progress sink for a discovery phase: a
// spinner on a real terminal, nothing when output is piped.
func newScanReporter() progress.Reporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return progress.NewCLIReporter()
	}
	return progress.NewNoOpReporter()
}

// watchScan drives a reporter from the shared counters while a scan
// runs: the spinner label tracks how many files discovery has seen so
// far. The returned function finalizes the spinner and must be called
// exactly once, with the scan's error if it had one.
func watchScan(rep progress.Reporter, totals *models.RunTotals, label string, interval time.Duration) func(err error) {
	if interval <= 0 {
		interval = constants.SnapshotInterval
	}
	rep.Start(-1, label)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var last int64
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				snap := totals.Snapshot()
				n := snap.ImagesDiscovered + snap.VideosDiscovered +
					snap.DocsDiscovered + snap.OtherDiscovered
				if n == last {
					continue
				}
				last = n
				rep.Update(n)
				rep.SetDescription(fmt.Sprintf("%s (%d files)", label, n))
			}
		}
	}()

	return func(err error) {
		close(stop)
		<-done
		if err != nil {
			rep.Error(err)
			return
		}
		rep.Finish()
	}
}

// reportScan logs the per-root and grand prescan results.
func reportScan(plan *prescan.Plan, totals *models.RunTotals) {
	for _, sum := range plan.Summaries {
		logger.Info().
			Str("root", sum.RootLabel).
			Int64("images", sum.Images).
			Int64("images_have", sum.ImagesExisting).
			Int64("videos", sum.Videos).
			Int64("videos_have", sum.VideosExisting).
			Int64("docs", sum.Docs).
			Msg("Folder summary")
	}
	for _, f := range plan.ListingFailures {
		logger.Warn().Err(f.Err).Str("path", f.Path).Msg("Folder skipped during scan")
	}
	for _, re := range plan.RootErrors {
		logger.Error().Err(re.Err).Str("url", re.URL).Msg("Root could not be scanned")
	}

	snap := totals.Snapshot()
	logger.Info().
		Int64("images", snap.ImagesDiscovered).
		Int64("videos", snap.VideosDiscovered).
		Int64("docs", snap.DocsDiscovered).
		Int64("other", snap.OtherDiscovered).
		Str("expected", humanBytes(snap.BytesExpected)).
		Msg("Pre-scan totals")
}

// reportRun logs the end-of-run summary.
func reportRun(stats scheduler.Stats, totals *models.RunTotals, state models.RunState) {
	snap := totals.Snapshot()
	logger.Info().
		Str("state", string(state)).
		Int("completed", stats.Completed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("cancelled", stats.Cancelled).
		Str("written", humanBytes(snap.BytesWritten)).
		Str("elapsed", snap.Elapsed.Round(time.Second).String()).
		Msg("Run finished")
}

// runState maps a finished scheduler run onto a terminal state.
func runState(ctx context.Context, stats scheduler.Stats) models.RunState {
	switch {
	case ctx.Err() != nil:
		return models.RunCancelled
	case stats.Failed > 0:
		return models.RunFailed
	default:
		return models.RunCompleted
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
