// Package prescan is the discovery phase: it walks every requested scan
// root, classifies what it finds, accounts for files already on disk,
// and produces the task list the scheduler will execute.
package prescan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ontahood/drivefetch/internal/classify"
	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/httpx"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/util/sanitize"
	"github.com/ontahood/drivefetch/internal/walk"
)

// Options mirror the fetch-behavior knobs from configuration.
type Options struct {
	OutputDir      string
	ImageWidth     int
	OriginalImages bool
	DownloadVideos bool
	DownloadDocs   bool
	Overwrite      bool
	Workers        int
}

// RootError records a scan root that produced nothing at all.
type RootError struct {
	URL string
	Err error
}

// Plan is the output of a prescan: everything to fetch, per-root
// accounting, and what went wrong along the way.
type Plan struct {
	Tasks     []models.FetchTask
	Summaries map[string]*models.FolderSummary

	// RootErrors lists roots that could not be scanned at all
	// (bad URL, no access, not a folder).
	RootErrors []RootError

	// ListingFailures lists subfolders skipped during otherwise
	// successful walks.
	ListingFailures []walk.FolderFailure
}

// Resolver verifies a scan root and yields its display name.
// *drive.Client implements it.
type Resolver interface {
	ResolveFolder(ctx context.Context, folderID string) (*drive.Item, error)
}

// Scanner discovers work across scan roots, walking roots in parallel.
type Scanner struct {
	lister   drive.Lister
	resolver Resolver
	log      *logging.Logger
	totals   *models.RunTotals
	opts     Options

	// Retry controls listing retries during traversal.
	Retry httpx.Config
}

// New builds a Scanner.
func New(lister drive.Lister, resolver Resolver, log *logging.Logger, totals *models.RunTotals, opts Options) *Scanner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ImageWidth <= 0 {
		opts.ImageWidth = constants.DefaultImageWidth
	}
	return &Scanner{
		lister:   lister,
		resolver: resolver,
		log:      log,
		totals:   totals,
		opts:     opts,
		Retry:    httpx.DefaultConfig(),
	}
}

// Scan walks all roots and assembles the Plan. Roots are scanned
// concurrently up to the worker bound. Cancelling ctx aborts the scan
// and returns the context error.
func (s *Scanner) Scan(ctx context.Context, urls []string) (*Plan, error) {
	plan := &Plan{Summaries: make(map[string]*models.FolderSummary, len(urls))}
	var mu sync.Mutex

	semaphore := make(chan struct{}, s.opts.Workers)
	var wg sync.WaitGroup

	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			tasks, summary, failures, err := s.scanRoot(ctx, url)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error().Err(err).Str("url", url).Msg("Scan root failed")
					plan.RootErrors = append(plan.RootErrors, RootError{URL: url, Err: err})
				}
				return
			}
			plan.Tasks = append(plan.Tasks, tasks...)
			plan.Summaries[url] = summary
			plan.ListingFailures = append(plan.ListingFailures, failures...)
		}(url)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

// scanRoot resolves one folder URL and walks its tree.
func (s *Scanner) scanRoot(ctx context.Context, url string) ([]models.FetchTask, *models.FolderSummary, []walk.FolderFailure, error) {
	folderID, err := drive.ExtractFolderID(url)
	if err != nil {
		return nil, nil, nil, err
	}

	root, err := s.resolver.ResolveFolder(ctx, folderID)
	if err != nil {
		return nil, nil, nil, err
	}

	rootName := sanitize.Filename(root.Name)
	urlLabel := sanitize.Label(url, 160)
	baseDir := filepath.Join(s.opts.OutputDir, urlLabel, rootName)

	s.log.Info().
		Str("root", rootName).
		Str("url", url).
		Msg("Pre-scan starting")

	summary := &models.FolderSummary{RootLabel: rootName, RootURL: url}
	var tasks []models.FetchTask

	walker := walk.New(s.lister, s.log)
	walker.Retry = s.Retry
	walkErr := walker.Walk(ctx, folderID, rootName, func(node models.RemoteNode) error {
		if task := s.planNode(node, url, baseDir, summary); task != nil {
			tasks = append(tasks, *task)
		}
		return nil
	})

	var failures []walk.FolderFailure
	if walkErr != nil {
		var perr *walk.PartialError
		if !errors.As(walkErr, &perr) {
			return nil, nil, nil, walkErr
		}
		failures = perr.Failures
	}

	s.log.Info().
		Str("root", rootName).
		Int64("images", summary.Images).
		Int64("images_have", summary.ImagesExisting).
		Int64("videos", summary.Videos).
		Int64("videos_have", summary.VideosExisting).
		Msg("Pre-scan counts")

	return tasks, summary, failures, nil
}

// planNode accounts for one discovered file and builds its task when
// the file is wanted and missing locally. Returns nil when nothing is
// to be fetched.
func (s *Scanner) planNode(node models.RemoteNode, rootURL, baseDir string, summary *models.FolderSummary) *models.FetchTask {
	kind := classify.Kind(node.MIMEType, node.Name, node.FileExtension)
	if kind == models.MediaDoc && !s.opts.DownloadDocs {
		kind = models.MediaOther
	}
	s.totals.AddDiscovered(kind)
	if kind == models.MediaOther {
		return nil
	}

	targetDir := filepath.Join(baseDir, filepath.FromSlash(node.RelDir()))
	variant := models.VariantOriginal
	var filename string
	var expectedBytes int64 // contribution to the byte estimate

	safeName := sanitize.Filename(node.Name)
	base := strings.TrimSuffix(safeName, filepath.Ext(safeName))

	switch kind {
	case models.MediaImage:
		summary.Images++
		if s.opts.OriginalImages {
			filename = fmt.Sprintf("%s__%s%s", base, node.ID, extOut(node, ".jpg"))
			expectedBytes = max64(node.Size, 0)
		} else {
			variant = models.VariantPreview
			filename = fmt.Sprintf("%s__%s_w%d.jpg", base, node.ID, s.opts.ImageWidth)
			expectedBytes = EstimateThumbnailBytes(s.opts.ImageWidth)
		}
	case models.MediaVideo:
		summary.Videos++
		filename = fmt.Sprintf("%s__%s%s", base, node.ID, extOut(node, ".mp4"))
		expectedBytes = max64(node.Size, 0)
	case models.MediaDoc:
		summary.Docs++
		filename = fmt.Sprintf("%s__%s%s", base, node.ID, docExt(node))
		expectedBytes = max64(node.Size, 0)
	}

	target := filepath.Join(targetDir, filename)
	expectedSize := node.Size
	if variant == models.VariantPreview {
		expectedSize = -1 // preview size is unknowable up front
	}

	if !s.opts.Overwrite && existsComplete(target, expectedSize) {
		switch kind {
		case models.MediaImage:
			summary.ImagesExisting++
		case models.MediaVideo:
			summary.VideosExisting++
		case models.MediaDoc:
			summary.DocsExisting++
		}
		return nil
	}

	// Videos are always counted so summaries stay truthful, but only
	// fetched when enabled.
	if kind == models.MediaVideo && !s.opts.DownloadVideos {
		return nil
	}

	switch kind {
	case models.MediaImage:
		summary.ImagesBytes += expectedBytes
	case models.MediaVideo:
		summary.VideosBytes += expectedBytes
	case models.MediaDoc:
		summary.DocsBytes += expectedBytes
	}
	s.totals.BytesExpected.Add(expectedBytes)

	task := models.NewFetchTask(node.ID, kind, variant)
	task.Name = node.Name
	task.TargetDir = targetDir
	task.Filename = filename
	task.ExpectedSize = expectedSize
	task.RootLabel = node.RootLabel
	task.FolderKey = rootURL
	return &task
}

// extOut picks the output extension for originals: the file's own
// extension, or the Drive-reported one, or the fallback.
func extOut(node models.RemoteNode, fallback string) string {
	if ext := filepath.Ext(node.Name); ext != "" {
		return ext
	}
	if node.FileExtension != "" {
		return "." + node.FileExtension
	}
	return fallback
}

// docExt mirrors extOut but can also derive an extension from the MIME
// type, since documents often arrive without one.
func docExt(node models.RemoteNode) string {
	if ext := filepath.Ext(node.Name); ext != "" {
		return ext
	}
	mime := strings.ToLower(node.MIMEType)
	switch {
	case strings.Contains(mime, "pdf"):
		return ".pdf"
	case strings.Contains(mime, "text"):
		return ".txt"
	case node.FileExtension != "":
		return "." + node.FileExtension
	}
	return ".dat"
}

// existsComplete reports whether target is already on disk and,
// when a size is known, matches it.
func existsComplete(target string, expectedSize int64) bool {
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return false
	}
	return expectedSize < 0 || info.Size() == expectedSize
}

// EstimateThumbnailBytes predicts the size of a JPEG preview at the
// given width, assuming a ~4:3 aspect ratio and typical JPEG quality
// (~0.1875 bytes per pixel), clamped to a sane range.
func EstimateThumbnailBytes(width int) int64 {
	if width < 1 {
		width = constants.DefaultImageWidth
	}
	height := (width * 3) / 4
	est := int64(0.1875 * float64(width) * float64(height))
	if est < constants.ThumbEstimateMinBytes {
		return constants.ThumbEstimateMinBytes
	}
	if est > constants.ThumbEstimateMaxBytes {
		return constants.ThumbEstimateMaxBytes
	}
	return est
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
