// Package fetch is the transfer engine: it moves one task's bytes from
// the remote to the local tree, with resume, retries, and idempotent
// skips. Concurrency lives in the scheduler; the engine is per-task.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/diskspace"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/httpx"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/util/buffers"
)

// ErrInsufficientSpace indicates the destination volume cannot hold the
// file. Permanent; retrying will not free the disk.
var ErrInsufficientSpace = errors.New("not enough free disk space for file")

// Remote is the content surface the engine needs. *drive.Content
// implements it; tests substitute an httptest-backed fake.
type Remote interface {
	// OpenPreview streams a width-bounded preview. Size is -1 when unknown.
	OpenPreview(ctx context.Context, fileID string, width int) (io.ReadCloser, int64, error)

	// OpenContent streams file content from offset. Size is the total
	// file size when known, -1 otherwise. Returns drive.ErrRangeComplete
	// when offset is at or past EOF.
	OpenContent(ctx context.Context, fileID string, offset int64) (io.ReadCloser, int64, error)
}

// ProgressFunc receives byte deltas as a transfer proceeds.
type ProgressFunc func(delta int64)

// Outcome describes a finished task.
type Outcome struct {
	// Bytes written to disk during this run (resumed bytes excluded).
	Bytes int64
	// Skipped is true when the file was already complete locally.
	Skipped bool
	// Retries is the number of retry attempts that were needed.
	Retries int
}

// Engine performs transfers.
type Engine struct {
	remote Remote
	log    *logging.Logger

	// Retry is the per-task retry policy.
	Retry httpx.Config

	// Width is the preview rendition width.
	Width int

	// Overwrite forces re-download of existing complete files.
	Overwrite bool

	// FreeSpace probes the destination volume before original
	// downloads. Defaults to diskspace.Free; nil disables the check.
	FreeSpace func(path string) (uint64, error)
}

// New builds an Engine with the default retry policy.
func New(remote Remote, log *logging.Logger, width int) *Engine {
	return &Engine{
		remote:    remote,
		log:       log,
		Retry:     httpx.DefaultConfig(),
		Width:     width,
		FreeSpace: diskspace.Free,
	}
}

// Fetch runs one task to completion. The returned Outcome is valid even
// on error insofar as Bytes reflects what reached the disk. onProgress
// may be nil.
func (e *Engine) Fetch(ctx context.Context, task models.FetchTask, onProgress ProgressFunc) (Outcome, error) {
	if onProgress == nil {
		onProgress = func(int64) {}
	}

	target := task.TargetPath()
	if e.alreadyComplete(target, task.ExpectedSize) {
		e.log.Debug().Str("file", task.Filename).Msg("Already present, skipping")
		return Outcome{Skipped: true}, nil
	}

	if err := os.MkdirAll(task.TargetDir, 0755); err != nil {
		return Outcome{}, fmt.Errorf("creating %s: %w", task.TargetDir, err)
	}

	switch task.Variant {
	case models.VariantPreview:
		return e.fetchPreview(ctx, task, onProgress)
	default:
		return e.fetchOriginal(ctx, task, onProgress)
	}
}

// alreadyComplete reports whether the final target exists and matches
// the expected size. With an unknown size, existence is enough: a file
// under its final name was always renamed there after a full write.
func (e *Engine) alreadyComplete(target string, expectedSize int64) bool {
	if e.Overwrite {
		return false
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return false
	}
	return expectedSize < 0 || info.Size() == expectedSize
}

// fetchPreview downloads a preview rendition. Previews are small and
// not range-resumable, so each attempt rewrites the temp file from the
// start.
func (e *Engine) fetchPreview(ctx context.Context, task models.FetchTask, onProgress ProgressFunc) (Outcome, error) {
	target := task.TargetPath()
	part := target + constants.PartSuffix
	var out Outcome

	retryCfg := e.Retry
	retryCfg.OnRetry = func(attempt int, err error, errType httpx.ErrorType) {
		out.Retries++
		e.log.Warn().Err(err).
			Int("attempt", attempt).
			Str("type", errType.String()).
			Str("file", task.Filename).
			Msg("Preview attempt failed, backing off")
	}

	err := httpx.ExecuteWithRetry(ctx, retryCfg, func() error {
		body, _, err := e.remote.OpenPreview(ctx, task.FileID, e.Width)
		if err != nil {
			return err
		}
		defer body.Close()

		// Flush prior progress from a failed attempt.
		if out.Bytes > 0 {
			onProgress(-out.Bytes)
			out.Bytes = 0
		}

		n, err := e.writeFile(ctx, part, 0, body, onProgress)
		out.Bytes = n
		if err != nil {
			return err
		}
		return os.Rename(part, target)
	})
	if err != nil {
		e.removePart(part)
		return out, err
	}
	return out, nil
}

// fetchOriginal downloads full content with range resume. Each retry
// attempt recomputes the offset from the temp file, so bytes that made
// it to disk before a failure are never transferred twice.
func (e *Engine) fetchOriginal(ctx context.Context, task models.FetchTask, onProgress ProgressFunc) (Outcome, error) {
	target := task.TargetPath()
	part := target + constants.PartSuffix
	var out Outcome

	if err := e.preflightSpace(task); err != nil {
		return out, err
	}

	retryCfg := e.Retry
	retryCfg.OnRetry = func(attempt int, err error, errType httpx.ErrorType) {
		out.Retries++
		e.log.Warn().Err(err).
			Int("attempt", attempt).
			Str("type", errType.String()).
			Str("file", task.Filename).
			Msg("Download attempt failed, backing off")
	}

	err := httpx.ExecuteWithRetry(ctx, retryCfg, func() error {
		offset := partSize(part)
		if offset > 0 {
			e.log.Debug().
				Str("file", task.Filename).
				Int64("offset", offset).
				Msg("Resuming from local offset")
		}

		body, total, err := e.remote.OpenContent(ctx, task.FileID, offset)
		if errors.Is(err, drive.ErrRangeComplete) {
			return os.Rename(part, target)
		}
		if err != nil {
			return err
		}
		defer body.Close()

		n, err := e.writeFile(ctx, part, offset, body, onProgress)
		out.Bytes += n
		if err != nil {
			return err
		}

		// An attempt that ends cleanly but short of the declared size
		// is a truncated stream; retry resumes from the new offset.
		if total >= 0 && offset+n < total {
			return &shortReadError{got: offset + n, want: total}
		}
		return os.Rename(part, target)
	})
	if err != nil {
		// Keep the temp file: the next run resumes from it.
		return out, err
	}
	return out, nil
}

// shortReadError marks a stream that ended before the declared size.
type shortReadError struct{ got, want int64 }

func (e *shortReadError) Error() string {
	return fmt.Sprintf("stream ended early: %d of %d bytes", e.got, e.want)
}

// Temporary marks the error as retryable for the backoff classifier.
func (e *shortReadError) Temporary() bool { return true }

// preflightSpace refuses tasks whose declared size cannot fit on the
// destination volume.
func (e *Engine) preflightSpace(task models.FetchTask) error {
	if e.FreeSpace == nil || task.ExpectedSize <= 0 {
		return nil
	}
	dir := task.TargetDir
	if _, err := os.Stat(dir); err != nil {
		dir = filepath.Dir(dir) // volume probe only needs an existing ancestor
		if _, err := os.Stat(dir); err != nil {
			return nil
		}
	}
	free, err := e.FreeSpace(dir)
	if err != nil {
		return nil // probe failure never blocks a download
	}
	// Leave headroom so a download never fills the volume completely.
	const headroom = 64 * 1024 * 1024
	if uint64(task.ExpectedSize)+headroom > free {
		return fmt.Errorf("%s needs %d bytes, %d free: %w",
			task.Filename, task.ExpectedSize, free, ErrInsufficientSpace)
	}
	return nil
}

// writeFile streams body into path at offset and reports bytes written.
// offset 0 truncates; a positive offset appends after verifying the
// file is exactly that long.
func (e *Engine) writeFile(ctx context.Context, path string, offset int64, body io.Reader, onProgress ProgressFunc) (int64, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if offset == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return 0, err
		}
	}

	bufp := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(bufp)
	buf := *bufp
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			onProgress(int64(n))
		}
		if rerr == io.EOF {
			return written, f.Sync()
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// partSize returns the size of an in-progress temp file, or 0.
func partSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

func (e *Engine) removePart(part string) {
	if err := os.Remove(part); err != nil && !os.IsNotExist(err) {
		e.log.Debug().Err(err).Str("part", part).Msg("Could not remove temp file")
	}
}
