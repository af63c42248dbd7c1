// Package convert upgrades an already-downloaded preview tree to
// originals: it finds width-suffixed preview files on disk and plans an
// original-variant fetch for each, resolving the true extension from
// the remote metadata.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
)

// ErrDirNotFound reports a conversion root that does not exist.
var ErrDirNotFound = errors.New("folder not found")

// previewPattern matches the preview naming scheme: the file ID and the
// requested width are embedded in the filename.
var previewPattern = regexp.MustCompile(`(?i)__([A-Za-z0-9_-]+)_w\d+\.jpg$`)

// Meta resolves remote file metadata. *drive.Client implements it.
type Meta interface {
	GetItem(ctx context.Context, fileID string) (*drive.Item, error)
}

// Plan is the set of original fetches derived from a preview tree.
type Plan struct {
	Tasks []models.FetchTask

	// Matched counts preview files found; Existing counts those whose
	// original is already present.
	Matched  int
	Existing int
}

// Converter plans original fetches for preview files under a directory.
type Converter struct {
	meta      Meta
	log       *logging.Logger
	overwrite bool
}

// New builds a Converter. With overwrite set, originals already on disk
// are re-planned instead of skipped.
func New(meta Meta, log *logging.Logger, overwrite bool) *Converter {
	return &Converter{meta: meta, log: log, overwrite: overwrite}
}

// Scan walks dir recursively and builds the conversion plan. Preview
// files whose metadata cannot be fetched still get a task with the
// default .jpg extension, matching how they were stored.
func (c *Converter) Scan(ctx context.Context, dir string) (*Plan, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}

	plan := &Plan{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			return nil
		}
		if d.IsDir() {
			return ctx.Err()
		}
		m := previewPattern.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		plan.Matched++
		if task, ok := c.planPreview(ctx, path, m[1]); ok {
			plan.Tasks = append(plan.Tasks, task)
		} else {
			plan.Existing++
		}
		return ctx.Err()
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return plan, nil
}

// planPreview builds the original-fetch task for one preview file.
// Returns ok=false when the original is already on disk.
func (c *Converter) planPreview(ctx context.Context, previewPath, fileID string) (models.FetchTask, bool) {
	extOut := ".jpg"
	expectedSize := int64(-1)
	remoteName := fileID

	item, err := c.meta.GetItem(ctx, fileID)
	if err != nil {
		// Extension resolution is best effort, like the preview itself.
		c.log.Debug().Err(err).Str("file_id", fileID).Msg("Could not query remote extension")
	} else {
		remoteName = item.Name
		expectedSize = item.Size
		if ext := filepath.Ext(item.Name); ext != "" {
			extOut = ext
		} else if item.FileExtension != "" {
			extOut = "." + item.FileExtension
		}
	}

	base := previewPattern.ReplaceAllString(filepath.Base(previewPath), "__"+fileID)
	filename := base + extOut
	targetDir := filepath.Dir(previewPath)

	if !c.overwrite {
		if _, err := os.Stat(filepath.Join(targetDir, filename)); err == nil {
			c.log.Info().Str("target", filename).Msg("Already have original")
			return models.FetchTask{}, false
		}
	}

	task := models.NewFetchTask(fileID, models.MediaImage, models.VariantOriginal)
	task.Name = remoteName
	task.TargetDir = targetDir
	task.Filename = filename
	task.ExpectedSize = expectedSize
	task.RootLabel = rootLabel(targetDir)
	task.FolderKey = targetDir
	return task, true
}

func rootLabel(dir string) string {
	base := filepath.Base(dir)
	if base == "." || strings.TrimSpace(base) == "" {
		return dir
	}
	return base
}
