package models

import (
	"path/filepath"

	"github.com/google/uuid"
)

// Variant selects which rendition of a file a task fetches.
type Variant string

const (
	// VariantPreview is a server-side width-bounded image rendition.
	VariantPreview Variant = "preview"
	// VariantOriginal is the full-fidelity file content.
	VariantOriginal Variant = "original"
)

// FetchTask is one unit of download work. Tasks are immutable after creation
// and safe to hand to a worker; retries inside the transfer engine reuse the
// same task.
type FetchTask struct {
	TaskID    string
	FileID    string
	Name      string // original remote display name
	Kind      MediaKind
	Variant   Variant
	TargetDir string // absolute local directory
	Filename  string // final filename inside TargetDir
	// ExpectedSize is the remote-declared byte size, or an estimate for
	// previews; -1 when unknown.
	ExpectedSize int64
	RootLabel    string
	// FolderKey groups tasks for per-folder summary accounting. All tasks
	// derived from one scan root share a key.
	FolderKey string
}

// NewFetchTask assigns a unique task ID; remaining fields are set by the
// prescan phase.
func NewFetchTask(fileID string, kind MediaKind, variant Variant) FetchTask {
	return FetchTask{
		TaskID:  uuid.New().String(),
		FileID:  fileID,
		Kind:    kind,
		Variant: variant,
	}
}

// TargetPath returns the final local path for the task.
func (t FetchTask) TargetPath() string {
	return filepath.Join(t.TargetDir, t.Filename)
}

// TaskState tracks a task through the scheduler.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskSkipped   TaskState = "skipped"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// IsTerminal reports whether the state is a terminal status.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskSkipped, TaskFailed, TaskCancelled:
		return true
	}
	return false
}
