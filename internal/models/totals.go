package models

import (
	"sync/atomic"
	"time"
)

// RunState is the terminal state of a prescan or fetch run.
type RunState string

const (
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
	RunFailed    RunState = "failed"
)

// RunTotals holds the shared counters mutated by prescan and by concurrent
// workers. All fields are atomics so workers never contend on a lock for
// counter updates. Discovered counts only ever increase during a run;
// a fresh aggregate is created per run, never shared across runs.
type RunTotals struct {
	ImagesDiscovered atomic.Int64
	VideosDiscovered atomic.Int64
	DocsDiscovered   atomic.Int64
	OtherDiscovered  atomic.Int64

	ImagesFetched atomic.Int64
	VideosFetched atomic.Int64
	DocsFetched   atomic.Int64

	ImagesSkipped atomic.Int64 // already present locally
	VideosSkipped atomic.Int64
	DocsSkipped   atomic.Int64

	ImagesFailed atomic.Int64
	VideosFailed atomic.Int64
	DocsFailed   atomic.Int64

	BytesExpected atomic.Int64
	BytesWritten  atomic.Int64

	started time.Time
}

// NewRunTotals returns a zeroed aggregate for a new run.
func NewRunTotals() *RunTotals {
	return &RunTotals{started: time.Now()}
}

// AddDiscovered bumps the discovered counter for a media kind.
func (t *RunTotals) AddDiscovered(kind MediaKind) {
	switch kind {
	case MediaImage:
		t.ImagesDiscovered.Add(1)
	case MediaVideo:
		t.VideosDiscovered.Add(1)
	case MediaDoc:
		t.DocsDiscovered.Add(1)
	default:
		t.OtherDiscovered.Add(1)
	}
}

// AddFetched bumps the fetched counter for a media kind.
func (t *RunTotals) AddFetched(kind MediaKind) {
	switch kind {
	case MediaImage:
		t.ImagesFetched.Add(1)
	case MediaVideo:
		t.VideosFetched.Add(1)
	case MediaDoc:
		t.DocsFetched.Add(1)
	}
}

// AddSkipped bumps the already-have counter for a media kind.
func (t *RunTotals) AddSkipped(kind MediaKind) {
	switch kind {
	case MediaImage:
		t.ImagesSkipped.Add(1)
	case MediaVideo:
		t.VideosSkipped.Add(1)
	case MediaDoc:
		t.DocsSkipped.Add(1)
	}
}

// AddFailed bumps the failed counter for a media kind.
func (t *RunTotals) AddFailed(kind MediaKind) {
	switch kind {
	case MediaImage:
		t.ImagesFailed.Add(1)
	case MediaVideo:
		t.VideosFailed.Add(1)
	case MediaDoc:
		t.DocsFailed.Add(1)
	}
}

// TotalsSnapshot is an immutable copy of the counters, safe to hand to a
// presentation layer.
type TotalsSnapshot struct {
	ImagesDiscovered int64
	VideosDiscovered int64
	DocsDiscovered   int64
	OtherDiscovered  int64

	ImagesFetched int64
	VideosFetched int64
	DocsFetched   int64

	ImagesSkipped int64
	VideosSkipped int64
	DocsSkipped   int64

	ImagesFailed int64
	VideosFailed int64
	DocsFailed   int64

	BytesExpected int64
	BytesWritten  int64

	Elapsed time.Duration
}

// Snapshot copies the current counter values.
func (t *RunTotals) Snapshot() TotalsSnapshot {
	return TotalsSnapshot{
		ImagesDiscovered: t.ImagesDiscovered.Load(),
		VideosDiscovered: t.VideosDiscovered.Load(),
		DocsDiscovered:   t.DocsDiscovered.Load(),
		OtherDiscovered:  t.OtherDiscovered.Load(),
		ImagesFetched:    t.ImagesFetched.Load(),
		VideosFetched:    t.VideosFetched.Load(),
		DocsFetched:      t.DocsFetched.Load(),
		ImagesSkipped:    t.ImagesSkipped.Load(),
		VideosSkipped:    t.VideosSkipped.Load(),
		DocsSkipped:      t.DocsSkipped.Load(),
		ImagesFailed:     t.ImagesFailed.Load(),
		VideosFailed:     t.VideosFailed.Load(),
		DocsFailed:       t.DocsFailed.Load(),
		BytesExpected:    t.BytesExpected.Load(),
		BytesWritten:     t.BytesWritten.Load(),
		Elapsed:          time.Since(t.started),
	}
}

// FolderSummary is the per-root accounting emitted once every task derived
// from that root has reached a terminal state (or at the end of prescan for
// discovery-only runs).
type FolderSummary struct {
	RootLabel string
	RootURL   string

	Images         int64
	ImagesExisting int64
	ImagesBytes    int64

	Videos         int64
	VideosExisting int64
	VideosBytes    int64

	Docs         int64
	DocsExisting int64
	DocsBytes    int64

	Failed int64
}
