// Package scheduler dispatches fetch tasks to a bounded worker pool and
// tracks every task to a terminal state. At most N transfers are in
// flight; cancellation is honored before a worker ever picks a task up,
// and a transfer that already started runs to completion.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ontahood/drivefetch/internal/events"
	"github.com/ontahood/drivefetch/internal/fetch"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
)

// Fetcher performs one task. *fetch.Engine implements it.
type Fetcher interface {
	Fetch(ctx context.Context, task models.FetchTask, onProgress fetch.ProgressFunc) (fetch.Outcome, error)
}

// Stats summarizes a finished run.
type Stats struct {
	Completed int
	Skipped   int
	Failed    int
	Cancelled int

	BytesWritten int64
}

// Scheduler runs tasks through a worker pool.
type Scheduler struct {
	fetcher Fetcher
	log     *logging.Logger
	bus     *events.Bus
	totals  *models.RunTotals
	workers int

	mu          sync.Mutex
	states      map[string]models.TaskState
	outstanding map[string]int
	summaries   map[string]*models.FolderSummary
}

// New builds a Scheduler. bus may be nil when no presentation layer is
// attached.
func New(fetcher Fetcher, log *logging.Logger, bus *events.Bus, totals *models.RunTotals, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		fetcher: fetcher,
		log:     log,
		bus:     bus,
		totals:  totals,
		workers: workers,
		states:  make(map[string]models.TaskState),
	}
}

// Run executes all tasks and blocks until every one has reached a
// terminal state. summaries maps folder keys to the per-root accounting
// built during prescan; each summary is published once the last task
// from its root finishes. Roots without pending tasks publish
// immediately.
//
// Cancelling ctx stops new dispatch at once; transfers already in
// flight are detached from the run context and finish naturally, with
// Run blocking until they have.
func (s *Scheduler) Run(ctx context.Context, tasks []models.FetchTask, summaries map[string]*models.FolderSummary) Stats {
	s.mu.Lock()
	s.summaries = summaries
	s.outstanding = make(map[string]int, len(summaries))
	for _, task := range tasks {
		s.states[task.TaskID] = models.TaskQueued
		s.outstanding[task.FolderKey]++
	}
	s.mu.Unlock()

	// Roots where everything already existed locally have nothing
	// outstanding; their summaries are final now.
	for key, summary := range summaries {
		s.mu.Lock()
		pending := s.outstanding[key]
		s.mu.Unlock()
		if pending == 0 && summary != nil {
			s.publishSummary(*summary)
		}
	}

	for _, task := range tasks {
		s.publishTask(events.EventTaskQueued, task, 0, task.ExpectedSize, 0, nil)
	}

	semaphore := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var stats Stats
	var statsMu sync.Mutex

	for _, task := range tasks {
		wg.Add(1)
		go func(task models.FetchTask) {
			defer wg.Done()

			// Cancellation wins over dequeue: a task that has not
			// started yet never starts.
			select {
			case <-ctx.Done():
				s.finishTask(task, models.TaskCancelled, fetch.Outcome{}, ctx.Err())
				statsMu.Lock()
				stats.Cancelled++
				statsMu.Unlock()
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			if err := ctx.Err(); err != nil {
				s.finishTask(task, models.TaskCancelled, fetch.Outcome{}, err)
				statsMu.Lock()
				stats.Cancelled++
				statsMu.Unlock()
				return
			}

			s.setState(task.TaskID, models.TaskActive)
			s.publishTask(events.EventTaskStarted, task, 0, task.ExpectedSize, 0, nil)

			// Past this point the task is committed: the transfer gets
			// a context detached from run cancellation and finishes on
			// its own terms. Cancellation only gates dequeue above.
			var written atomic.Int64
			outcome, err := s.fetcher.Fetch(context.WithoutCancel(ctx), task, func(delta int64) {
				written.Add(delta)
				s.totals.BytesWritten.Add(delta)
				s.publishTask(events.EventTaskProgress, task, written.Load(), task.ExpectedSize, 0, nil)
			})

			statsMu.Lock()
			switch {
			case err == nil && outcome.Skipped:
				stats.Skipped++
			case err == nil:
				stats.Completed++
				stats.BytesWritten += outcome.Bytes
			default:
				stats.Failed++
			}
			statsMu.Unlock()

			switch {
			case err == nil && outcome.Skipped:
				s.finishTask(task, models.TaskSkipped, outcome, nil)
			case err == nil:
				s.finishTask(task, models.TaskCompleted, outcome, nil)
			default:
				s.log.Error().Err(err).
					Str("file", task.Filename).
					Str("root", task.RootLabel).
					Msg("Task failed")
				s.finishTask(task, models.TaskFailed, outcome, err)
			}
		}(task)
	}

	wg.Wait()
	return stats
}

// State returns the tracked state of a task, or "" if unknown.
func (s *Scheduler) State(taskID string) models.TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[taskID]
}

func (s *Scheduler) setState(taskID string, state models.TaskState) {
	s.mu.Lock()
	s.states[taskID] = state
	s.mu.Unlock()
}

// finishTask records a terminal state, updates run totals, publishes
// the lifecycle event, and emits the folder summary when this was the
// root's last outstanding task.
func (s *Scheduler) finishTask(task models.FetchTask, state models.TaskState, outcome fetch.Outcome, err error) {
	s.setState(task.TaskID, state)

	switch state {
	case models.TaskCompleted:
		s.totals.AddFetched(task.Kind)
		s.publishTask(events.EventTaskCompleted, task, outcome.Bytes, task.ExpectedSize, outcome.Retries, nil)
	case models.TaskSkipped:
		s.totals.AddSkipped(task.Kind)
		s.publishTask(events.EventTaskSkipped, task, 0, task.ExpectedSize, 0, nil)
	case models.TaskFailed:
		s.totals.AddFailed(task.Kind)
		s.publishTask(events.EventTaskFailed, task, outcome.Bytes, task.ExpectedSize, outcome.Retries, err)
	case models.TaskCancelled:
		s.publishTask(events.EventTaskCancelled, task, outcome.Bytes, task.ExpectedSize, outcome.Retries, err)
	}

	var done *models.FolderSummary
	s.mu.Lock()
	if summary, ok := s.summaries[task.FolderKey]; ok {
		if state == models.TaskFailed {
			summary.Failed++
		}
		s.outstanding[task.FolderKey]--
		if s.outstanding[task.FolderKey] == 0 {
			copied := *summary
			done = &copied
		}
	}
	s.mu.Unlock()

	if done != nil {
		s.publishSummary(*done)
	}
}

func (s *Scheduler) publishTask(t events.EventType, task models.FetchTask, written, total int64, retries int, err error) {
	if s.bus == nil {
		return
	}
	s.bus.PublishTask(t, task, written, total, retries, err)
}

func (s *Scheduler) publishSummary(summary models.FolderSummary) {
	s.log.Info().
		Str("root", summary.RootLabel).
		Int64("images", summary.Images).
		Int64("videos", summary.Videos).
		Int64("failed", summary.Failed).
		Msg("Folder finished")
	if s.bus != nil {
		s.bus.PublishFolderSummary(summary)
	}
}
