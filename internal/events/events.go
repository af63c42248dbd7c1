// Package events carries pipeline progress to a presentation layer without
// ever blocking a worker. Delivery is fire-and-forget: subscriber channels
// are buffered, and events beyond the buffer are dropped and counted.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/models"
)

// EventType defines the kinds of events emitted by the pipeline.
type EventType string

const (
	EventTaskQueued    EventType = "task_queued"
	EventTaskStarted   EventType = "task_started"
	EventTaskProgress  EventType = "task_progress"
	EventTaskCompleted EventType = "task_completed"
	EventTaskSkipped   EventType = "task_skipped"
	EventTaskFailed    EventType = "task_failed"
	EventTaskCancelled EventType = "task_cancelled"

	EventFolderSummary EventType = "folder_summary"
	EventSnapshot      EventType = "snapshot"
	EventRunDone       EventType = "run_done"
)

// Event is the base interface for all pipeline events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// TaskEvent reports one task's lifecycle transition.
type TaskEvent struct {
	BaseEvent
	TaskID    string
	FileID    string
	Name      string
	Kind      models.MediaKind
	Variant   models.Variant
	RootLabel string
	Written   int64 // bytes written so far (progress) or in total (completed)
	Total     int64 // -1 when unknown
	Retries   int
	Err       error
}

// FolderSummaryEvent is emitted once all tasks derived from a scan root have
// reached a terminal state, and once per root at the end of prescan.
type FolderSummaryEvent struct {
	BaseEvent
	Summary models.FolderSummary
}

// SnapshotEvent carries a coalesced totals snapshot.
type SnapshotEvent struct {
	BaseEvent
	Totals models.TotalsSnapshot
}

// RunDoneEvent is the final event of a run, carrying the terminal state.
type RunDoneEvent struct {
	BaseEvent
	Totals models.TotalsSnapshot
	State  models.RunState
}

// Bus manages subscriptions and non-blocking publishing.
type Bus struct {
	subscribers map[EventType][]chan Event
	all         []chan Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
	dropped     atomic.Int64
}

// NewBus creates an event bus; bufferSize <= 0 selects the default.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type.
func (b *Bus) Subscribe(eventType EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to every event.
func (b *Bus) SubscribeAll() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, b.bufferSize)
	b.all = append(b.all, ch)
	return ch
}

// Publish delivers an event to all matching subscribers without blocking.
// A slow consumer loses events rather than stalling the pipeline.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Unsubscribe removes a channel obtained from Subscribe.
func (b *Bus) Unsubscribe(eventType EventType, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	subs := b.subscribers[eventType]
	for i, sub := range subs {
		if sub == ch {
			subs[i] = subs[len(subs)-1]
			b.subscribers[eventType] = subs[:len(subs)-1]
			break
		}
	}
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, channels := range b.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}
}

// Dropped returns how many events were discarded due to full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// PublishTask is a convenience for task lifecycle events.
func (b *Bus) PublishTask(t EventType, task models.FetchTask, written, total int64, retries int, err error) {
	b.Publish(&TaskEvent{
		BaseEvent: BaseEvent{EventType: t, Time: time.Now()},
		TaskID:    task.TaskID,
		FileID:    task.FileID,
		Name:      task.Name,
		Kind:      task.Kind,
		Variant:   task.Variant,
		RootLabel: task.RootLabel,
		Written:   written,
		Total:     total,
		Retries:   retries,
		Err:       err,
	})
}

// PublishFolderSummary is a convenience for folder summary events.
func (b *Bus) PublishFolderSummary(s models.FolderSummary) {
	b.Publish(&FolderSummaryEvent{
		BaseEvent: BaseEvent{EventType: EventFolderSummary, Time: time.Now()},
		Summary:   s,
	})
}

// PublishSnapshot is a convenience for coalesced totals snapshots.
func (b *Bus) PublishSnapshot(t models.TotalsSnapshot) {
	b.Publish(&SnapshotEvent{
		BaseEvent: BaseEvent{EventType: EventSnapshot, Time: time.Now()},
		Totals:    t,
	})
}

// PublishRunDone is a convenience for the terminal run event.
func (b *Bus) PublishRunDone(t models.TotalsSnapshot, state models.RunState) {
	b.Publish(&RunDoneEvent{
		BaseEvent: BaseEvent{EventType: EventRunDone, Time: time.Now()},
		Totals:    t,
		State:     state,
	})
}
