package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/ontahood/drivefetch/internal/events"
	"github.com/ontahood/drivefetch/internal/models"
)

// FetchUI renders the fetch phase: one overall bar counting tasks plus a
// live bar per in-flight download with a known size. It is driven
// entirely by bus events, so the pipeline never blocks on rendering.
type FetchUI struct {
	progress   *mpb.Progress
	overall    *mpb.Bar
	bars       map[string]*taskBar // taskID -> bar, touched only by Run
	isTerminal bool
	totalTasks int
	written    atomic.Int64
	failed     int
}

// taskBar is one file's live download bar.
type taskBar struct {
	bar        *mpb.Bar
	name       string
	target     string
	size       int64
	retries    int
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
}

// NewFetchUI builds the display for a run of totalTasks tasks. On a
// non-terminal stderr all bars are suppressed and only plain text
// remains.
func NewFetchUI(totalTasks int) *FetchUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		enableANSI(os.Stderr)
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	u := &FetchUI{
		progress:   p,
		bars:       make(map[string]*taskBar),
		isTerminal: isTerminal,
		totalTasks: totalTasks,
	}

	if isTerminal && totalTasks > 0 {
		u.overall = p.New(int64(totalTasks),
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name("overall", decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Any(func(decor.Statistics) string {
					return humanBytes(u.written.Load())
				}, decor.WCSyncSpace),
			),
		)
	}
	return u
}

// Run consumes bus events until a run-done event arrives or the channel
// closes. Call from its own goroutine; Wait blocks until the bars have
// fully rendered.
func (u *FetchUI) Run(ch <-chan events.Event) {
	for ev := range ch {
		switch e := ev.(type) {
		case *events.TaskEvent:
			u.handleTask(e)
		case *events.FolderSummaryEvent:
			u.printSummary(e.Summary)
		case *events.SnapshotEvent:
			u.written.Store(e.Totals.BytesWritten)
		case *events.RunDoneEvent:
			u.written.Store(e.Totals.BytesWritten)
			u.finish()
			return
		}
	}
	u.finish()
}

func (u *FetchUI) handleTask(e *events.TaskEvent) {
	switch e.EventType {
	case events.EventTaskStarted:
		// Small fetches with unknown sizes only move the overall bar.
		if u.isTerminal && e.Total > 0 {
			u.addTaskBar(e)
		}
	case events.EventTaskProgress:
		if tb := u.bars[e.TaskID]; tb != nil {
			tb.update(e.Written, e.Retries)
		}
	case events.EventTaskCompleted:
		u.completeTask(e, nil)
	case events.EventTaskSkipped, events.EventTaskCancelled:
		u.bump()
		u.dropBar(e.TaskID)
	case events.EventTaskFailed:
		u.failed++
		u.completeTask(e, e.Err)
	}
}

func (u *FetchUI) addTaskBar(e *events.TaskEvent) {
	target := truncatePath(e.Name, 2)
	tb := &taskBar{
		name:       e.Name,
		target:     target,
		size:       e.Total,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}
	tb.bar = u.progress.New(e.Total,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				if tb.retries > 0 {
					return fmt.Sprintf("%s (retry %d)", target, tb.retries)
				}
				return target
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
			decor.Name("  ETA "),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
		mpb.BarRemoveOnComplete(),
	)
	u.bars[e.TaskID] = tb
}

// update feeds mpb at most every 300ms; the elapsed time is reported
// even when no bytes moved so speed and ETA stay honest.
func (tb *taskBar) update(written int64, retries int) {
	if retries > tb.retries {
		tb.retries = retries
		tb.bar.SetRefill(tb.lastBytes)
	}
	now := time.Now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed < 300*time.Millisecond {
		return
	}
	tb.bar.EwmaIncrBy(int(written-tb.lastBytes), elapsed)
	tb.lastBytes = written
	tb.lastUpdate = now
}

func (u *FetchUI) completeTask(e *events.TaskEvent, err error) {
	u.bump()
	tb := u.bars[e.TaskID]
	delete(u.bars, e.TaskID)

	if err == nil {
		if tb != nil {
			tb.bar.SetCurrent(tb.size)
			tb.bar.SetTotal(tb.size, true)
			elapsed := time.Since(tb.startTime)
			speed := float64(tb.size) / elapsed.Seconds() / (1024 * 1024)
			u.write(fmt.Sprintf("✓ %s (%s, %s, %.1f MiB/s)\n",
				tb.target, humanBytes(tb.size), elapsed.Round(time.Second), speed))
		}
		return
	}

	if tb != nil {
		tb.bar.Abort(true)
	}
	u.write(fmt.Sprintf("✗ %s: %v (after %d retries)\n", e.Name, err, e.Retries))
}

func (u *FetchUI) dropBar(taskID string) {
	if tb := u.bars[taskID]; tb != nil {
		tb.bar.Abort(true)
		delete(u.bars, taskID)
	}
}

func (u *FetchUI) bump() {
	if u.overall != nil {
		u.overall.Increment()
	}
}

func (u *FetchUI) printSummary(s models.FolderSummary) {
	u.write(fmt.Sprintf("── %s: %d images (%d already had), %d videos (%d already had), %d docs, %d failed\n",
		s.RootLabel,
		s.Images, s.ImagesExisting,
		s.Videos, s.VideosExisting,
		s.Docs, s.Failed))
}

func (u *FetchUI) finish() {
	for id := range u.bars {
		u.dropBar(id)
	}
	if u.overall != nil {
		u.overall.SetTotal(int64(u.totalTasks), true)
	}
}

// Wait blocks until all bars have rendered their final state.
func (u *FetchUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// LogWriter returns a writer that prints above the live bars, suitable
// for routing logger output through while the display is active.
func (u *FetchUI) LogWriter() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal reports whether bars are actually rendering.
func (u *FetchUI) IsTerminal() bool { return u.isTerminal }

// Failed returns how many tasks ended in failure.
func (u *FetchUI) Failed() int { return u.failed }

// write prints above the bars in terminal mode, plainly otherwise.
func (u *FetchUI) write(msg string) {
	if u.isTerminal && u.progress != nil {
		u.progress.Write([]byte(msg))
		return
	}
	fmt.Print(msg)
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
