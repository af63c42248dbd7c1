// Package progress renders pipeline progress on the terminal: a single
// bar for the scan phase, a multi-bar display for concurrent fetches,
// and a collector that turns shared counters into coalesced snapshot
// events.
package progress

import (
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// Reporter is a single-operation progress sink. The scan and convert
// phases drive one directly; the fetch phase uses FetchUI instead.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIReporter renders a single progress bar on stderr. A total of -1
// renders a spinner, which suits the scan phase where the amount of
// work is unknown until it is done.
type CLIReporter struct {
	bar *progressbar.ProgressBar
}

// NewCLIReporter creates a CLI progress reporter.
func NewCLIReporter() *CLIReporter {
	return &CLIReporter{}
}

// Start initializes the bar with a total size and description.
func (p *CLIReporter) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(total > 0),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to the current position.
func (p *CLIReporter) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the bar.
func (p *CLIReporter) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error prints an error below the bar.
func (p *CLIReporter) Error(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}
}

// SetDescription updates the bar label.
func (p *CLIReporter) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpReporter discards all progress. Used for quiet and non-TTY runs.
type NoOpReporter struct{}

func NewNoOpReporter() *NoOpReporter { return &NoOpReporter{} }

func (NoOpReporter) Start(total int64, description string) {}
func (NoOpReporter) Update(current int64)                  {}
func (NoOpReporter) Finish()                               {}
func (NoOpReporter) Error(err error)                       {}
func (NoOpReporter) SetDescription(desc string)            {}

// truncatePath keeps the last n components of a local path so bar
// labels stay readable.
func truncatePath(p string, n int) string {
	parts := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	if len(parts) <= n {
		return p
	}
	return ".../" + strings.Join(parts[len(parts)-n:], "/")
}
