package progress

import (
	"sync"
	"time"

	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/events"
	"github.com/ontahood/drivefetch/internal/models"
)

// Collector periodically snapshots the shared run counters and publishes
// them on the event bus, so presentation code reads coalesced totals
// instead of chasing every worker increment.
type Collector struct {
	totals   *models.RunTotals
	bus      *events.Bus
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewCollector builds a collector; interval <= 0 selects the default.
func NewCollector(totals *models.RunTotals, bus *events.Bus, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = constants.SnapshotInterval
	}
	return &Collector{
		totals:   totals,
		bus:      bus,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the snapshot loop.
func (c *Collector) Start() {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.publish()
			}
		}
	}()
}

// Stop halts the loop and publishes one final snapshot so subscribers
// always see the end-of-run totals.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
		c.publish()
	})
}

func (c *Collector) publish() {
	c.bus.Publish(&events.SnapshotEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventSnapshot, Time: time.Now()},
		Totals:    c.totals.Snapshot(),
	})
}
