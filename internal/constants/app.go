package constants

import "time"

// AppName is used for the support directory and user-facing messages.
const AppName = "drivefetch"

// Download defaults
const (
	// DefaultImageWidth - width of server-side resized image previews.
	DefaultImageWidth = 400

	// DefaultWorkers - bounded worker pool size for concurrent transfers.
	// Kept small to respect Drive API rate limits.
	DefaultWorkers = 3

	// MaxWorkers - hard cap on the worker pool size.
	MaxWorkers = 16

	// CopyChunkSize - buffer size used when streaming response bodies to disk.
	CopyChunkSize = 8 * 1024 * 1024

	// PartSuffix - suffix for in-progress download files. A file under its
	// final name is always complete.
	PartSuffix = ".part"
)

// Retry defaults
const (
	// DefaultMaxAttempts - attempts per task or listing call before the
	// failure is surfaced.
	DefaultMaxAttempts = 8

	// DefaultInitialDelay - base delay for exponential backoff.
	DefaultInitialDelay = 500 * time.Millisecond

	// DefaultMaxDelay - cap on backoff between retries.
	DefaultMaxDelay = 30 * time.Second
)

// Listing
const (
	// ListPageSize - page size for children-of-folder queries.
	ListPageSize = 1000

	// MaxShortcutHops - bound on shortcut-to-shortcut chain resolution.
	// Chains deeper than this are logged and skipped.
	MaxShortcutHops = 2
)

// Progress reporting
const (
	// SnapshotInterval - how often coalesced totals snapshots are delivered
	// to the presentation layer.
	SnapshotInterval = 500 * time.Millisecond

	// EventBusDefaultBuffer - buffered events per subscriber before
	// drop-oldest kicks in.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - cap on subscriber buffer size.
	EventBusMaxBuffer = 10000
)

// HTTP transport tuning
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 5 * time.Second

	// HTTPProxyWarmupTimeout bounds the initial request made to verify
	// proxy connectivity before a run starts.
	HTTPProxyWarmupTimeout = 15 * time.Second
)

// Thumbnail size estimation. A JPEG preview at width w and ~4:3 aspect is
// estimated at bytesPerPixel * w * 0.75w, clamped to a sane range.
const (
	ThumbEstimateMinBytes = 40 * 1024
	ThumbEstimateMaxBytes = 3 * 1024 * 1024
)
