// Package buffers pools the large copy buffers used when streaming
// response bodies to disk, so concurrent workers reuse allocations
// instead of churning the garbage collector.
package buffers

import (
	"sync"

	"github.com/ontahood/drivefetch/internal/constants"
)

var copyPool = sync.Pool{
	New: func() any {
		buf := make([]byte, constants.CopyChunkSize)
		return &buf
	},
}

// GetCopyBuffer retrieves a copy buffer from the pool. Return it with
// PutCopyBuffer when done.
//
//	buf := buffers.GetCopyBuffer()
//	defer buffers.PutCopyBuffer(buf)
//	n, err := body.Read(*buf)
func GetCopyBuffer() *[]byte {
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer to the pool. Only full-size buffers
// are pooled; the buffer must not be used afterwards.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.CopyChunkSize {
		copyPool.Put(buf)
	}
}
