// Package drive wraps the Google Drive v3 API: authentication from an
// on-disk token, folder listing, item metadata, and raw content access
// for previews and originals.
package drive

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers.
var (
	// ErrBadFolderURL indicates a folder URL no ID could be extracted from.
	ErrBadFolderURL = errors.New("folder URL has no recognizable ID")

	// ErrNotAFolder indicates the resolved item is not a folder.
	ErrNotAFolder = errors.New("item is not a folder")

	// ErrRangeComplete indicates the server answered a range request with
	// 416: the local offset is at or past EOF and the file is complete.
	ErrRangeComplete = errors.New("requested range starts at end of file")
)

// AuthError indicates the stored token is missing, unreadable, or
// expired beyond refresh. The caller should direct the user to
// re-authenticate rather than retry.
type AuthError struct {
	Path string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (token %s): %v", e.Path, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotReadyError indicates content the backend has not produced yet,
// such as a thumbnail for a freshly uploaded image. Retryable.
type NotReadyError struct {
	FileID string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("content not ready for %s", e.FileID)
}

// Temporary marks the error as retryable for the backoff classifier.
func (e *NotReadyError) Temporary() bool { return true }
