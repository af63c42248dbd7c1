package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ontahood/drivefetch/internal/config"
	"github.com/ontahood/drivefetch/internal/httpx"
)

// Default endpoints for raw content. Overridable for tests.
const (
	defaultThumbnailBase = "https://drive.google.com/thumbnail"
	defaultContentBase   = "https://www.googleapis.com/drive/v3/files"
)

// Content performs raw HTTP transfers of previews and file content.
// It deliberately bypasses retryablehttp: the transfer engine drives
// retries itself so resume offsets can be recomputed between attempts.
type Content struct {
	hc *http.Client

	thumbnailBase string
	contentBase   string
}

// NewContent builds a content client over the tuned streaming transport.
func NewContent(ctx context.Context, cfg *config.Config, ts oauth2.TokenSource) (*Content, error) {
	hc, err := newAuthedTransferClient(ctx, cfg, ts)
	if err != nil {
		return nil, err
	}
	return &Content{
		hc:            hc,
		thumbnailBase: defaultThumbnailBase,
		contentBase:   defaultContentBase,
	}, nil
}

// NewContentWithClient builds a content client over an explicit HTTP
// client and endpoints. Used by tests.
func NewContentWithClient(hc *http.Client, thumbnailBase, contentBase string) *Content {
	return &Content{hc: hc, thumbnailBase: thumbnailBase, contentBase: contentBase}
}

// ThumbnailURL returns the server-side resize endpoint for a file at
// the given target width.
func (c *Content) ThumbnailURL(fileID string, width int) string {
	return fmt.Sprintf("%s?sz=w%d&id=%s", c.thumbnailBase, width, fileID)
}

// OpenPreview requests a width-bounded preview of an image. The
// returned size is the response length, or -1 when unknown.
//
// A 404 means the backend has not generated the thumbnail yet and is
// returned as a retryable *NotReadyError.
func (c *Content) OpenPreview(ctx context.Context, fileID string, width int) (io.ReadCloser, int64, error) {
	url := c.ThumbnailURL(fileID, width)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, resp.ContentLength, nil
	case http.StatusNotFound:
		drainClose(resp)
		return nil, 0, &NotReadyError{FileID: fileID}
	default:
		drainClose(resp)
		return nil, 0, &httpx.StatusError{StatusCode: resp.StatusCode, URL: url}
	}
}

// OpenContent requests a file's content starting at offset. The
// returned size is the total size of the whole file when the server
// reports one, -1 otherwise.
//
// A 416 response means offset is at or past EOF; the caller gets
// ErrRangeComplete and should treat the local file as complete.
func (c *Content) OpenContent(ctx context.Context, fileID string, offset int64) (io.ReadCloser, int64, error) {
	url := fmt.Sprintf("%s/%s?alt=media&supportsAllDrives=true", c.contentBase, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// A 200 to a ranged request means the server ignored the Range
		// header and is sending the whole file. Discard the prefix the
		// caller already has so its append stays correct.
		if offset > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				resp.Body.Close()
				return nil, 0, err
			}
		}
		return resp.Body, resp.ContentLength, nil
	case http.StatusPartialContent:
		return resp.Body, totalFromContentRange(resp.Header.Get("Content-Range"), resp.ContentLength, offset), nil
	case http.StatusRequestedRangeNotSatisfiable:
		drainClose(resp)
		return nil, 0, ErrRangeComplete
	default:
		drainClose(resp)
		return nil, 0, &httpx.StatusError{StatusCode: resp.StatusCode, URL: url}
	}
}

// totalFromContentRange extracts the full size from a Content-Range
// header ("bytes 100-999/1000"). Falls back to offset plus the
// remaining length when the header is absent or has an unknown total.
func totalFromContentRange(header string, contentLength, offset int64) int64 {
	if i := strings.LastIndexByte(header, '/'); i >= 0 {
		if total, err := strconv.ParseInt(header[i+1:], 10, 64); err == nil && total >= 0 {
			return total
		}
	}
	if contentLength >= 0 {
		return offset + contentLength
	}
	return -1
}

// drainClose discards a response body so the connection can be reused.
func drainClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
