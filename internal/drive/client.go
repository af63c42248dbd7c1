package drive

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/ontahood/drivefetch/internal/config"
	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/httpx"
)

// Drive MIME types with special meaning for traversal.
const (
	MIMEFolder   = "application/vnd.google-apps.folder"
	MIMEShortcut = "application/vnd.google-apps.shortcut"
)

// Metadata fields requested on every listing and get call.
const (
	listFields = "nextPageToken, files(id, name, mimeType, fileExtension, size, shortcutDetails(targetId, targetMimeType))"
	itemFields = "id, name, mimeType, fileExtension, size, shortcutDetails(targetId, targetMimeType)"
)

// Item is the subset of Drive file metadata the tool works with.
type Item struct {
	ID            string
	Name          string
	MIMEType      string
	FileExtension string

	// Size is the content size in bytes, or -1 when Drive does not
	// report one (folders, Workspace documents).
	Size int64

	// Shortcut target metadata, set only for shortcut items.
	ShortcutTargetID   string
	ShortcutTargetMIME string
}

// IsFolder reports whether the item is a plain folder.
func (it *Item) IsFolder() bool { return it.MIMEType == MIMEFolder }

// IsShortcut reports whether the item is a shortcut.
func (it *Item) IsShortcut() bool { return it.MIMEType == MIMEShortcut }

// Lister is the metadata surface the walker and prescan depend on.
// *Client implements it against the real API; tests substitute fakes.
type Lister interface {
	// ListChildren returns one page of the children of folderID along
	// with the token for the next page ("" when done).
	ListChildren(ctx context.Context, folderID, pageToken string) ([]Item, string, error)

	// GetItem fetches metadata for a single file or folder.
	GetItem(ctx context.Context, fileID string) (*Item, error)
}

// Account identifies the authenticated user.
type Account struct {
	Email string
	Name  string
}

// Client talks to the Drive v3 API through an authenticated,
// retry-wrapped HTTP client.
type Client struct {
	svc *driveapi.Service
}

var _ Lister = (*Client)(nil)

// NewClient builds a metadata client. Listing and get calls go through
// a retryablehttp transport, so transient API failures are absorbed
// below the walker's own per-folder retry.
func NewClient(ctx context.Context, cfg *config.Config, ts oauth2.TokenSource) (*Client, error) {
	base, err := httpx.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = 4
	rc.RetryWaitMin = constants.DefaultInitialDelay
	rc.RetryWaitMax = constants.DefaultMaxDelay
	rc.Logger = nil

	authed := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, rc.StandardClient()), ts)

	svc, err := driveapi.NewService(ctx, option.WithHTTPClient(authed))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListChildren returns one page of the non-trashed children of folderID.
func (c *Client) ListChildren(ctx context.Context, folderID, pageToken string) ([]Item, string, error) {
	call := c.svc.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
		Fields(listFields).
		PageSize(constants.ListPageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Corpora("allDrives").
		OrderBy("name_natural").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("listing children of %s: %w", folderID, err)
	}

	items := make([]Item, 0, len(resp.Files))
	for _, f := range resp.Files {
		items = append(items, fromAPI(f))
	}
	return items, resp.NextPageToken, nil
}

// GetItem fetches metadata for a single file or folder.
func (c *Client) GetItem(ctx context.Context, fileID string) (*Item, error) {
	f, err := c.svc.Files.Get(fileID).
		Fields(itemFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("getting item %s: %w", fileID, err)
	}
	item := fromAPI(f)
	return &item, nil
}

// ResolveFolder verifies that folderID names an accessible folder and
// returns its metadata.
func (c *Client) ResolveFolder(ctx context.Context, folderID string) (*Item, error) {
	item, err := c.GetItem(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !item.IsFolder() {
		return nil, fmt.Errorf("%s (%s): %w", item.Name, item.MIMEType, ErrNotAFolder)
	}
	return item, nil
}

// About returns the authenticated account's identity.
func (c *Client) About(ctx context.Context) (*Account, error) {
	about, err := c.svc.About.Get().
		Fields("user(emailAddress,displayName)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetching account info: %w", err)
	}
	acct := &Account{}
	if about.User != nil {
		acct.Email = about.User.EmailAddress
		acct.Name = about.User.DisplayName
	}
	return acct, nil
}

func fromAPI(f *driveapi.File) Item {
	item := Item{
		ID:            f.Id,
		Name:          f.Name,
		MIMEType:      f.MimeType,
		FileExtension: f.FileExtension,
		Size:          f.Size,
	}
	// Drive-native types (folders, shortcuts, Docs editors files) carry
	// no binary size. For anything else a reported zero is a genuinely
	// empty file and keeps its exact-size check.
	if f.Size == 0 && strings.HasPrefix(f.MimeType, "application/vnd.google-apps.") {
		item.Size = -1
	}
	if f.ShortcutDetails != nil {
		item.ShortcutTargetID = f.ShortcutDetails.TargetId
		item.ShortcutTargetMIME = f.ShortcutDetails.TargetMimeType
	}
	return item
}

// newAuthedTransferClient wires the tuned streaming transport behind an
// oauth2 transport. Content requests do not use retryablehttp: the
// transfer engine owns retries so it can recompute resume offsets
// between attempts.
func newAuthedTransferClient(ctx context.Context, cfg *config.Config, ts oauth2.TokenSource) (*http.Client, error) {
	base, err := httpx.NewTransferClient(cfg)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts), nil
}
