package prescan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/httpx"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/util/sanitize"
)

// fakeDrive serves folder trees from memory and doubles as the root
// resolver.
type fakeDrive struct {
	mu       sync.Mutex
	children map[string][]drive.Item
	items    map[string]drive.Item

	// listErrs maps folderID to a single injected listing error.
	listErrs map[string]error
}

func (f *fakeDrive) ListChildren(ctx context.Context, folderID, pageToken string) ([]drive.Item, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErrs[folderID]; err != nil {
		return nil, "", err
	}
	return f.children[folderID], "", nil
}

func (f *fakeDrive) GetItem(ctx context.Context, fileID string) (*drive.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[fileID]
	if !ok {
		return nil, &httpx.StatusError{StatusCode: 404, URL: "fake://" + fileID}
	}
	return &item, nil
}

func (f *fakeDrive) ResolveFolder(ctx context.Context, folderID string) (*drive.Item, error) {
	item, err := f.GetItem(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !item.IsFolder() {
		return nil, drive.ErrNotAFolder
	}
	return item, nil
}

func folder(id, name string) drive.Item {
	return drive.Item{ID: id, Name: name, MIMEType: drive.MIMEFolder, Size: -1}
}

func file(id, name, mime string, size int64) drive.Item {
	return drive.Item{ID: id, Name: name, MIMEType: mime, Size: size}
}

func testLog() *logging.Logger { return logging.New(io.Discard) }

// fastRetry keeps injected-failure tests from sleeping.
func fastRetry() httpx.Config {
	return httpx.Config{MaxAttempts: 2, InitialDelay: 0, MaxDelay: 0}
}

func newScanner(fd *fakeDrive, totals *models.RunTotals, opts Options) *Scanner {
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	if opts.ImageWidth == 0 {
		opts.ImageWidth = 400
	}
	s := New(fd, fd, testLog(), totals, opts)
	s.Retry = fastRetry()
	return s
}

const rootURL = "https://drive.google.com/drive/folders/root1"

func singleRoot(files ...drive.Item) *fakeDrive {
	return &fakeDrive{
		children: map[string][]drive.Item{"root1": files},
		items:    map[string]drive.Item{"root1": folder("root1", "Vacation")},
	}
}

func taskByFile(t *testing.T, plan *Plan, fileID string) models.FetchTask {
	t.Helper()
	for _, task := range plan.Tasks {
		if task.FileID == fileID {
			return task
		}
	}
	t.Fatalf("no task for file %s; have %d tasks", fileID, len(plan.Tasks))
	return models.FetchTask{}
}

func TestScanBuildsPreviewAndVideoTasks(t *testing.T) {
	fd := singleRoot(
		file("img1", "beach.jpg", "image/jpeg", 5_000_000),
		file("vid1", "surf.mov", "video/quicktime", 80_000_000),
		file("doc1", "notes.pdf", "application/pdf", 1000),
		file("other1", "app.exe", "application/octet-stream", 99),
	)
	out := t.TempDir()
	totals := models.NewRunTotals()
	s := newScanner(fd, totals, Options{OutputDir: out, DownloadVideos: true, Workers: 2})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.RootErrors) != 0 {
		t.Fatalf("unexpected root errors: %v", plan.RootErrors)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2 (doc excluded by default, other never tasked)", len(plan.Tasks))
	}

	wantDir := filepath.Join(out, sanitize.Label(rootURL, 160), "Vacation")

	img := taskByFile(t, plan, "img1")
	if img.Variant != models.VariantPreview {
		t.Errorf("image variant = %s, want preview", img.Variant)
	}
	if img.Filename != "beach__img1_w400.jpg" {
		t.Errorf("image filename = %q", img.Filename)
	}
	if img.TargetDir != wantDir {
		t.Errorf("image dir = %q, want %q", img.TargetDir, wantDir)
	}
	if img.ExpectedSize != -1 {
		t.Errorf("preview expected size = %d, want -1", img.ExpectedSize)
	}

	vid := taskByFile(t, plan, "vid1")
	if vid.Variant != models.VariantOriginal {
		t.Errorf("video variant = %s, want original", vid.Variant)
	}
	if vid.Filename != "surf__vid1.mov" {
		t.Errorf("video filename = %q", vid.Filename)
	}
	if vid.ExpectedSize != 80_000_000 {
		t.Errorf("video expected size = %d", vid.ExpectedSize)
	}
	if vid.FolderKey != rootURL {
		t.Errorf("folder key = %q, want root URL", vid.FolderKey)
	}

	sum := plan.Summaries[rootURL]
	if sum == nil {
		t.Fatal("missing summary for root URL")
	}
	if sum.Images != 1 || sum.Videos != 1 || sum.Docs != 0 {
		t.Errorf("summary counts = %d/%d/%d, want 1/1/0", sum.Images, sum.Videos, sum.Docs)
	}
	if sum.VideosBytes != 80_000_000 {
		t.Errorf("video bytes = %d", sum.VideosBytes)
	}
	if sum.ImagesBytes != EstimateThumbnailBytes(400) {
		t.Errorf("image bytes = %d, want thumbnail estimate", sum.ImagesBytes)
	}

	if got := totals.ImagesDiscovered.Load(); got != 1 {
		t.Errorf("images discovered = %d", got)
	}
	// The docs-off gate reclassifies the PDF as other.
	if got := totals.OtherDiscovered.Load(); got != 2 {
		t.Errorf("other discovered = %d, want 2", got)
	}
	wantBytes := EstimateThumbnailBytes(400) + 80_000_000
	if got := totals.BytesExpected.Load(); got != wantBytes {
		t.Errorf("bytes expected = %d, want %d", got, wantBytes)
	}
}

func TestScanOriginalImages(t *testing.T) {
	fd := singleRoot(
		file("img1", "beach.jpg", "image/jpeg", 5_000_000),
		drive.Item{ID: "img2", Name: "noext", MIMEType: "image/x-canon-cr2", FileExtension: "cr2", Size: 30_000_000},
	)
	totals := models.NewRunTotals()
	s := newScanner(fd, totals, Options{OutputDir: t.TempDir(), OriginalImages: true})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	img := taskByFile(t, plan, "img1")
	if img.Variant != models.VariantOriginal {
		t.Errorf("variant = %s, want original", img.Variant)
	}
	if img.Filename != "beach__img1.jpg" {
		t.Errorf("filename = %q", img.Filename)
	}
	if img.ExpectedSize != 5_000_000 {
		t.Errorf("expected size = %d", img.ExpectedSize)
	}

	raw := taskByFile(t, plan, "img2")
	if raw.Filename != "noext__img2.cr2" {
		t.Errorf("extensionless filename = %q", raw.Filename)
	}
}

func TestScanExistingFilesSkipped(t *testing.T) {
	fd := singleRoot(
		file("img1", "beach.jpg", "image/jpeg", 5_000_000),
		file("img2", "dune.jpg", "image/jpeg", 4_000_000),
		file("vid1", "surf.mp4", "video/mp4", 10),
	)
	out := t.TempDir()
	dir := filepath.Join(out, sanitize.Label(rootURL, 160), "Vacation")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Preview present (any size counts: preview sizes are unknowable).
	if err := os.WriteFile(filepath.Join(dir, "beach__img1_w400.jpg"), []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Video present with the right size.
	if err := os.WriteFile(filepath.Join(dir, "surf__vid1.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	totals := models.NewRunTotals()
	s := newScanner(fd, totals, Options{OutputDir: out, DownloadVideos: true})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("tasks = %d, want only the missing image", len(plan.Tasks))
	}
	if plan.Tasks[0].FileID != "img2" {
		t.Errorf("task file = %s, want img2", plan.Tasks[0].FileID)
	}

	sum := plan.Summaries[rootURL]
	if sum.ImagesExisting != 1 || sum.VideosExisting != 1 {
		t.Errorf("existing = %d images / %d videos, want 1/1", sum.ImagesExisting, sum.VideosExisting)
	}
	// Existing files contribute nothing to the byte estimate.
	if got := totals.BytesExpected.Load(); got != EstimateThumbnailBytes(400) {
		t.Errorf("bytes expected = %d, want one thumbnail estimate", got)
	}
}

func TestScanSizeMismatchRefetched(t *testing.T) {
	fd := singleRoot(file("vid1", "surf.mp4", "video/mp4", 100))
	out := t.TempDir()
	dir := filepath.Join(out, sanitize.Label(rootURL, 160), "Vacation")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "surf__vid1.mp4"), []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: out, DownloadVideos: true})
	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("tasks = %d, want the wrong-size video re-planned", len(plan.Tasks))
	}
	if sum := plan.Summaries[rootURL]; sum.VideosExisting != 0 {
		t.Errorf("videos existing = %d, want 0", sum.VideosExisting)
	}
}

func TestScanVideosDisabledStillCounted(t *testing.T) {
	fd := singleRoot(
		file("vid1", "surf.mp4", "video/mp4", 10),
		file("vid2", "dive.mp4", "video/mp4", 20),
	)
	out := t.TempDir()
	dir := filepath.Join(out, sanitize.Label(rootURL, 160), "Vacation")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "surf__vid1.mp4"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	totals := models.NewRunTotals()
	s := newScanner(fd, totals, Options{OutputDir: out, DownloadVideos: false})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Fatalf("tasks = %d, want none with videos disabled", len(plan.Tasks))
	}
	sum := plan.Summaries[rootURL]
	if sum.Videos != 2 || sum.VideosExisting != 1 {
		t.Errorf("videos = %d existing = %d, want 2/1", sum.Videos, sum.VideosExisting)
	}
	if got := totals.BytesExpected.Load(); got != 0 {
		t.Errorf("bytes expected = %d, want 0", got)
	}
}

func TestScanDocsEnabledExtensions(t *testing.T) {
	fd := singleRoot(
		file("d1", "notes.pdf", "application/pdf", 100),
		file("d2", "report", "application/pdf", 200),
		file("d3", "readme", "text/plain", 300),
		drive.Item{ID: "d4", Name: "ledger", MIMEType: "application/vnd.ms-excel", FileExtension: "xls", Size: 400},
	)
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: t.TempDir(), DownloadDocs: true})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := map[string]string{
		"d1": "notes__d1.pdf",
		"d2": "report__d2.pdf",
		"d3": "readme__d3.txt",
		"d4": "ledger__d4.xls",
	}
	for id, name := range want {
		if got := taskByFile(t, plan, id).Filename; got != name {
			t.Errorf("doc %s filename = %q, want %q", id, got, name)
		}
	}
	if sum := plan.Summaries[rootURL]; sum.Docs != 4 {
		t.Errorf("docs = %d, want 4", sum.Docs)
	}
}

func TestScanNestedFolders(t *testing.T) {
	fd := &fakeDrive{
		children: map[string][]drive.Item{
			"root1": {folder("sub1", "2019/Summer")},
			"sub1":  {file("img1", "camp.jpg", "image/jpeg", 100)},
		},
		items: map[string]drive.Item{"root1": folder("root1", "Vacation")},
	}
	out := t.TempDir()
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: out})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	img := taskByFile(t, plan, "img1")
	// The slash in the folder name must not create an extra level.
	want := filepath.Join(out, sanitize.Label(rootURL, 160), "Vacation", "2019_Summer")
	if img.TargetDir != want {
		t.Errorf("dir = %q, want %q", img.TargetDir, want)
	}
}

func TestScanBadURL(t *testing.T) {
	fd := singleRoot()
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: t.TempDir()})

	plan, err := s.Scan(context.Background(), []string{"not a folder url at all"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.RootErrors) != 1 {
		t.Fatalf("root errors = %d, want 1", len(plan.RootErrors))
	}
	if !errors.Is(plan.RootErrors[0].Err, drive.ErrBadFolderURL) {
		t.Errorf("err = %v, want ErrBadFolderURL", plan.RootErrors[0].Err)
	}
	if len(plan.Summaries) != 0 {
		t.Errorf("summaries = %d, want 0", len(plan.Summaries))
	}
}

func TestScanRootNotAFolder(t *testing.T) {
	fd := &fakeDrive{
		items: map[string]drive.Item{"root1": file("root1", "movie.mp4", "video/mp4", 1)},
	}
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: t.TempDir()})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.RootErrors) != 1 || !errors.Is(plan.RootErrors[0].Err, drive.ErrNotAFolder) {
		t.Fatalf("root errors = %v, want ErrNotAFolder", plan.RootErrors)
	}
}

func TestScanPartialListingFailure(t *testing.T) {
	fd := &fakeDrive{
		children: map[string][]drive.Item{
			"root1": {
				folder("good", "Good"),
				folder("bad", "Broken"),
			},
			"good": {file("img1", "ok.jpg", "image/jpeg", 1)},
		},
		items:    map[string]drive.Item{"root1": folder("root1", "Vacation")},
		listErrs: map[string]error{"bad": &httpx.StatusError{StatusCode: 403, URL: "fake://bad"}},
	}
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: t.TempDir()})

	plan, err := s.Scan(context.Background(), []string{rootURL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Errorf("tasks = %d, want the reachable image", len(plan.Tasks))
	}
	if len(plan.ListingFailures) != 1 {
		t.Fatalf("listing failures = %d, want 1", len(plan.ListingFailures))
	}
	if plan.ListingFailures[0].Path != "Broken" {
		t.Errorf("failure path = %q", plan.ListingFailures[0].Path)
	}
}

func TestScanMultipleRoots(t *testing.T) {
	fd := &fakeDrive{
		children: map[string][]drive.Item{
			"root1": {file("a", "a.jpg", "image/jpeg", 1)},
			"root2": {file("b", "b.jpg", "image/jpeg", 2)},
		},
		items: map[string]drive.Item{
			"root1": folder("root1", "First"),
			"root2": folder("root2", "Second"),
		},
	}
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: t.TempDir(), Workers: 4})

	url2 := "https://drive.google.com/drive/folders/root2"
	plan, err := s.Scan(context.Background(), []string{rootURL, url2})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(plan.Tasks))
	}
	if len(plan.Summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(plan.Summaries))
	}
	if plan.Summaries[rootURL].RootLabel != "First" || plan.Summaries[url2].RootLabel != "Second" {
		t.Errorf("summary labels = %q / %q",
			plan.Summaries[rootURL].RootLabel, plan.Summaries[url2].RootLabel)
	}
	if got := taskByFile(t, plan, "b").RootLabel; got != "Second" {
		t.Errorf("task root label = %q, want Second", got)
	}
}

func TestScanCancelled(t *testing.T) {
	files := make([]drive.Item, 50)
	for i := range files {
		files[i] = file(fmt.Sprintf("f%d", i), fmt.Sprintf("f%d.jpg", i), "image/jpeg", 1)
	}
	fd := singleRoot(files...)
	s := newScanner(fd, models.NewRunTotals(), Options{OutputDir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Scan(ctx, []string{rootURL}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEstimateThumbnailBytes(t *testing.T) {
	tests := []struct {
		width int
		want  int64
	}{
		{16, constants.ThumbEstimateMinBytes},   // tiny widths clamp up
		{400, constants.ThumbEstimateMinBytes},  // 22500 raw, below the floor
		{1600, 360000},                          // 1600x1200 * 0.1875
		{8192, constants.ThumbEstimateMaxBytes}, // huge widths clamp down
	}
	for _, tt := range tests {
		if got := EstimateThumbnailBytes(tt.width); got != tt.want {
			t.Errorf("EstimateThumbnailBytes(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}
