package walk

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/httpx"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
)

// fakeLister serves a folder tree from memory, with optional paging and
// injected failures.
type fakeLister struct {
	mu       sync.Mutex
	children map[string][]drive.Item
	items    map[string]drive.Item
	pageSize int

	// failures maps folderID to a queue of errors returned before the
	// listing succeeds. An entry of errPermanent never succeeds.
	failures map[string][]error

	listCalls int
}

func (f *fakeLister) ListChildren(ctx context.Context, folderID, pageToken string) ([]drive.Item, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	if q := f.failures[folderID]; len(q) > 0 {
		err := q[0]
		f.failures[folderID] = q[1:]
		return nil, "", err
	}

	all := f.children[folderID]
	if f.pageSize <= 0 || len(all) <= f.pageSize {
		if pageToken != "" {
			start := parseToken(pageToken)
			return all[start:], "", nil
		}
		return all, "", nil
	}

	start := parseToken(pageToken)
	end := start + f.pageSize
	next := ""
	if end < len(all) {
		next = tokenFor(end)
	} else {
		end = len(all)
	}
	return all[start:end], next, nil
}

func (f *fakeLister) GetItem(ctx context.Context, fileID string) (*drive.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[fileID]
	if !ok {
		return nil, &httpx.StatusError{StatusCode: 404, URL: "fake://" + fileID}
	}
	return &item, nil
}

func parseToken(tok string) int {
	if tok == "" {
		return 0
	}
	n := 0
	for _, c := range tok {
		n = n*10 + int(c-'0')
	}
	return n
}

func tokenFor(i int) string {
	if i == 0 {
		return ""
	}
	s := ""
	for i > 0 {
		s = string(rune('0'+i%10)) + s
		i /= 10
	}
	return s
}

func file(id, name string, size int64) drive.Item {
	return drive.Item{ID: id, Name: name, MIMEType: "image/jpeg", FileExtension: "jpg", Size: size}
}

func folder(id, name string) drive.Item {
	return drive.Item{ID: id, Name: name, MIMEType: drive.MIMEFolder, Size: -1}
}

func shortcut(id, name, targetID, targetMIME string) drive.Item {
	return drive.Item{
		ID: id, Name: name, MIMEType: drive.MIMEShortcut, Size: -1,
		ShortcutTargetID: targetID, ShortcutTargetMIME: targetMIME,
	}
}

func fastWalker(l drive.Lister) *Walker {
	w := New(l, logging.New(io.Discard))
	w.Retry = httpx.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return w
}

func collect(t *testing.T, w *Walker, rootID, rootLabel string) ([]models.RemoteNode, error) {
	t.Helper()
	var nodes []models.RemoteNode
	err := w.Walk(context.Background(), rootID, rootLabel, func(n models.RemoteNode) error {
		nodes = append(nodes, n)
		return nil
	})
	return nodes, err
}

// TestWalkNestedTree verifies DFS emission with relative paths.
func TestWalkNestedTree(t *testing.T) {
	l := &fakeLister{children: map[string][]drive.Item{
		"root": {file("f1", "a.jpg", 100), folder("sub", "Trip Photos"), file("f2", "b.jpg", 200)},
		"sub":  {file("f3", "c.jpg", 300), folder("deep", "Day 2")},
		"deep": {file("f4", "d.jpg", 400)},
	}}

	nodes, err := collect(t, fastWalker(l), "root", "My Root")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("got %d nodes, want 4", len(nodes))
	}

	byID := map[string]models.RemoteNode{}
	for _, n := range nodes {
		byID[n.ID] = n
		if n.RootLabel != "My Root" {
			t.Errorf("node %s RootLabel = %q", n.ID, n.RootLabel)
		}
	}
	if got := byID["f1"].RelDir(); got != "" {
		t.Errorf("f1 RelDir = %q, want root", got)
	}
	if got := byID["f3"].RelDir(); got != "Trip Photos" {
		t.Errorf("f3 RelDir = %q", got)
	}
	if got := byID["f4"].RelDir(); got != "Trip Photos/Day 2" {
		t.Errorf("f4 RelDir = %q", got)
	}
}

// TestWalkDrainsPages verifies all pages of a large folder are listed.
func TestWalkDrainsPages(t *testing.T) {
	var items []drive.Item
	for i := 0; i < 25; i++ {
		items = append(items, file(tokenFor(i+1)+"-id", "img.jpg", 10))
	}
	l := &fakeLister{children: map[string][]drive.Item{"root": items}, pageSize: 10}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 25 {
		t.Errorf("got %d nodes, want 25", len(nodes))
	}
}

// TestWalkFolderShortcut verifies folder shortcuts are followed and the
// shortcut's own name labels the subtree.
func TestWalkFolderShortcut(t *testing.T) {
	l := &fakeLister{children: map[string][]drive.Item{
		"root":   {shortcut("s1", "Shared album", "target", drive.MIMEFolder)},
		"target": {file("f1", "x.jpg", 10)},
	}}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}
	if got := nodes[0].RelDir(); got != "Shared album" {
		t.Errorf("RelDir = %q, want shortcut name", got)
	}
}

// TestWalkFileShortcut verifies file shortcuts resolve to target
// metadata while keeping the shortcut's display name.
func TestWalkFileShortcut(t *testing.T) {
	l := &fakeLister{
		children: map[string][]drive.Item{
			"root": {shortcut("s1", "Best photo", "real", "image/jpeg")},
		},
		items: map[string]drive.Item{
			"real": file("real", "IMG_123.jpg", 5000),
		},
	}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want 1", len(nodes))
	}
	n := nodes[0]
	if n.ID != "real" {
		t.Errorf("ID = %q, want target id", n.ID)
	}
	if n.Name != "Best photo" {
		t.Errorf("Name = %q, want shortcut name", n.Name)
	}
	if n.Size != 5000 {
		t.Errorf("Size = %d, want target size", n.Size)
	}
	if !n.FromShortcut || n.Kind != models.KindShortcutFile {
		t.Errorf("shortcut provenance lost: %+v", n)
	}
}

// TestWalkShortcutChain verifies a shortcut-to-shortcut chain within
// the hop bound resolves, and a deeper chain is skipped.
func TestWalkShortcutChain(t *testing.T) {
	l := &fakeLister{
		children: map[string][]drive.Item{
			"root": {
				shortcut("s1", "two hops", "s2", drive.MIMEShortcut),
				shortcut("d1", "three hops", "d2", drive.MIMEShortcut),
			},
		},
		items: map[string]drive.Item{
			"s2":   shortcut("s2", "inner", "real", "image/jpeg"),
			"real": file("real", "IMG.jpg", 10),
			"d2":   shortcut("d2", "inner", "d3", drive.MIMEShortcut),
			"d3":   shortcut("d3", "inner", "d4", drive.MIMEShortcut),
			"d4":   file("d4", "deep.jpg", 10),
		},
	}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d nodes, want only the two-hop target", len(nodes))
	}
	if nodes[0].ID != "real" {
		t.Errorf("ID = %q, want real", nodes[0].ID)
	}
}

// TestWalkRefusesCycles verifies a shortcut loop terminates.
func TestWalkRefusesCycles(t *testing.T) {
	l := &fakeLister{children: map[string][]drive.Item{
		"root": {folder("a", "A")},
		"a":    {shortcut("s1", "back to root", "root", drive.MIMEFolder), file("f1", "x.jpg", 1)},
	}}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("got %d nodes, want 1", len(nodes))
	}
}

// TestWalkSiblingNameCollision verifies same-named sibling folders get
// distinct relative paths.
func TestWalkSiblingNameCollision(t *testing.T) {
	l := &fakeLister{children: map[string][]drive.Item{
		"root": {folder("a", "Photos"), folder("b", "Photos")},
		"a":    {file("f1", "1.jpg", 1)},
		"b":    {file("f2", "2.jpg", 1)},
	}}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	dirs := map[string]bool{}
	for _, n := range nodes {
		dirs[n.RelDir()] = true
	}
	if len(dirs) != 2 {
		t.Errorf("sibling folders collapsed: %v", dirs)
	}
	if !dirs["Photos"] || !dirs["Photos (2)"] {
		t.Errorf("unexpected dirs: %v", dirs)
	}
}

// TestWalkTransientListingFailure verifies a 503 on one page is retried
// without failing the folder.
func TestWalkTransientListingFailure(t *testing.T) {
	l := &fakeLister{
		children: map[string][]drive.Item{"root": {file("f1", "a.jpg", 1)}},
		failures: map[string][]error{
			"root": {&httpx.StatusError{StatusCode: 503, URL: "fake://root"}},
		},
	}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("got %d nodes, want 1", len(nodes))
	}
}

// TestWalkPartialFailure verifies an unlistable subfolder is reported
// without aborting the rest of the tree.
func TestWalkPartialFailure(t *testing.T) {
	l := &fakeLister{
		children: map[string][]drive.Item{
			"root": {folder("bad", "Broken"), folder("ok", "Fine")},
			"ok":   {file("f1", "a.jpg", 1)},
		},
		failures: map[string][]error{
			"bad": {
				&httpx.StatusError{StatusCode: 403, URL: "fake://bad"},
			},
		},
	}

	nodes, err := collect(t, fastWalker(l), "root", "r")
	var perr *PartialError
	if !errors.As(err, &perr) {
		t.Fatalf("Walk() error = %v, want *PartialError", err)
	}
	if len(perr.Failures) != 1 || perr.Failures[0].FolderID != "bad" {
		t.Errorf("Failures = %+v", perr.Failures)
	}
	if !strings.Contains(perr.Failures[0].Path, "Broken") {
		t.Errorf("failure path = %q", perr.Failures[0].Path)
	}
	if len(nodes) != 1 {
		t.Errorf("got %d nodes from surviving folders, want 1", len(nodes))
	}
}

// TestWalkCancellation verifies the walk stops at the next checkpoint
// after the context is cancelled.
func TestWalkCancellation(t *testing.T) {
	l := &fakeLister{children: map[string][]drive.Item{
		"root": {folder("a", "A"), folder("b", "B")},
		"a":    {file("f1", "1.jpg", 1)},
		"b":    {file("f2", "2.jpg", 1)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	w := fastWalker(l)
	var seen int
	err := w.Walk(ctx, "root", "r", func(models.RemoteNode) error {
		seen++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Walk() error = %v, want context.Canceled", err)
	}
	if seen != 1 {
		t.Errorf("visited %d nodes after cancel, want 1", seen)
	}
}

// TestWalkVisitAbort verifies a visit error stops the walk and is
// returned unwrapped.
func TestWalkVisitAbort(t *testing.T) {
	l := &fakeLister{children: map[string][]drive.Item{
		"root": {file("f1", "a.jpg", 1), file("f2", "b.jpg", 1)},
	}}

	boom := errors.New("sink full")
	w := fastWalker(l)
	err := w.Walk(context.Background(), "root", "r", func(models.RemoteNode) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Walk() error = %v, want visit error", err)
	}
}
