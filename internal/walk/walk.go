// Package walk traverses remote folder trees and emits the files found
// in them. Traversal is an explicit worklist DFS: no recursion, cheap
// cancellation checkpoints between folders, and a visited set so cyclic
// shortcut graphs terminate.
package walk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/httpx"
	"github.com/ontahood/drivefetch/internal/logging"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/util/paths"
	"github.com/ontahood/drivefetch/internal/util/sanitize"
)

// ErrShortcutChainTooDeep indicates a shortcut pointing at shortcuts
// beyond the resolution bound. The item is skipped, not fatal.
var ErrShortcutChainTooDeep = errors.New("shortcut chain exceeds resolution bound")

// FolderFailure records a folder that could not be fully listed.
type FolderFailure struct {
	FolderID string
	Path     string
	Err      error
}

// PartialError aggregates folder failures from a walk that still
// produced results for the folders it could list.
type PartialError struct {
	Failures []FolderFailure
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d folder(s) could not be fully listed", len(e.Failures))
}

// VisitFunc receives each file discovered during a walk. Returning an
// error aborts the walk.
type VisitFunc func(node models.RemoteNode) error

// Walker lists remote folder trees.
type Walker struct {
	lister drive.Lister
	log    *logging.Logger
	// Retry controls per-page listing retries.
	Retry httpx.Config
}

// New builds a Walker over the given metadata source.
func New(lister drive.Lister, log *logging.Logger) *Walker {
	return &Walker{
		lister: lister,
		log:    log,
		Retry:  httpx.DefaultConfig(),
	}
}

// frame is one folder awaiting traversal.
type frame struct {
	folderID string
	relPath  []string
}

// Walk traverses the tree rooted at rootID depth-first and calls visit
// for every file. rootLabel names the scan root on emitted nodes.
//
// Folders that fail listing after retries are recorded and skipped;
// the walk continues with the rest of the tree and the failures come
// back as a *PartialError. Context cancellation aborts promptly.
func (w *Walker) Walk(ctx context.Context, rootID, rootLabel string, visit VisitFunc) error {
	visited := map[string]bool{rootID: true}
	stack := []frame{{folderID: rootID}}
	var failures []FolderFailure

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		subfolders, err := w.walkFolder(ctx, fr, rootLabel, visited, visit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var visitErr *visitAbort
			if errors.As(err, &visitErr) {
				return visitErr.err
			}
			w.log.Warn().Err(err).
				Str("folder_id", fr.folderID).
				Str("path", strings.Join(fr.relPath, "/")).
				Msg("Skipping folder after listing failure")
			failures = append(failures, FolderFailure{
				FolderID: fr.folderID,
				Path:     strings.Join(fr.relPath, "/"),
				Err:      err,
			})
			continue
		}

		// Reverse push keeps traversal in listing order.
		for i := len(subfolders) - 1; i >= 0; i-- {
			stack = append(stack, subfolders[i])
		}
	}

	if len(failures) > 0 {
		return &PartialError{Failures: failures}
	}
	return nil
}

// visitAbort wraps a visit callback error so it can be told apart from
// listing failures.
type visitAbort struct{ err error }

func (e *visitAbort) Error() string { return e.err.Error() }

// walkFolder drains all pages of one folder, emits its files, and
// returns the subfolder frames to traverse next.
func (w *Walker) walkFolder(ctx context.Context, fr frame, rootLabel string, visited map[string]bool, visit VisitFunc) ([]frame, error) {
	var subfolders []frame
	namer := paths.NewNamer()
	pageToken := ""

	for {
		var items []drive.Item
		var next string
		err := httpx.ExecuteWithRetry(ctx, w.Retry, func() error {
			var listErr error
			items, next, listErr = w.lister.ListChildren(ctx, fr.folderID, pageToken)
			return listErr
		})
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			node, sub, err := w.handleItem(ctx, item, fr, rootLabel, visited, namer)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				subfolders = append(subfolders, *sub)
			}
			if node != nil {
				if err := visit(*node); err != nil {
					return nil, &visitAbort{err: err}
				}
			}
		}

		if next == "" {
			return subfolders, nil
		}
		pageToken = next
	}
}

// handleItem turns one listed item into a file node, a subfolder frame,
// or nothing (skipped shortcuts).
func (w *Walker) handleItem(ctx context.Context, item drive.Item, fr frame, rootLabel string, visited map[string]bool, namer *paths.Namer) (*models.RemoteNode, *frame, error) {
	switch item.MIMEType {
	case drive.MIMEFolder:
		return nil, w.subfolderFrame(item.ID, item.Name, fr, visited, namer), nil

	case drive.MIMEShortcut:
		target, err := w.resolveShortcut(ctx, item)
		if err != nil {
			if errors.Is(err, ErrShortcutChainTooDeep) || httpx.ClassifyError(err) == httpx.ErrorTypePermanent {
				w.log.Warn().Err(err).
					Str("name", item.Name).
					Str("id", item.ID).
					Msg("Skipping unresolvable shortcut")
				return nil, nil, nil
			}
			return nil, nil, err
		}
		if target.MIMEType == drive.MIMEFolder {
			return nil, w.subfolderFrame(target.ID, item.Name, fr, visited, namer), nil
		}
		node := w.fileNode(*target, item.Name, fr, rootLabel, true)
		return &node, nil, nil

	default:
		node := w.fileNode(item, item.Name, fr, rootLabel, false)
		return &node, nil, nil
	}
}

// subfolderFrame registers a subfolder for traversal, or nil when the
// folder was already seen on this root (cycle or duplicate shortcut).
func (w *Walker) subfolderFrame(folderID, name string, fr frame, visited map[string]bool, namer *paths.Namer) *frame {
	if visited[folderID] {
		w.log.Debug().
			Str("folder_id", folderID).
			Str("name", name).
			Msg("Folder already visited, refusing cycle")
		return nil
	}
	visited[folderID] = true

	clean := namer.Unique(sanitize.Filename(name))
	rel := make([]string, 0, len(fr.relPath)+1)
	rel = append(rel, fr.relPath...)
	rel = append(rel, clean)
	return &frame{folderID: folderID, relPath: rel}
}

// resolveShortcut follows a shortcut to its non-shortcut target,
// bounded by MaxShortcutHops.
func (w *Walker) resolveShortcut(ctx context.Context, item drive.Item) (*drive.Item, error) {
	targetID := item.ShortcutTargetID
	targetMIME := item.ShortcutTargetMIME
	if targetID == "" {
		return nil, fmt.Errorf("shortcut %s has no target: %w", item.ID, ErrShortcutChainTooDeep)
	}

	for hop := 1; targetMIME == drive.MIMEShortcut; hop++ {
		if hop > constants.MaxShortcutHops {
			return nil, fmt.Errorf("shortcut %s: %w", item.ID, ErrShortcutChainTooDeep)
		}
		var next *drive.Item
		err := httpx.ExecuteWithRetry(ctx, w.Retry, func() error {
			var getErr error
			next, getErr = w.lister.GetItem(ctx, targetID)
			return getErr
		})
		if err != nil {
			return nil, err
		}
		if next.ShortcutTargetID == "" {
			return nil, fmt.Errorf("shortcut %s has no target: %w", next.ID, ErrShortcutChainTooDeep)
		}
		targetID = next.ShortcutTargetID
		targetMIME = next.ShortcutTargetMIME
	}

	if targetMIME == drive.MIMEFolder {
		return &drive.Item{ID: targetID, Name: item.Name, MIMEType: drive.MIMEFolder}, nil
	}

	// Fetch the target's real metadata; the shortcut itself carries no
	// size or extension.
	var target *drive.Item
	err := httpx.ExecuteWithRetry(ctx, w.Retry, func() error {
		var getErr error
		target, getErr = w.lister.GetItem(ctx, targetID)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// fileNode builds the emitted node for a file item. The display name
// comes from the shortcut when the file was reached through one.
func (w *Walker) fileNode(item drive.Item, displayName string, fr frame, rootLabel string, fromShortcut bool) models.RemoteNode {
	kind := models.KindFile
	if fromShortcut {
		kind = models.KindShortcutFile
	}
	name := displayName
	if name == "" {
		name = item.Name
	}
	return models.RemoteNode{
		ID:            item.ID,
		Name:          name,
		Kind:          kind,
		MIMEType:      item.MIMEType,
		FileExtension: item.FileExtension,
		Size:          item.Size,
		RelPath:       fr.relPath,
		RootLabel:     rootLabel,
		FromShortcut:  fromShortcut,
	}
}
