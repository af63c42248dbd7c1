// Package models defines the core data types shared across the prescan and
// fetch pipeline: remote nodes, fetch tasks, run totals and summaries.
package models

import "path"

// NodeKind classifies a remote item as discovered during traversal.
type NodeKind string

const (
	KindFolder         NodeKind = "folder"
	KindFile           NodeKind = "file"
	KindShortcutFolder NodeKind = "shortcut-folder"
	KindShortcutFile   NodeKind = "shortcut-file"
)

// MediaKind is the classifier-assigned media category of a file node.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaDoc   MediaKind = "doc"
	MediaOther MediaKind = "other"
)

// RemoteNode is one file discovered during traversal. Shortcut nodes are
// resolved to their target before being emitted, so ID always refers to real
// content; FromShortcut records how the node was reached.
type RemoteNode struct {
	ID            string
	Name          string
	Kind          NodeKind
	MIMEType      string
	FileExtension string
	Size          int64 // -1 when the listing did not report a size

	// RelPath is the sanitized folder chain from the scan root, excluding
	// the node's own name. Empty for files directly under the root.
	RelPath []string

	// RootLabel identifies the scan root this node was reached from.
	RootLabel string

	FromShortcut bool
}

// RelDir returns the slash-joined relative directory for the node.
func (n RemoteNode) RelDir() string {
	return path.Join(n.RelPath...)
}
