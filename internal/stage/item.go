package stage

import (
	"path/filepath"
	"strings"
)

// ItemKind distinguishes downloaded videos from files already on disk.
type ItemKind string

const (
	KindRemote ItemKind = "remote"
	KindLocal  ItemKind = "local"
)

// WorkItem is one video to process. Values are never mutated after creation.
type WorkItem struct {
	Kind       ItemKind
	Title      string
	URL        string
	ID         string
	Uploader   string
	UploadDate string
	// Path is the prepared download.mp4 for local items.
	Path string
}

// LocalItem builds a work item for a video already placed in its folder.
func LocalItem(path string) WorkItem {
	base := filepath.Base(path)
	if base == "download.mp4" {
		base = filepath.Base(filepath.Dir(path))
	}
	return WorkItem{
		Kind:  KindLocal,
		Title: strings.TrimSuffix(base, filepath.Ext(base)),
		Path:  path,
	}
}

// Label returns the most descriptive human-readable name for the item.
func (w WorkItem) Label() string {
	switch {
	case strings.TrimSpace(w.Title) != "":
		return w.Title
	case w.Path != "":
		return w.Path
	case w.URL != "":
		return w.URL
	default:
		return w.ID
	}
}

// IsLocal reports whether the item refers to a file on disk.
func (w WorkItem) IsLocal() bool {
	return w.Kind == KindLocal
}
