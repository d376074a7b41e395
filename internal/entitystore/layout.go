package entitystore

import (
	"io/fs"
	"path/filepath"
	"strings"
)

const (
	IndexFileName = "index.json"
	lockFileName  = ".index.lock"
)

// Layout maps entity ids onto the directory tree of one collection.
type Layout interface {
	// EntryName is the immediate child of the base directory owned by id.
	EntryName(id string) string
	// DocumentPath is the primary JSON document for id.
	DocumentPath(base, id string) string
	// EntryID reports the id owned by a directory entry, if any.
	EntryID(entry fs.DirEntry) (string, bool)
	// IsFolder reports whether each entity owns a directory.
	IsFolder() bool
}

// FolderLayout stores each entity as <base>/<id>/<Primary>.
type FolderLayout struct {
	Primary string
}

func (l FolderLayout) EntryName(id string) string {
	return id
}

func (l FolderLayout) DocumentPath(base, id string) string {
	return filepath.Join(base, id, l.Primary)
}

func (l FolderLayout) EntryID(entry fs.DirEntry) (string, bool) {
	if !entry.IsDir() || skipEntry(entry.Name()) {
		return "", false
	}
	return entry.Name(), true
}

func (l FolderLayout) IsFolder() bool {
	return true
}

// FlatLayout stores each entity as <base>/<id><Suffix>.
type FlatLayout struct {
	Suffix string
}

func (l FlatLayout) suffix() string {
	if l.Suffix == "" {
		return ".json"
	}
	return l.Suffix
}

func (l FlatLayout) EntryName(id string) string {
	return id + l.suffix()
}

func (l FlatLayout) DocumentPath(base, id string) string {
	return filepath.Join(base, l.EntryName(id))
}

func (l FlatLayout) EntryID(entry fs.DirEntry) (string, bool) {
	name := entry.Name()
	if entry.IsDir() || skipEntry(name) || !strings.HasSuffix(name, l.suffix()) {
		return "", false
	}
	id := strings.TrimSuffix(name, l.suffix())
	if id == "" {
		return "", false
	}
	return id, true
}

func (l FlatLayout) IsFolder() bool {
	return false
}

func skipEntry(name string) bool {
	return name == IndexFileName || name == lockFileName || strings.HasPrefix(name, ".")
}
