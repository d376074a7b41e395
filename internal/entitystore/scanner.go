package entitystore

import (
	"errors"
	"io/fs"
	"os"
	"sort"
)

// Scan lists the entity ids present under base. A missing base directory
// yields an empty set; the directory is created lazily on first write.
func Scan(base string, layout Layout) (map[string]struct{}, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, err
	}
	ids := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		id, ok := layout.EntryID(entry)
		if !ok {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
