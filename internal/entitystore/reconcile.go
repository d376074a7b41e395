package entitystore

import (
	"context"
	"sort"
	"time"
)

type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

func (o SortOrder) apply(ids []string) []string {
	if o == Descending {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
		return ids
	}
	sort.Strings(ids)
	return ids
}

// Report describes the drift corrected by one reconciliation pass.
type Report struct {
	Collection string    `json:"collection"`
	Added      []string  `json:"added"`
	Removed    []string  `json:"removed"`
	Total      int       `json:"total"`
	At         time.Time `json:"at"`
}

func (r Report) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

type ReconcileOptions struct {
	Layout Layout
	Order  SortOrder
	// Admit filters scanned ids. Nil admits every entry.
	Admit func(id string) (bool, error)
}

// Reconcile compares the ids present under base with the index and, when
// they differ, rewrites the index as the ordered set of present ids. A pass
// that finds no drift performs no write.
func Reconcile(ctx context.Context, index *IndexStore, base string, opts ReconcileOptions) (Report, error) {
	report := Report{
		Collection: index.Key(),
		Added:      []string{},
		Removed:    []string{},
	}
	err := index.Update(ctx, func(indexed []string) ([]string, bool, error) {
		actual, err := Scan(base, opts.Layout)
		if err != nil {
			return nil, false, err
		}
		if opts.Admit != nil {
			for id := range actual {
				ok, err := opts.Admit(id)
				if err != nil {
					return nil, false, err
				}
				if !ok {
					delete(actual, id)
				}
			}
		}
		indexedSet := make(map[string]struct{}, len(indexed))
		for _, id := range indexed {
			indexedSet[id] = struct{}{}
			if _, ok := actual[id]; !ok {
				report.Removed = append(report.Removed, id)
			}
		}
		for _, id := range sortedKeys(actual) {
			if _, ok := indexedSet[id]; !ok {
				report.Added = append(report.Added, id)
			}
		}
		report.Total = len(actual)
		if !report.Changed() {
			return nil, false, nil
		}
		return opts.Order.apply(sortedKeys(actual)), true, nil
	})
	report.At = time.Now().UTC()
	if err != nil {
		return Report{}, err
	}
	return report, nil
}
