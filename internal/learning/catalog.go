package learning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

// Collection is the part of every resource service the index synchronizer
// needs.
type Collection interface {
	Name() string
	Base() string
	SyncIndex(ctx context.Context) (entitystore.Report, error)
}

type CatalogOptions struct {
	ArticlesDir     string
	ArticleAssetURL string
	PlansDir        string
	MentalHealthDir string
	ResearchDir     string
	NotesDir        string
	Logger          *log.Logger
	Now             func() time.Time
}

type Catalog struct {
	Articles     *Articles
	Plans        *Plans
	MentalHealth *Sessions
	Research     *Sessions
	Notes        *Notes
}

func NewCatalog(opts CatalogOptions) (*Catalog, error) {
	articles, err := NewArticles(ArticleOptions{
		BaseDir:  opts.ArticlesDir,
		AssetURL: opts.ArticleAssetURL,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("articles: %w", err)
	}
	plans, err := NewPlans(PlanOptions{BaseDir: opts.PlansDir, Logger: opts.Logger, Now: opts.Now})
	if err != nil {
		return nil, fmt.Errorf("plans: %w", err)
	}
	mentalHealth, err := NewSessions(SessionOptions{
		Name:      "mental-health",
		BaseDir:   opts.MentalHealthDir,
		Placement: entitystore.Prepend,
		SortOrder: entitystore.Descending,
		Logger:    opts.Logger,
		Now:       opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("mental health: %w", err)
	}
	research, err := NewSessions(SessionOptions{
		Name:      "research",
		BaseDir:   opts.ResearchDir,
		Placement: entitystore.Append,
		SortOrder: entitystore.Ascending,
		Logger:    opts.Logger,
		Now:       opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}
	notes, err := NewNotes(NoteOptions{BaseDir: opts.NotesDir, Logger: opts.Logger, Now: opts.Now})
	if err != nil {
		return nil, fmt.Errorf("notes: %w", err)
	}
	return &Catalog{
		Articles:     articles,
		Plans:        plans,
		MentalHealth: mentalHealth,
		Research:     research,
		Notes:        notes,
	}, nil
}

func (c *Catalog) Collections() []Collection {
	return []Collection{c.Articles, c.Plans, c.MentalHealth, c.Research, c.Notes}
}

// Lookup resolves collection names such as "articles" or "mental-health".
func (c *Catalog) Lookup(name string) (Collection, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, col := range c.Collections() {
		if col.Name() == name {
			return col, true
		}
	}
	return nil, false
}

// Select resolves a list of collection names; "all" selects every collection.
func (c *Catalog) Select(names []string) ([]Collection, error) {
	var out []Collection
	seen := map[string]bool{}
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if name == "all" {
			return c.Collections(), nil
		}
		col, ok := c.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown collection %q", raw)
		}
		if seen[col.Name()] {
			continue
		}
		seen[col.Name()] = true
		out = append(out, col)
	}
	return out, nil
}
