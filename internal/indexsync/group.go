package indexsync

import (
	"context"
	"fmt"
)

// Group owns one scheduler per collection.
type Group struct {
	schedulers []*Scheduler
	byName     map[string]*Scheduler
}

func NewGroup(targets []Target, opts Options) (*Group, error) {
	g := &Group{byName: map[string]*Scheduler{}}
	for _, target := range targets {
		s, err := NewScheduler(target, opts)
		if err != nil {
			return nil, err
		}
		if _, dup := g.byName[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate collection %q", s.Name())
		}
		g.schedulers = append(g.schedulers, s)
		g.byName[s.Name()] = s
	}
	return g, nil
}

func (g *Group) Schedulers() []*Scheduler {
	return append([]*Scheduler(nil), g.schedulers...)
}

func (g *Group) Lookup(name string) (*Scheduler, bool) {
	s, ok := g.byName[name]
	return s, ok
}

func (g *Group) Subscribe(fn func(Event)) {
	for _, s := range g.schedulers {
		s.Subscribe(fn)
	}
}

// Start starts every scheduler; on failure the ones already started are
// stopped again.
func (g *Group) Start(ctx context.Context) error {
	for i, s := range g.schedulers {
		if err := s.Start(ctx); err != nil {
			for _, started := range g.schedulers[:i] {
				started.Stop()
			}
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

func (g *Group) Stop() {
	for _, s := range g.schedulers {
		s.Stop()
	}
}

func (g *Group) Status() []Status {
	out := make([]Status, 0, len(g.schedulers))
	for _, s := range g.schedulers {
		out = append(out, s.Status())
	}
	return out
}
