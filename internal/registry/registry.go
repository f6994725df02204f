// Package registry builds a named forest of clock.Clock nodes from a
// config.Config and provides lookup by ID, the way a DVB CSS
// companion-screen stack keeps track of every clock it has created
// from a synchronization-timeline description.
package registry

import (
	"fmt"

	"github.com/dvbcss/clocktree/clock"
	"github.com/dvbcss/clocktree/internal/config"
)

// Registry is the set of clocks built from one ClockTreeConfig, keyed
// by the IDs named in that config.
type Registry struct {
	root  *clock.RootClock
	byID  map[string]clock.Clock
	order []string // insertion order, root first; used by All()
}

// Build constructs every clock named in cfg, in declaration order, and
// wires it to its already-built parent. cfg is assumed to have already
// passed config.LoadConfig's validation (parents resolvable, IDs
// unique, kinds known).
func Build(host clock.HostClock, cfg config.ClockTreeConfig) (*Registry, error) {
	root, err := clock.NewRootClock(host, clock.RootClockOptions{
		TickRate:        cfg.Root.TickRate,
		MaxFreqErrorPpm: cfg.Root.MaxFreqErrorPpm,
	})
	if err != nil {
		return nil, fmt.Errorf("building root clock %q: %w", cfg.Root.ID, err)
	}

	r := &Registry{
		root:  root,
		byID:  map[string]clock.Clock{cfg.Root.ID: root},
		order: []string{cfg.Root.ID},
	}

	for _, n := range cfg.Nodes {
		parent, ok := r.byID[n.Parent]
		if !ok {
			return nil, fmt.Errorf("building node %q: parent %q was not built yet", n.ID, n.Parent)
		}

		var c clock.Clock
		var err error
		switch n.Kind {
		case config.KindCorrelated:
			c, err = buildCorrelated(parent, n)
		case config.KindOffset:
			c, err = clock.NewOffsetClock(parent, clock.OffsetClockOptions{OffsetMs: n.OffsetMs})
		default:
			return nil, fmt.Errorf("building node %q: unsupported kind %q", n.ID, n.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("building node %q: %w", n.ID, err)
		}

		r.byID[n.ID] = c
		r.order = append(r.order, n.ID)
	}

	return r, nil
}

func buildCorrelated(parent clock.Clock, n config.NodeConfig) (*clock.CorrelatedClock, error) {
	opts := clock.CorrelatedClockOptions{TickRate: n.TickRate}
	if n.Speed != nil {
		opts.HasSpeed = true
		opts.Speed = *n.Speed
	}
	if n.Correlation != nil {
		opts.Correlation = clock.NewCorrelation(
			n.Correlation.ParentTime,
			n.Correlation.ChildTime,
			n.Correlation.InitialError,
			n.Correlation.ErrorGrowthRate,
		)
	}
	return clock.NewCorrelatedClock(parent, opts)
}

// Root returns the tree's single RootClock.
func (r *Registry) Root() *clock.RootClock { return r.root }

// Get looks up a clock by the ID it was configured with. The second
// return value is false if no such ID was built.
func (r *Registry) Get(id string) (clock.Clock, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns every built clock in declaration order, root first.
func (r *Registry) All() []clock.Clock {
	out := make([]clock.Clock, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns every configured clock ID in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
