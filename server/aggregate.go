package cubeview

import (
	Ct "github.com/maroda/cubeview/types"
)

// Aggregator computes measure values at any combination of hierarchy levels.
// It only reads the Registry and FactStore, so it is safe for concurrent use.
type Aggregator struct {
	Registry *Registry
	Facts    *FactStore
}

// NewAggregator binds an Aggregator to a Config
func NewAggregator(cfg *Config) *Aggregator {
	return &Aggregator{Registry: cfg.Registry, Facts: cfg.Facts}
}

// ValueAt returns the value of m at (source, route, time), where each value
// belongs to the level of its dimension given in lv.
//
// With every dimension at its terminal level the stored fact is returned
// when present and positive; anything else is synthesized.
// Above that, every non-terminal dimension expands one level and the
// Cartesian product of the children is summed recursively.
func (a *Aggregator) ValueAt(lv LevelVector, source, route, time string, m Ct.Measure) float64 {
	if !m.Valid() {
		m = Ct.Packages
	}

	if a.Registry.AllTerminal(lv) {
		return a.baseValue(source, route, time, m)
	}

	next := lv
	for _, dim := range Ct.Dimensions {
		if !a.Registry.IsTerminal(dim, lv[dim]) {
			next[dim] = lv[dim] + 1
		}
	}

	sources := a.Registry.ChildrenOf(Ct.Source, lv[Ct.Source], source)
	routes := a.Registry.ChildrenOf(Ct.Route, lv[Ct.Route], route)
	times := a.Registry.ChildrenOf(Ct.Time, lv[Ct.Time], time)

	var sum float64
	for _, s := range sources {
		for _, r := range routes {
			for _, t := range times {
				sum += a.ValueAt(next, s, r, t, m)
			}
		}
	}

	return sum
}

func (a *Aggregator) baseValue(source, route, time string, m Ct.Measure) float64 {
	if v, ok := a.Facts.Lookup(m, source, time); ok && v > 0 {
		return v
	}
	return Synthesize(source, route, time, m)
}
