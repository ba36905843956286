package cubeview

import (
	"fmt"

	Ct "github.com/maroda/cubeview/types"
)

// Level is one rung of a concept hierarchy.
// The terminal level of a hierarchy carries no aggregation map.
type Level struct {
	Name     string
	Values   []string
	children map[string][]string
	index    map[string]int
}

// IndexOf reports the position of value within the level
func (l *Level) IndexOf(value string) (int, bool) {
	i, ok := l.index[value]
	return i, ok
}

// Hierarchy is the ordered level ladder of one dimension, most aggregated first
type Hierarchy struct {
	Dimension    Ct.Dimension
	Levels       []Level
	DefaultLevel int
}

// NewHierarchy validates a HierarchyFile and converts it
func NewHierarchy(dim Ct.Dimension, hf HierarchyFile) (*Hierarchy, error) {
	if len(hf.Levels) == 0 {
		return nil, fmt.Errorf("%w: %s has no levels", ErrInvalidConfig, dim)
	}

	h := &Hierarchy{
		Dimension:    dim,
		Levels:       make([]Level, len(hf.Levels)),
		DefaultLevel: hf.CurrentLevel,
	}
	for k, lf := range hf.Levels {
		if len(lf.Values) == 0 {
			return nil, fmt.Errorf("%w: %s level %q has no values", ErrInvalidConfig, dim, lf.Name)
		}
		lvl := Level{
			Name:   lf.Name,
			Values: append([]string(nil), lf.Values...),
			index:  make(map[string]int, len(lf.Values)),
		}
		for i, v := range lf.Values {
			if _, dup := lvl.index[v]; dup {
				return nil, fmt.Errorf("%w: %s level %q repeats value %q", ErrInvalidConfig, dim, lf.Name, v)
			}
			lvl.index[v] = i
		}
		if len(lf.AggregationMap) > 0 {
			lvl.children = make(map[string][]string, len(lf.AggregationMap))
			for parent, kids := range lf.AggregationMap {
				lvl.children[parent] = append([]string(nil), kids...)
			}
		}
		h.Levels[k] = lvl
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	return h, nil
}

// Validate checks the level invariants:
// only non-terminal levels map, keys belong to their level,
// children are non-empty, belong to the next level and never map to themselves.
func (h *Hierarchy) Validate() error {
	if h.DefaultLevel < 0 || h.DefaultLevel >= len(h.Levels) {
		return fmt.Errorf("%w: %s default level %d out of range [0,%d)",
			ErrInvalidConfig, h.Dimension, h.DefaultLevel, len(h.Levels))
	}

	last := len(h.Levels) - 1
	for k := range h.Levels {
		lvl := &h.Levels[k]
		if len(lvl.children) == 0 {
			continue
		}
		if k == last {
			return fmt.Errorf("%w: %s terminal level %q has an aggregation map",
				ErrInvalidHierarchyMap, h.Dimension, lvl.Name)
		}
		next := &h.Levels[k+1]
		for parent, kids := range lvl.children {
			if _, ok := lvl.index[parent]; !ok {
				return fmt.Errorf("%w: %s level %q maps unknown value %q",
					ErrInvalidHierarchyMap, h.Dimension, lvl.Name, parent)
			}
			if len(kids) == 0 {
				return fmt.Errorf("%w: %s level %q maps %q to nothing",
					ErrInvalidHierarchyMap, h.Dimension, lvl.Name, parent)
			}
			for _, kid := range kids {
				if kid == parent {
					return fmt.Errorf("%w: %s level %q maps %q to itself",
						ErrInvalidHierarchyMap, h.Dimension, lvl.Name, parent)
				}
				if _, ok := next.index[kid]; !ok {
					return fmt.Errorf("%w: %s level %q child %q of %q is not in level %q",
						ErrInvalidHierarchyMap, h.Dimension, lvl.Name, kid, parent, next.Name)
				}
			}
		}
	}

	return nil
}

// CheckBase verifies that values, in any order, are exactly the terminal level values
func (h *Hierarchy) CheckBase(values []string) error {
	term := &h.Levels[len(h.Levels)-1]
	if len(values) != len(term.Values) {
		return fmt.Errorf("%w: %s facts are keyed by %d values, level %q has %d",
			ErrInvalidConfig, h.Dimension, len(values), term.Name, len(term.Values))
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if _, ok := term.IndexOf(v); !ok || seen[v] {
			return fmt.Errorf("%w: %s fact value %q does not match level %q",
				ErrInvalidConfig, h.Dimension, v, term.Name)
		}
		seen[v] = true
	}
	return nil
}

// Depth is the number of levels
func (h *Hierarchy) Depth() int { return len(h.Levels) }

// Terminal reports whether level is the most detailed one
func (h *Hierarchy) Terminal(level int) bool { return level >= len(h.Levels)-1 }

func (h *Hierarchy) level(level int) *Level {
	if level < 0 {
		level = 0
	}
	if level >= len(h.Levels) {
		level = len(h.Levels) - 1
	}
	return &h.Levels[level]
}

// LevelVector holds one hierarchy level per dimension, indexed by Dimension
type LevelVector [3]int

// Registry holds the three hierarchies of the cube. It is read-only after NewConfig.
type Registry struct {
	hierarchies [3]*Hierarchy
}

// NewRegistry builds a Registry from already validated hierarchies
func NewRegistry(source, route, time *Hierarchy) (*Registry, error) {
	r := &Registry{hierarchies: [3]*Hierarchy{source, route, time}}
	for _, dim := range Ct.Dimensions {
		if r.hierarchies[dim] == nil {
			return nil, fmt.Errorf("%w: missing hierarchy for %s", ErrInvalidConfig, dim)
		}
	}
	return r, nil
}

// Hierarchy returns the hierarchy of dim
func (r *Registry) Hierarchy(dim Ct.Dimension) *Hierarchy { return r.hierarchies[dim] }

// Validate re-checks every hierarchy
func (r *Registry) Validate() error {
	for _, dim := range Ct.Dimensions {
		if err := r.hierarchies[dim].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Defaults is the configured starting level vector
func (r *Registry) Defaults() LevelVector {
	var lv LevelVector
	for _, dim := range Ct.Dimensions {
		lv[dim] = r.hierarchies[dim].DefaultLevel
	}
	return lv
}

// LevelName is the name of a level, clamped into range
func (r *Registry) LevelName(dim Ct.Dimension, level int) string {
	return r.hierarchies[dim].level(level).Name
}

// LevelNames lists every level name of dim, most aggregated first
func (r *Registry) LevelNames(dim Ct.Dimension) []string {
	h := r.hierarchies[dim]
	names := make([]string, len(h.Levels))
	for i := range h.Levels {
		names[i] = h.Levels[i].Name
	}
	return names
}

// ValuesAt lists the values of dim at level.
// The slice is shared; callers must not modify it.
func (r *Registry) ValuesAt(dim Ct.Dimension, level int) []string {
	return r.hierarchies[dim].level(level).Values
}

// ChildrenOf expands value one level down.
// Unmapped values and terminal levels pass through as [value].
func (r *Registry) ChildrenOf(dim Ct.Dimension, level int, value string) []string {
	h := r.hierarchies[dim]
	if h.Terminal(level) {
		return []string{value}
	}
	if kids, ok := h.level(level).children[value]; ok {
		return kids
	}
	return []string{value}
}

// IndexOf finds value within the level
func (r *Registry) IndexOf(dim Ct.Dimension, level int, value string) (int, bool) {
	return r.hierarchies[dim].level(level).IndexOf(value)
}

// Depth is the level count of dim
func (r *Registry) Depth(dim Ct.Dimension) int { return r.hierarchies[dim].Depth() }

// IsTerminal reports whether level is the most detailed level of dim
func (r *Registry) IsTerminal(dim Ct.Dimension, level int) bool {
	return r.hierarchies[dim].Terminal(level)
}

// AllTerminal reports whether every dimension in lv sits at its terminal level
func (r *Registry) AllTerminal(lv LevelVector) bool {
	for _, dim := range Ct.Dimensions {
		if !r.IsTerminal(dim, lv[dim]) {
			return false
		}
	}
	return true
}

// CanDrillDown reports whether dim has a more detailed level below level
func (r *Registry) CanDrillDown(dim Ct.Dimension, level int) bool {
	return level < r.hierarchies[dim].Depth()-1
}

// CanDrillUp reports whether dim has a more aggregated level above level
func (r *Registry) CanDrillUp(dim Ct.Dimension, level int) bool {
	return level > 0
}
