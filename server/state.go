package cubeview

import (
	Ct "github.com/maroda/cubeview/types"
)

// State is the mutable session state of one cube.
// Access is guarded by Cube.MU.
type State struct {
	Levels  LevelVector
	Measure Ct.Measure
	Visible []Ct.Dimension  // ordered, never empty
	Dice    []Ct.Filter     // conjunctive allow-lists
	Range   *Ct.ValueRange  // value filter, nil when off
	Slices  map[Ct.Axis]int // at most one position per axis
	Pivot   [3]Ct.Dimension // axis -> dimension, always a permutation
	History *History
}

// NewState is the state of a fresh session
func NewState(cfg *Config, historyCap int) *State {
	s := &State{
		History: NewHistory(historyCap),
	}
	s.reset(cfg)
	return s
}

// reset restores everything except history to the configured defaults
func (s *State) reset(cfg *Config) {
	s.Levels = cfg.Registry.Defaults()
	s.Measure = cfg.DefaultMeasure
	s.Visible = append([]Ct.Dimension(nil), cfg.DefaultDimensions...)
	s.Dice = nil
	s.Range = nil
	s.Slices = make(map[Ct.Axis]int)
	s.Pivot = IdentityPivot()
}

// IdentityPivot maps x, y, z to source, route, time
func IdentityPivot() [3]Ct.Dimension {
	return [3]Ct.Dimension{Ct.Source, Ct.Route, Ct.Time}
}

// LevelOf is the current level of dim
func (s *State) LevelOf(dim Ct.Dimension) int { return s.Levels[dim] }

// IsVisible reports whether dim is in the visible dimension set
func (s *State) IsVisible(dim Ct.Dimension) bool {
	return containsDimension(s.Visible, dim)
}

// Shows reports whether cell passes every active slice, dice filter and value range.
// The cell's Value must already be computed.
func (s *State) Shows(cell Ct.Cell) bool {
	if s.Range != nil && !s.Range.Contains(cell.Value) {
		return false
	}
	for axis, pos := range s.Slices {
		if cell.Index(s.Pivot[axis]) != pos {
			return false
		}
	}
	for _, f := range s.Dice {
		if f.Values == nil {
			continue
		}
		if !containsString(f.Values, cell.Category(f.Dimension)) {
			return false
		}
	}
	return true
}

// LevelInfo describes the current level of every dimension
func (s *State) LevelInfo(r *Registry) map[Ct.Dimension]Ct.LevelInfo {
	out := make(map[Ct.Dimension]Ct.LevelInfo, len(Ct.Dimensions))
	for _, dim := range Ct.Dimensions {
		out[dim] = Ct.LevelInfo{
			Level: s.Levels[dim],
			Name:  r.LevelName(dim, s.Levels[dim]),
			Total: r.Depth(dim),
		}
	}
	return out
}

func (s *State) pivotMap() map[Ct.Axis]Ct.Dimension {
	out := make(map[Ct.Axis]Ct.Dimension, len(Ct.Axes))
	for _, axis := range Ct.Axes {
		out[axis] = s.Pivot[axis]
	}
	return out
}

func (s *State) sliceMap() map[Ct.Axis]int {
	out := make(map[Ct.Axis]int, len(s.Slices))
	for axis, pos := range s.Slices {
		out[axis] = pos
	}
	return out
}

func (s *State) diceCopy() []Ct.Filter {
	out := make([]Ct.Filter, len(s.Dice))
	for i, f := range s.Dice {
		out[i] = Ct.Filter{Dimension: f.Dimension}
		if f.Values != nil {
			out[i].Values = append([]string{}, f.Values...)
		}
	}
	return out
}

func (s *State) rangeCopy() *Ct.ValueRange {
	if s.Range == nil {
		return nil
	}
	return copyRange(*s.Range)
}

func copyRange(r Ct.ValueRange) *Ct.ValueRange {
	out := &Ct.ValueRange{}
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
