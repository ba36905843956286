package cubeview

import (
	"fmt"

	Ct "github.com/maroda/cubeview/types"
)

// FactStore holds the base measure grids, indexed [source][time].
// Route has no axis in the grid.
type FactStore struct {
	srcIdx  map[string]int
	timeIdx map[string]int
	grids   map[Ct.Measure][][]float64
}

// NewFactStore checks the grids against the base value lists.
// Grids may be ragged or short; missing entries are reported by Lookup.
func NewFactStore(sources, times []string, grids map[Ct.Measure][][]float64) (*FactStore, error) {
	fs := &FactStore{
		srcIdx:  make(map[string]int, len(sources)),
		timeIdx: make(map[string]int, len(times)),
		grids:   make(map[Ct.Measure][][]float64, len(grids)),
	}
	for i, s := range sources {
		fs.srcIdx[s] = i
	}
	for i, t := range times {
		fs.timeIdx[t] = i
	}

	for m, grid := range grids {
		if len(grid) > len(sources) {
			return nil, fmt.Errorf("%w: %s grid has %d rows for %d sources",
				ErrInvalidConfig, m, len(grid), len(sources))
		}
		rows := make([][]float64, len(grid))
		for i, row := range grid {
			if len(row) > len(times) {
				return nil, fmt.Errorf("%w: %s grid row %d has %d columns for %d times",
					ErrInvalidConfig, m, i, len(row), len(times))
			}
			rows[i] = append([]float64(nil), row...)
		}
		fs.grids[m] = rows
	}

	return fs, nil
}

// Lookup returns the stored value at (source, time) for m.
// ok is false when either coordinate is not a base value or the grid has no entry.
func (fs *FactStore) Lookup(m Ct.Measure, source, time string) (float64, bool) {
	if fs == nil {
		return 0, false
	}
	si, ok := fs.srcIdx[source]
	if !ok {
		return 0, false
	}
	ti, ok := fs.timeIdx[time]
	if !ok {
		return 0, false
	}
	grid, ok := fs.grids[m]
	if !ok || si >= len(grid) || ti >= len(grid[si]) {
		return 0, false
	}
	return grid[si][ti], true
}

