package cubeview

import (
	"sync"

	Ct "github.com/maroda/cubeview/types"
)

// project builds every cell at the current levels, source outer,
// route middle, time inner. The caller holds at least the read lock.
func (c *Cube) project() []Ct.Cell {
	reg := c.cfg.Registry
	lv := c.state.Levels
	sources := reg.ValuesAt(Ct.Source, lv[Ct.Source])
	routes := reg.ValuesAt(Ct.Route, lv[Ct.Route])
	times := reg.ValuesAt(Ct.Time, lv[Ct.Time])

	block := len(routes) * len(times)
	cells := make([]Ct.Cell, len(sources)*block)

	fill := func(si int) {
		base := si * block
		for ri, route := range routes {
			for ti, tm := range times {
				cell := Ct.Cell{
					SourceIndex: si,
					RouteIndex:  ri,
					TimeIndex:   ti,
					Source:      sources[si],
					Route:       route,
					Time:        tm,
					Value:       c.agg.ValueAt(lv, sources[si], route, tm, c.state.Measure),
				}
				cell.Visible = c.state.Shows(cell)
				cells[base+ri*len(times)+ti] = cell
			}
		}
	}

	if !c.parallel {
		for si := range sources {
			fill(si)
		}
		return cells
	}

	// one goroutine per source value, each owning its own block of slots
	var wg sync.WaitGroup
	for si := range sources {
		wg.Add(1)
		go func(si int) {
			defer wg.Done()
			fill(si)
		}(si)
	}
	wg.Wait()

	return cells
}

func countVisible(cells []Ct.Cell) int {
	n := 0
	for _, cell := range cells {
		if cell.Visible {
			n++
		}
	}
	return n
}
