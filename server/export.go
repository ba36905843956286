package cubeview

import (
	"log/slog"

	"github.com/google/uuid"

	Ct "github.com/maroda/cubeview/types"
)

// ExportState takes a consistent snapshot of the session
func (c *Cube) ExportState() Ct.Snapshot {
	if c == nil {
		slog.Error("Cube not available for export", slog.Any("Error", ErrNoCube))
		return Ct.Snapshot{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return Ct.Snapshot{
		ID:                uuid.NewString(),
		Timestamp:         c.now(),
		DrillLevels:       c.state.LevelInfo(c.cfg.Registry),
		PivotState:        c.state.pivotMap(),
		DiceFilters:       c.state.diceCopy(),
		ValueFilter:       c.state.rangeCopy(),
		SliceByAxis:       c.state.sliceMap(),
		OperationHistory:  c.state.History.List(),
		CurrentMeasure:    c.state.Measure,
		VisibleDimensions: append([]Ct.Dimension(nil), c.state.Visible...),
		VisibleCells:      countVisible(c.cells),
		TotalCells:        len(c.cells),
	}
}
