package cubeview

import (
	"errors"
	"fmt"
	"log/slog"

	Ct "github.com/maroda/cubeview/types"
)

var ErrNoOutput = errors.New("no output configured")

// Export takes a snapshot of the cube and writes it through the Output,
// flushing so the snapshot is immediately queryable
func (v *View) Export() (Ct.Snapshot, error) {
	snap := v.cube().ExportState()
	if v.Output == nil {
		slog.Error("Export requested without an output", slog.Any("Error", ErrNoOutput))
		return snap, ErrNoOutput
	}

	err := v.Output.WriteSnapshot(&snap)
	if err == nil {
		err = v.Output.Flush()
	}
	if v.Stats != nil {
		v.Stats.RecExport(v.Output.Type(), err)
	}
	if err != nil {
		slog.Error("Export failed",
			slog.String("output", v.Output.Type()),
			slog.Any("Error", err))
		return snap, fmt.Errorf("export to %s: %w", v.Output.Type(), err)
	}

	slog.Info("Snapshot exported",
		slog.String("output", v.Output.Type()),
		slog.String("id", snap.ID))
	return snap, nil
}
