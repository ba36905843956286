package cubeview

import (
	"log/slog"

	Cp "github.com/maroda/cubeview/plugin"
	Cs "github.com/maroda/cubeview/server"
)

// InitOutput attaches the named snapshot output to the view.
// The batch size can be tuned with CUBEVIEW_PLUGIN_BATCH_SIZE.
func InitOutput(view *View, name, path string) error {
	batch := Cs.FillEnvVarInt("CUBEVIEW_PLUGIN_BATCH_SIZE", 1)

	output, err := Cp.OutputLookup(name, Cp.OutputConfig{Path: path, BatchSize: batch})
	if err != nil {
		slog.Error("Failed to create adapter",
			slog.String("output", name),
			slog.Any("error", err))
		return err
	}
	view.Output = output
	slog.Info("Output Adapter Enabled",
		slog.String("output", output.Type()),
		slog.String("path", path),
		slog.Int("batchSize", batch))
	return nil
}
