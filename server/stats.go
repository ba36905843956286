package cubeview

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	Ct "github.com/maroda/cubeview/types"
)

// GetStatistics summarizes values; an empty slice yields all zeros.
// Avg is rounded to two decimals.
func GetStatistics(values []float64) Ct.Statistics {
	if len(values) == 0 {
		return Ct.Statistics{}
	}

	return Ct.Statistics{
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Avg:   roundHalfUp(stat.Mean(values, nil)*100) / 100,
		Sum:   floats.Sum(values),
		Count: len(values),
	}
}
