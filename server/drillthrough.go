package cubeview

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	Ct "github.com/maroda/cubeview/types"
)

const transactionType = "Package Shipment"

var drillYear = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DrillThrough expands a cell into synthetic transactions that sum to its value.
// With a nil cell the first visible cell is used.
func (c *Cube) DrillThrough(ctx context.Context, cell *Ct.Cell) (Ct.DrillThrough, Ct.Outcome) {
	if c == nil {
		return Ct.DrillThrough{}, noCube(Ct.OpDrillThrough)
	}
	_, span := c.tracer.Start(ctx, "cube.drill_through")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	var target Ct.Cell
	switch {
	case cell != nil:
		target = *cell
	default:
		found := false
		for _, cc := range c.cells {
			if cc.Visible {
				target, found = cc, true
				break
			}
		}
		if !found {
			return Ct.DrillThrough{}, c.skipped(span, Ct.OpDrillThrough,
				"No data available for drill-through", fmt.Errorf("drill-through: %w", ErrNoCell))
		}
	}
	span.SetAttributes(
		attribute.String("source", target.Source),
		attribute.String("route", target.Route),
		attribute.String("time", target.Time))

	txns := GenerateTransactions(c.rng, target.Value)
	amounts := make([]float64, len(txns))
	for i, t := range txns {
		amounts[i] = t.Amount
	}

	detail := Ct.DrillThrough{
		BatchID:      uuid.NewString(),
		Summary:      fmt.Sprintf("%s → %s → %s", target.Source, target.Route, target.Time),
		Value:        target.Value,
		Cell:         target,
		Transactions: txns,
		Statistics:   GetStatistics(amounts),
		Breakdown:    c.breakdown(target),
		Coordinates:  fmt.Sprintf("(%d, %d, %d)", target.SourceIndex, target.RouteIndex, target.TimeIndex),
		Granularity:  c.describeLevels(),
		GeneratedAt:  c.now(),
	}
	span.AddEvent("transactions", trace.WithAttributes(
		attribute.String("batch", detail.BatchID), attribute.Int("transactions", len(txns))))

	c.record(Ct.OpDrillThrough, map[string]any{
		"cellData": map[string]any{
			"source": target.Source,
			"route":  target.Route,
			"time":   target.Time,
			"value":  target.Value,
		},
		"batchId": detail.BatchID,
	})

	return detail, c.applied(span, Ct.OpDrillThrough,
		fmt.Sprintf("Drill-through on %s: %d transactions", detail.Summary, len(txns)))
}

// GenerateTransactions splits value into 2 to 5 transactions.
// Every amount but the last is floor(remaining * U[0.2, 0.4]);
// the last takes what remains, so the amounts always sum to value.
func GenerateTransactions(rng *rand.Rand, value float64) []Ct.Transaction {
	n := 2 + rng.IntN(4)
	txns := make([]Ct.Transaction, n)
	remaining := value

	for i := 0; i < n; i++ {
		amount := remaining
		if i < n-1 {
			amount = math.Floor(remaining * (0.2 + rng.Float64()*0.2))
			remaining -= amount
		}
		txns[i] = Ct.Transaction{
			ID:     fmt.Sprintf("TXN-%03d", i+1),
			Amount: amount,
			Date:   randomDate(rng),
			Type:   transactionType,
		}
	}

	return txns
}

// randomDate picks a day in 2024
func randomDate(rng *rand.Rand) string {
	end := drillYear.AddDate(1, 0, 0)
	span := end.Sub(drillYear)
	return drillYear.Add(time.Duration(rng.Int64N(int64(span)))).Format(time.DateOnly)
}

// HierarchicalBreakdown describes where a cell sits in every hierarchy
func (c *Cube) HierarchicalBreakdown(cell Ct.Cell) map[Ct.Dimension]Ct.DimensionBreakdown {
	if c == nil {
		return map[Ct.Dimension]Ct.DimensionBreakdown{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.breakdown(cell)
}

func (c *Cube) breakdown(cell Ct.Cell) map[Ct.Dimension]Ct.DimensionBreakdown {
	reg := c.cfg.Registry
	out := make(map[Ct.Dimension]Ct.DimensionBreakdown, len(Ct.Dimensions))
	for _, dim := range Ct.Dimensions {
		lvl := c.state.Levels[dim]
		value := cell.Category(dim)
		b := Ct.DimensionBreakdown{
			CurrentLevel:    reg.LevelName(dim, lvl),
			CurrentValue:    value,
			AvailableLevels: reg.LevelNames(dim),
			CanDrillDown:    reg.CanDrillDown(dim, lvl),
			CanDrillUp:      reg.CanDrillUp(dim, lvl),
			LevelPosition:   fmt.Sprintf("%d/%d", lvl+1, reg.Depth(dim)),
		}
		if !reg.IsTerminal(dim, lvl) {
			kids := reg.ChildrenOf(dim, lvl, value)
			if len(kids) != 1 || kids[0] != value {
				b.Children = append([]string(nil), kids...)
			}
		}
		out[dim] = b
	}
	return out
}
