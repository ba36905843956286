package cubeview_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

func TestGenerateTransactions(t *testing.T) {
	values := []float64{0, 1, 2, 7, 100, 2455, 12345, 1e9}

	for _, v := range values {
		t.Run(fmt.Sprintf("Conserves %v", v), func(t *testing.T) {
			for seed := uint64(0); seed < 200; seed++ {
				rng := rand.New(rand.NewPCG(seed, seed*7+1))
				txns := Cs.GenerateTransactions(rng, v)

				if len(txns) < 2 || len(txns) > 5 {
					t.Fatalf("got %d transactions, want 2 to 5", len(txns))
				}
				var sum float64
				for _, txn := range txns {
					if txn.Amount < 0 {
						t.Errorf("negative amount %v for value %v", txn.Amount, v)
					}
					sum += txn.Amount
				}
				if sum != v {
					t.Fatalf("amounts sum to %v, want %v", sum, v)
				}
			}
		})
	}

	t.Run("Numbers and dates the transactions", func(t *testing.T) {
		txns := Cs.GenerateTransactions(rand.New(rand.NewPCG(3, 4)), 500)

		for i, txn := range txns {
			assertString(t, txn.ID, fmt.Sprintf("TXN-%03d", i+1))
			assertString(t, txn.Type, "Package Shipment")

			d, err := time.Parse(time.DateOnly, txn.Date)
			assertError(t, err, nil)
			assertInt(t, d.Year(), 2024)
		}
	})

	t.Run("Produces every count from 2 to 5", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(9, 9))
		seen := map[int]bool{}
		for i := 0; i < 200; i++ {
			seen[len(Cs.GenerateTransactions(rng, 100))] = true
		}
		for n := 2; n <= 5; n++ {
			if !seen[n] {
				t.Errorf("never generated %d transactions", n)
			}
		}
	})
}

func TestDrillThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("Expands a given cell", func(t *testing.T) {
		cube := newTestCube(t)
		cell := cube.Project()[5]

		detail, out := cube.DrillThrough(ctx, &cell)
		if !out.Applied {
			t.Fatalf("drill-through not applied: %s", out.Message)
		}

		var sum float64
		for _, txn := range detail.Transactions {
			sum += txn.Amount
		}
		assertFloat(t, sum, cell.Value)
		assertFloat(t, detail.Statistics.Sum, cell.Value)
		assertString(t, detail.Summary, "Africa → rail → Q2")
		assertString(t, detail.Coordinates, "(0, 1, 1)")
		assertString(t, detail.Granularity, cube.CurrentLevelDescription())
		if detail.BatchID == "" {
			t.Error("expected a batch id")
		}
		if !detail.GeneratedAt.Equal(fixedNow) {
			t.Errorf("got generatedAt %v, want %v", detail.GeneratedAt, fixedNow)
		}
	})

	t.Run("Falls back to the first visible cell", func(t *testing.T) {
		cube := newTestCube(t)
		cube.Slice(ctx, Ct.AxisX, 2)

		detail, out := cube.DrillThrough(ctx, nil)
		if !out.Applied {
			t.Fatalf("drill-through not applied: %s", out.Message)
		}
		assertString(t, detail.Cell.Source, "Australia")
		assertString(t, detail.Cell.Time, "Q1")
	})

	t.Run("Warns when nothing is visible", func(t *testing.T) {
		cube := newTestCube(t)
		cube.Dice(ctx, []Ct.Filter{{Dimension: Ct.Source, Values: []string{"Atlantis"}}})
		before := len(cube.History())

		_, out := cube.DrillThrough(ctx, nil)
		assertError(t, out.Err, Cs.ErrNoCell)
		assertInt(t, len(cube.History()), before)
	})

	t.Run("Records the cell in history", func(t *testing.T) {
		cube := newTestCube(t)
		cube.DrillThrough(ctx, nil)

		history := cube.History()
		assertInt(t, len(history), 1)
		cellData := history[0].Parameters["cellData"].(map[string]any)
		assertString(t, cellData["source"].(string), "Africa")
	})

	t.Run("Describes the hierarchy around the cell", func(t *testing.T) {
		cube, err := Cs.NewCube(Cs.DefaultConfig())
		assertError(t, err, nil)
		cube.DrillUp(ctx)
		cell := cube.Project()[0]

		detail, _ := cube.DrillThrough(ctx, &cell)
		src := detail.Breakdown[Ct.Source]

		assertString(t, src.CurrentLevel, "hemisphere")
		assertString(t, src.CurrentValue, "Eastern Hemisphere")
		assertString(t, src.LevelPosition, "1/2")
		if !src.CanDrillDown || src.CanDrillUp {
			t.Errorf("unexpected drill flags %+v", src)
		}
		if diff := cmp.Diff([]string{"Africa", "Asia", "Australia", "Europe"}, src.Children); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"half", "quarter", "date"}, detail.Breakdown[Ct.Time].AvailableLevels); diff != "" {
			t.Errorf("levels mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Leaves children out at the terminal level", func(t *testing.T) {
		cube := newTestCube(t)
		breakdown := cube.HierarchicalBreakdown(cube.Project()[0])

		if breakdown[Ct.Source].Children != nil {
			t.Errorf("terminal level should have no children, got %v", breakdown[Ct.Source].Children)
		}
		assertString(t, breakdown[Ct.Time].LevelPosition, "2/2")
	})
}
