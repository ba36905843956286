package cubeview_test

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	Cd "github.com/maroda/cubeview/display"
	Co "github.com/maroda/cubeview/obvy"
	Cp "github.com/maroda/cubeview/plugin"
	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

func TestScreen(t *testing.T) {
	s := mkTestScreen(t, "")
	defer s.Fini()
	s.Clear()

	t.Run("Check test screen", func(t *testing.T) {
		b, x, y := s.GetContents()
		if len(b) != x*y || x != 80 || y != 25 {
			t.Fatalf("Contents (%v, %v, %v) wrong", len(b), x, y)
		}
		for i := 0; i < x*y; i++ {
			if len(b[i].Runes) == 1 && b[i].Runes[0] != ' ' {
				t.Errorf("Incorrect contents at %v: %v", i, b[i].Runes)
			}
			if b[i].Style != tcell.StyleDefault {
				t.Errorf("Incorrect style at %v: %v", i, b[i].Style)
			}
		}
	})
}

func TestNewView(t *testing.T) {
	t.Run("Needs a cube", func(t *testing.T) {
		_, err := Cd.NewView(nil, nil, nil)
		assertError(t, err, Cs.ErrNoCube)
	})

	t.Run("Draws the session header", func(t *testing.T) {
		view, s := makeTestViewWithScreen(t)
		defer s.Fini()

		assertStringContains(t, screenRow(s, 1), "measure: packages")
		assertStringContains(t, screenRow(s, 2), "time: quarter (2/3)")
		assertStringContains(t, screenRow(s, 3), "x: source")
		assertStringContains(t, screenRow(s, 4), "visible 96/96")
		assertStringContains(t, screenRow(s, 6), "> Africa")

		if view.Stats == nil {
			t.Error("NewView() should create stats")
		}
	})
}

func TestView_HandleKey(t *testing.T) {
	tests := []struct {
		name  string
		keys  []rune
		check func(t *testing.T, v *Cd.View)
	}{
		{
			name: "d drills down",
			keys: []rune{'d'},
			check: func(t *testing.T, v *Cd.View) {
				assertStringContains(t, v.Cube.CurrentLevelDescription(), "time: date (3/3)")
			},
		},
		{
			name: "u drills up",
			keys: []rune{'u'},
			check: func(t *testing.T, v *Cd.View) {
				assertStringContains(t, v.Cube.CurrentLevelDescription(), "time: half (1/3)")
			},
		},
		{
			name: "m cycles the measure",
			keys: []rune{'m', 'm'},
			check: func(t *testing.T, v *Cd.View) {
				if v.Cube.Measure() != Ct.Growth {
					t.Errorf("got measure %s, want growth", v.Cube.Measure())
				}
			},
		},
		{
			name: "p swaps x and y",
			keys: []rune{'p'},
			check: func(t *testing.T, v *Cd.View) {
				if v.Cube.PivotState()[Ct.AxisX] != Ct.Route {
					t.Errorf("got pivot %v, want route on x", v.Cube.PivotState())
				}
			},
		},
		{
			name: "x slices at the selected cell",
			keys: []rune{'x'},
			check: func(t *testing.T, v *Cd.View) {
				assertInt(t, len(v.Cube.VisibleCells()), 16)
			},
		},
		{
			name: "s clears the slices",
			keys: []rune{'z', 's'},
			check: func(t *testing.T, v *Cd.View) {
				assertInt(t, len(v.Cube.VisibleCells()), 96)
			},
		},
		{
			name: "2 hides the route dimension",
			keys: []rune{'2'},
			check: func(t *testing.T, v *Cd.View) {
				assertInt(t, len(v.Cube.VisibleDimensions()), 2)
			},
		},
		{
			name: "f filters at the selected cell value",
			keys: []rune{'f'},
			check: func(t *testing.T, v *Cd.View) {
				if !v.Cube.Statistics().ValueFilter {
					t.Fatal("value filter should be active")
				}
				// the first cell holds the smallest value
				assertInt(t, len(v.Cube.VisibleCells()), 96)
			},
		},
		{
			name: "f again drops the value filter",
			keys: []rune{'f', 'f'},
			check: func(t *testing.T, v *Cd.View) {
				if v.Cube.Statistics().ValueFilter {
					t.Error("value filter should be removed")
				}
				last, _ := v.Cube.LastOperation()
				if last.Operation != Ct.OpClearFilter {
					t.Errorf("got last operation %s, want %s", last.Operation, Ct.OpClearFilter)
				}
			},
		},
		{
			name: "t opens and closes the detail",
			keys: []rune{'t'},
			check: func(t *testing.T, v *Cd.View) {
				if !v.ShowDetail {
					t.Fatal("detail should be open")
				}
				v.HandleKey(tcell.NewEventKey(tcell.KeyRune, 't', tcell.ModNone))
				if v.ShowDetail {
					t.Error("detail should be closed")
				}
			},
		},
		{
			name: "c clears all operations",
			keys: []rune{'d', 'x', 'c'},
			check: func(t *testing.T, v *Cd.View) {
				assertInt(t, len(v.Cube.VisibleCells()), 96)
				assertInt(t, len(v.Cube.History()), 1)
			},
		},
		{
			name: "e exports through the output",
			keys: []rune{'e'},
			check: func(t *testing.T, v *Cd.View) {
				snaps, err := v.Output.QueryRange(time.Unix(0, 0), time.Now())
				assertError(t, err, nil)
				assertInt(t, len(snaps), 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, s := makeTestViewWithScreen(t)
			defer s.Fini()
			view.Output = Cp.NewMemoryOutput()

			for _, k := range tt.keys {
				if !view.HandleKey(tcell.NewEventKey(tcell.KeyRune, k, tcell.ModNone)) {
					t.Fatalf("key %q asked to quit", k)
				}
			}
			tt.check(t, view)
		})
	}

	t.Run("q and ESC quit", func(t *testing.T) {
		view := makeTestView(t)
		if view.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
			t.Error("q should quit")
		}
		if view.HandleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
			t.Error("ESC should quit")
		}
	})

	t.Run("Arrows move the selection", func(t *testing.T) {
		view := makeTestView(t)
		view.HandleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
		view.HandleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
		view.HandleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))
		assertInt(t, view.Selected, 1)

		view.HandleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))
		view.HandleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))
		assertInt(t, view.Selected, 0)
	})
}

func TestView_HandleMouseClick(t *testing.T) {
	view, s := makeTestViewWithScreen(t)
	defer s.Fini()

	view.HandleMouseClick(10, 8)
	assertInt(t, view.Selected, 2)

	// header rows select nothing
	view.HandleMouseClick(10, 1)
	assertInt(t, view.Selected, 2)
}

func TestBarLength(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		top   float64
		want  int
	}{
		{"maximum fills the width", 690, 690, 30},
		{"half fills half", 345, 690, 15},
		{"tiny values still show", 1, 690, 1},
		{"zero shows nothing", 0, 690, 0},
		{"no maximum shows nothing", 10, 0, 0},
		{"overflow is capped", 900, 690, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertInt(t, Cd.BarLength(tt.value, tt.top, 30), tt.want)
		})
	}
}

func mkTestScreen(t *testing.T, charset string) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen(charset)
	if s == nil {
		t.Fatalf("Failed to get SimulationScreen")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Failed to init screen: %v", err)
	}
	return s
}

func makeTestViewWithScreen(t *testing.T) (*Cd.View, tcell.SimulationScreen) {
	t.Helper()
	s := mkTestScreen(t, "")

	cube, err := Cs.NewCube(Cs.DefaultConfig())
	assertError(t, err, nil)

	view, err := Cd.NewView(cube, Co.NewStatsInternal(), s)
	assertError(t, err, nil)
	return view, s
}

// screenRow reads back one row of the simulation screen
func screenRow(s tcell.SimulationScreen, y int) string {
	cells, width, _ := s.GetContents()
	var b strings.Builder
	for x := 0; x < width; x++ {
		c := cells[y*width+x]
		if len(c.Runes) == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return b.String()
}
