package cubeview_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

func TestNewHierarchy(t *testing.T) {
	valid := func() Cs.HierarchyFile {
		return Cs.HierarchyFile{
			Levels: []Cs.LevelFile{
				{
					Name:           "transport_type",
					Values:         []string{"ground", "nonground"},
					AggregationMap: map[string][]string{"ground": {"road", "rail"}, "nonground": {"sea", "air"}},
				},
				{Name: "method", Values: []string{"road", "rail", "sea", "air"}},
			},
			CurrentLevel: 1,
		}
	}

	t.Run("Accepts a valid ladder", func(t *testing.T) {
		h, err := Cs.NewHierarchy(Ct.Route, valid())

		assertError(t, err, nil)
		assertInt(t, h.Depth(), 2)
		assertInt(t, h.DefaultLevel, 1)
	})

	tests := []struct {
		name   string
		modify func(*Cs.HierarchyFile)
		want   error
	}{
		{"no levels", func(hf *Cs.HierarchyFile) { hf.Levels = nil }, Cs.ErrInvalidConfig},
		{"empty level", func(hf *Cs.HierarchyFile) { hf.Levels[1].Values = nil }, Cs.ErrInvalidConfig},
		{"repeated value", func(hf *Cs.HierarchyFile) {
			hf.Levels[1].Values = []string{"road", "road", "sea", "air"}
		}, Cs.ErrInvalidConfig},
		{"child missing from next level", func(hf *Cs.HierarchyFile) {
			hf.Levels[0].AggregationMap["ground"] = []string{"road", "canal"}
		}, Cs.ErrInvalidHierarchyMap},
		{"value maps to itself", func(hf *Cs.HierarchyFile) {
			hf.Levels[1].Values = append(hf.Levels[1].Values, "ground")
			hf.Levels[0].AggregationMap["ground"] = []string{"ground"}
		}, Cs.ErrInvalidHierarchyMap},
		{"parent missing from its level", func(hf *Cs.HierarchyFile) {
			hf.Levels[0].AggregationMap["orbital"] = []string{"air"}
		}, Cs.ErrInvalidHierarchyMap},
		{"empty children", func(hf *Cs.HierarchyFile) {
			hf.Levels[0].AggregationMap["ground"] = []string{}
		}, Cs.ErrInvalidHierarchyMap},
		{"terminal level maps", func(hf *Cs.HierarchyFile) {
			hf.Levels[1].AggregationMap = map[string][]string{"road": {"rail"}}
		}, Cs.ErrInvalidHierarchyMap},
		{"default level too deep", func(hf *Cs.HierarchyFile) { hf.CurrentLevel = 2 }, Cs.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run("Rejects "+tt.name, func(t *testing.T) {
			hf := valid()
			tt.modify(&hf)

			_, err := Cs.NewHierarchy(Ct.Route, hf)
			assertError(t, err, tt.want)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := Cs.DefaultConfig().Registry

	t.Run("Expands a mapped value", func(t *testing.T) {
		got := reg.ChildrenOf(Ct.Time, 0, "1st half")
		want := []string{"Q1", "Q2"}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Passes through an unmapped value", func(t *testing.T) {
		got := reg.ChildrenOf(Ct.Time, 0, "3rd half")
		if diff := cmp.Diff([]string{"3rd half"}, got); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Passes through at the terminal level", func(t *testing.T) {
		got := reg.ChildrenOf(Ct.Source, 1, "Asia")
		if diff := cmp.Diff([]string{"Asia"}, got); diff != "" {
			t.Errorf("children mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Reports drill limits", func(t *testing.T) {
		if !reg.CanDrillDown(Ct.Time, 1) {
			t.Error("time should drill down from quarter")
		}
		if reg.CanDrillDown(Ct.Time, 2) {
			t.Error("time should not drill down from date")
		}
		if reg.CanDrillUp(Ct.Source, 0) {
			t.Error("source should not drill up from hemisphere")
		}
		if !reg.IsTerminal(Ct.Route, 1) {
			t.Error("method should be terminal")
		}
	})

	t.Run("Finds values by index", func(t *testing.T) {
		i, ok := reg.IndexOf(Ct.Source, 1, "Europe")
		if !ok {
			t.Fatal("Europe not found")
		}
		assertInt(t, i, 3)

		_, ok = reg.IndexOf(Ct.Source, 1, "Atlantis")
		if ok {
			t.Error("Atlantis should not be found")
		}
	})

	t.Run("Names levels and defaults", func(t *testing.T) {
		if diff := cmp.Diff([]string{"half", "quarter", "date"}, reg.LevelNames(Ct.Time)); diff != "" {
			t.Errorf("level names mismatch (-want +got):\n%s", diff)
		}
		if got := reg.Defaults(); got != (Cs.LevelVector{1, 1, 1}) {
			t.Errorf("got defaults %v, want [1 1 1]", got)
		}
		assertString(t, reg.LevelName(Ct.Route, 0), "transport_type")
	})
}
