package cubeview_test

import (
	"testing"
	"time"

	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

func TestHistory(t *testing.T) {
	rec := func(pos int) Ct.HistoryRecord {
		return Ct.HistoryRecord{
			Operation:  Ct.OpSlice,
			Parameters: map[string]any{"position": pos},
			Timestamp:  time.Unix(int64(pos), 0),
		}
	}

	t.Run("Lists records oldest first", func(t *testing.T) {
		h := Cs.NewHistory(5)
		for i := 0; i < 3; i++ {
			h.Add(rec(i))
		}
		got := h.List()

		assertInt(t, len(got), 3)
		assertInt(t, got[0].Parameters["position"].(int), 0)
		assertInt(t, got[2].Parameters["position"].(int), 2)
	})

	t.Run("Evicts the oldest when full", func(t *testing.T) {
		h := Cs.NewHistory(Cs.DefaultHistoryCapacity)
		for i := 0; i < 60; i++ {
			h.Add(rec(i))
		}
		got := h.List()

		assertInt(t, h.Len(), 50)
		assertInt(t, len(got), 50)
		assertInt(t, got[0].Parameters["position"].(int), 10)
		assertInt(t, got[49].Parameters["position"].(int), 59)

		last, ok := h.Last()
		if !ok {
			t.Fatal("expected a last record")
		}
		assertInt(t, last.Parameters["position"].(int), 59)
	})

	t.Run("Uses the default capacity below one", func(t *testing.T) {
		h := Cs.NewHistory(0)
		assertInt(t, h.Cap(), Cs.DefaultHistoryCapacity)
	})

	t.Run("Resets to empty", func(t *testing.T) {
		h := Cs.NewHistory(3)
		h.Add(rec(1))
		h.Reset()

		assertInt(t, h.Len(), 0)
		assertInt(t, len(h.List()), 0)
		if _, ok := h.Last(); ok {
			t.Error("expected no last record after reset")
		}
	})
}
