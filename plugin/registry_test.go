package plugin_test

import (
	"testing"
	"time"

	Cp "github.com/maroda/cubeview/plugin"
)

func TestOutputLookup(t *testing.T) {
	t.Run("Returns known outputs", func(t *testing.T) {
		for name, want := range map[string]string{"badger": "BadgerDB", "memory": "Memory"} {
			got, err := Cp.OutputLookup(name, Cp.OutputConfig{BatchSize: 1})
			assertError(t, err, nil)
			assertStringContains(t, got.Type(), want)
			assertError(t, got.Close(), nil)
		}
	})

	t.Run("Returns error if outputs don't exist", func(t *testing.T) {
		unknown := "craquemattic"
		_, err := Cp.OutputLookup(unknown, Cp.OutputConfig{})
		assertGotError(t, err)
	})
}

func TestMemoryOutput(t *testing.T) {
	mo := Cp.NewMemoryOutput()
	start := time.Now()

	// written out of order on purpose
	assertError(t, mo.WriteSnapshot(makeSnapshot(start.Add(2*time.Second))), nil)
	assertError(t, mo.WriteSnapshot(makeSnapshot(start)), nil)
	assertError(t, mo.WriteSnapshot(makeSnapshot(start.Add(time.Second))), nil)

	t.Run("Queries a range in time order", func(t *testing.T) {
		got, err := mo.QueryRange(start, start.Add(time.Second))
		assertError(t, err, nil)
		assertInt(t, len(got), 2)
		if got[0].Timestamp.After(got[1].Timestamp) {
			t.Error("snapshots out of order")
		}
	})

	t.Run("Flushes and closes cleanly", func(t *testing.T) {
		assertError(t, mo.Flush(), nil)
		assertError(t, mo.Close(), nil)
	})
}
