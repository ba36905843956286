package cubeview_test

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"

	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

// Temporary OS file to use for testing configurations
func createTempFile(t testing.TB, data string) (*os.File, func()) {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "cube")
	if err != nil {
		t.Fatalf("could not create temp file %v", err)
	}

	tmpfile.Write([]byte(data))
	removeFile := func() {
		tmpfile.Close()
		os.Remove(tmpfile.Name())
	}
	return tmpfile, removeFile
}

// testConfigFile keeps the built-in facts folded into quarter totals,
// flattens route to a single level and stops time at quarters,
// so every default cell is a stored fact.
func testConfigFile() *Cs.ConfigFile {
	cf := Cs.DefaultConfigFile()
	foldQuarters(cf)
	cf.Hierarchies = map[string]Cs.HierarchyFile{
		"source": {
			Levels: []Cs.LevelFile{
				{
					Name:   "hemisphere",
					Values: []string{"Eastern Hemisphere", "Western Hemisphere"},
					AggregationMap: map[string][]string{
						"Eastern Hemisphere": {"Africa", "Asia", "Australia", "Europe"},
						"Western Hemisphere": {"North America", "South America"},
					},
				},
				{
					Name:   "region",
					Values: []string{"Africa", "Asia", "Australia", "Europe", "North America", "South America"},
				},
			},
			CurrentLevel: 1,
		},
		"route": {
			Levels: []Cs.LevelFile{
				{Name: "method", Values: []string{"ground", "rail", "sea", "air"}},
			},
		},
		"time": {
			Levels: []Cs.LevelFile{
				{
					Name:   "half",
					Values: []string{"1st half", "2nd half"},
					AggregationMap: map[string][]string{
						"1st half": {"Q1", "Q2"},
						"2nd half": {"Q3", "Q4"},
					},
				},
				{Name: "quarter", Values: []string{"Q1", "Q2", "Q3", "Q4"}},
			},
			CurrentLevel: 1,
		},
	}
	return cf
}

// foldQuarters sums the built-in per-date facts back into [region][quarter] grids
func foldQuarters(cf *Cs.ConfigFile) {
	quarters := cf.Hierarchies["time"].Levels[1]
	col := make(map[string]int)
	for i, d := range cf.Dimensions["time"] {
		col[d] = i
	}

	for name, grid := range cf.Measures {
		folded := make([][]float64, len(grid))
		for r, row := range grid {
			folded[r] = make([]float64, len(quarters.Values))
			for q, quarter := range quarters.Values {
				var sum float64
				for _, d := range quarters.AggregationMap[quarter] {
					sum += row[col[d]]
				}
				folded[r][q] = math.Round(sum*10) / 10
			}
		}
		cf.Measures[name] = folded
	}
	cf.Dimensions["time"] = append([]string(nil), quarters.Values...)
}

func testConfig(t testing.TB) *Cs.Config {
	t.Helper()
	cfg, err := Cs.NewConfig(testConfigFile())
	if err != nil {
		t.Fatalf("could not build test config: %v", err)
	}
	return cfg
}

func TestLoadConfigFileName(t *testing.T) {
	raw, err := json.Marshal(Cs.DefaultConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	configFile, delConfig := createTempFile(t, string(raw))
	defer delConfig()
	fileName := configFile.Name()

	t.Run("Loads the measures", func(t *testing.T) {
		loadConfig, err := Cs.LoadConfigFileName(fileName)

		assertError(t, err, nil)
		assertInt(t, len(loadConfig.Measures), 3)
		assertInt(t, len(loadConfig.Measures["packages"][0]), 24)
		assertInt(t, int(loadConfig.Measures["packages"][0][0]), 15)
	})

	t.Run("Loads the hierarchies", func(t *testing.T) {
		loadConfig, err := Cs.LoadConfigFileName(fileName)

		assertError(t, err, nil)
		assertString(t, loadConfig.Hierarchies["time"].Levels[2].Name, "date")
		assertInt(t, loadConfig.Hierarchies["time"].CurrentLevel, 1)
	})

	t.Run("Errors with malformed JSON", func(t *testing.T) {
		configFile, delConfig := createTempFile(t, `{"dimensions": {"source": [`)
		defer delConfig()

		_, err := Cs.LoadConfigFileName(configFile.Name())
		assertGotError(t, err)
	})

	t.Run("Errors with unknown fields", func(t *testing.T) {
		configFile, delConfig := createTempFile(t, `{"cubes": []}`)
		defer delConfig()

		_, err := Cs.LoadConfigFileName(configFile.Name())
		assertGotError(t, err)
	})

	t.Run("Errors with an empty file", func(t *testing.T) {
		configFile, delConfig := createTempFile(t, "")
		defer delConfig()

		_, err := Cs.LoadConfigFileName(configFile.Name())
		assertGotError(t, err)
	})

	t.Run("Errors with a missing file", func(t *testing.T) {
		_, err := Cs.LoadConfigFileName("/nonexistent/cube.json")
		assertGotError(t, err)
	})
}

func TestNewConfig(t *testing.T) {
	t.Run("Builds the default config", func(t *testing.T) {
		cfg, err := Cs.NewConfig(Cs.DefaultConfigFile())

		assertError(t, err, nil)
		assertInt(t, cfg.Registry.Depth(Ct.Time), 3)
		assertInt(t, len(cfg.DefaultDimensions), 3)
		if cfg.DefaultMeasure != Ct.Packages {
			t.Errorf("got measure %s, want packages", cfg.DefaultMeasure)
		}
	})

	t.Run("Rejects a nil config file", func(t *testing.T) {
		_, err := Cs.NewConfig(nil)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects a missing hierarchy", func(t *testing.T) {
		cf := testConfigFile()
		delete(cf.Hierarchies, "route")

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects an unknown dimension", func(t *testing.T) {
		cf := testConfigFile()
		cf.Hierarchies["weather"] = cf.Hierarchies["route"]

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects an unknown measure", func(t *testing.T) {
		cf := testConfigFile()
		cf.Measures["weight"] = [][]float64{{1}}

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects a grid wider than the base times", func(t *testing.T) {
		cf := testConfigFile()
		cf.Measures["growth"] = [][]float64{{1, 2, 3, 4, 5}}

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects a default level out of range", func(t *testing.T) {
		cf := testConfigFile()
		h := cf.Hierarchies["time"]
		h.CurrentLevel = 2
		cf.Hierarchies["time"] = h

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects facts keyed above the terminal level", func(t *testing.T) {
		cf := Cs.DefaultConfigFile()
		foldQuarters(cf)

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects fact sources missing from the terminal level", func(t *testing.T) {
		cf := testConfigFile()
		cf.Dimensions["source"][5] = "Antarctica"

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Rejects repeated fact keys", func(t *testing.T) {
		cf := testConfigFile()
		cf.Dimensions["time"][3] = "Q1"

		_, err := Cs.NewConfig(cf)
		assertError(t, err, Cs.ErrInvalidConfig)
	})

	t.Run("Accepts a config without facts", func(t *testing.T) {
		cf := testConfigFile()
		cf.Measures = nil
		cf.Dimensions = nil

		_, err := Cs.NewConfig(cf)
		assertError(t, err, nil)
	})

	t.Run("Falls back to packages for an unknown current measure", func(t *testing.T) {
		cf := testConfigFile()
		cf.CurrentMeasure = "weight"

		cfg, err := Cs.NewConfig(cf)
		assertError(t, err, nil)
		if cfg.DefaultMeasure != Ct.Packages {
			t.Errorf("got measure %s, want packages", cfg.DefaultMeasure)
		}
	})

	t.Run("Shows every dimension when none are listed", func(t *testing.T) {
		cf := testConfigFile()
		cf.CurrentDimensions = nil

		cfg, err := Cs.NewConfig(cf)
		assertError(t, err, nil)
		assertInt(t, len(cfg.DefaultDimensions), 3)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := Cs.DefaultConfig()
	assertError(t, cfg.Registry.Validate(), nil)

	t.Run("Stores facts per date", func(t *testing.T) {
		got, ok := cfg.Facts.Lookup(Ct.Packages, "Africa", "Feb-17-99")
		if !ok {
			t.Fatal("expected a stored fact for Africa/Feb-17-99")
		}
		assertFloat(t, got, 15)

		if _, ok := cfg.Facts.Lookup(Ct.Packages, "Africa", "Q1"); ok {
			t.Error("quarters are not fact keys")
		}
	})

	t.Run("Default cells read the recorded quarter totals", func(t *testing.T) {
		cube, err := Cs.NewCube(cfg)
		assertError(t, err, nil)

		first := cube.Project()[0]
		assertString(t, first.Source, "Africa")
		assertString(t, first.Route, "road")
		assertString(t, first.Time, "Q1")
		assertFloat(t, first.Value, 100)

		tests := []struct {
			source, time string
			m            Ct.Measure
			want         float64
		}{
			{"Africa", "Q1", Ct.Packages, 100},
			{"Europe", "Q4", Ct.Packages, 690},
			{"South America", "Q2", Ct.Packages, 490},
			{"Europe", "Q4", Ct.Revenue, 10695},
			{"Asia", "Q2", Ct.Revenue, 6355},
			{"North America", "Q3", Ct.Growth, 22},
			{"Africa", "Q1", Ct.Growth, 5},
		}
		for _, tt := range tests {
			assertFloat(t, cube.ValueAt(tt.source, "air", tt.time, tt.m), tt.want)
		}
	})

	t.Run("Halves sum the quarter totals", func(t *testing.T) {
		agg := Cs.NewAggregator(cfg)
		got := agg.ValueAt(Cs.LevelVector{1, 1, 0}, "Africa", "road", "1st half", Ct.Packages)
		assertFloat(t, got, 100+215)
	})

	t.Run("Drilling up sums the quarter totals", func(t *testing.T) {
		cube, err := Cs.NewCube(cfg)
		assertError(t, err, nil)
		cube.DrillUp(context.Background())

		first := cube.Project()[0]
		assertString(t, first.Source, "Eastern Hemisphere")
		assertString(t, first.Route, "ground")
		assertString(t, first.Time, "1st half")
		// two ground methods, each reading the same region totals
		assertFloat(t, first.Value, 2*((100+215)+(310+410)+(210+240)+(500+470)))
	})
}
