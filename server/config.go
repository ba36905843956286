package cubeview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	Ct "github.com/maroda/cubeview/types"
)

// LevelFile is one hierarchy level as written on disk
type LevelFile struct {
	Name           string              `json:"name"`
	Values         []string            `json:"values"`
	AggregationMap map[string][]string `json:"aggregationMap,omitempty"`
}

// HierarchyFile is the level ladder of a single dimension.
// CurrentLevel is the level a fresh session (and clear-all) starts from.
type HierarchyFile struct {
	Levels       []LevelFile `json:"levels"`
	CurrentLevel int         `json:"currentLevel"`
}

// ConfigFile is the on-disk cube definition.
// Dimensions holds the base value lists the measure grids are indexed by:
// measures[m][sourceIndex][timeIndex].
type ConfigFile struct {
	Dimensions        map[string][]string      `json:"dimensions"`
	Measures          map[string][][]float64   `json:"measures"`
	Hierarchies       map[string]HierarchyFile `json:"hierarchies"`
	CurrentMeasure    string                   `json:"currentMeasure"`
	CurrentDimensions []string                 `json:"currentDimensions"`
}

// LoadConfigFileName pulls a given filename config off local disk
// Validation is performed on the file before opening
func LoadConfigFileName(filename string) (*ConfigFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

// LoadConfig decodes a cube definition from any reader
func LoadConfig(r io.Reader) (*ConfigFile, error) {
	var config ConfigFile
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		slog.Error("could not decode file")
		return nil, fmt.Errorf("decoding cube config: %w", err)
	}

	return &config, nil
}

// Config is the immutable cube definition handed to NewCube.
// Nothing in the engine writes to it after NewConfig returns.
type Config struct {
	Registry          *Registry
	Facts             *FactStore
	DefaultMeasure    Ct.Measure
	DefaultDimensions []Ct.Dimension
}

// NewConfig validates a ConfigFile and builds the Config from it
func NewConfig(cf *ConfigFile) (*Config, error) {
	if cf == nil {
		return nil, fmt.Errorf("%w: nothing to load", ErrInvalidConfig)
	}

	var hierarchies [3]*Hierarchy
	for name, hf := range cf.Hierarchies {
		dim, ok := Ct.ParseDimension(name)
		if !ok {
			return nil, fmt.Errorf("%w: hierarchy for unknown dimension %q", ErrInvalidConfig, name)
		}
		h, err := NewHierarchy(dim, hf)
		if err != nil {
			return nil, err
		}
		hierarchies[dim] = h
	}
	registry, err := NewRegistry(hierarchies[Ct.Source], hierarchies[Ct.Route], hierarchies[Ct.Time])
	if err != nil {
		return nil, err
	}

	grids := make(map[Ct.Measure][][]float64, len(cf.Measures))
	for name, grid := range cf.Measures {
		m, ok := Ct.ParseMeasure(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown measure %q", ErrInvalidConfig, name)
		}
		grids[m] = grid
	}
	baseSources := cf.Dimensions[Ct.Source.String()]
	baseTimes := cf.Dimensions[Ct.Time.String()]
	if len(grids) > 0 {
		// facts are only read with every dimension at its terminal level
		if err := registry.Hierarchy(Ct.Source).CheckBase(baseSources); err != nil {
			return nil, err
		}
		if err := registry.Hierarchy(Ct.Time).CheckBase(baseTimes); err != nil {
			return nil, err
		}
	}
	facts, err := NewFactStore(baseSources, baseTimes, grids)
	if err != nil {
		return nil, err
	}

	measure, ok := Ct.ParseMeasure(cf.CurrentMeasure)
	if !ok && cf.CurrentMeasure != "" {
		slog.Warn("Unknown measure in config, using packages", slog.String("measure", cf.CurrentMeasure))
	}

	dims := make([]Ct.Dimension, 0, len(Ct.Dimensions))
	for _, name := range cf.CurrentDimensions {
		dim, ok := Ct.ParseDimension(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown visible dimension %q", ErrInvalidConfig, name)
		}
		if !containsDimension(dims, dim) {
			dims = append(dims, dim)
		}
	}
	if len(dims) == 0 {
		dims = append(dims, Ct.Dimensions[:]...)
	}

	return &Config{
		Registry:          registry,
		Facts:             facts,
		DefaultMeasure:    measure,
		DefaultDimensions: dims,
	}, nil
}

// DefaultConfig builds the Config of the built-in shipping dataset
func DefaultConfig() *Config {
	cfg, err := NewConfig(DefaultConfigFile())
	if err != nil {
		// The built-in dataset is covered by tests; failing here is a programming error
		panic(fmt.Sprintf("built-in cube config is invalid: %v", err))
	}
	return cfg
}

// quarterTotals are the recorded [region][quarter] totals of the shipping dataset
var quarterTotals = map[string][][]float64{
	"packages": {
		{100, 215, 160, 240},
		{310, 410, 250, 390},
		{210, 240, 300, 410},
		{500, 470, 464, 690},
		{400, 380, 420, 512},
		{600, 490, 515, 580},
	},
	"revenue": {
		{1550, 3333, 2480, 3720},
		{4805, 6355, 3875, 6045},
		{3255, 3720, 4650, 6355},
		{7750, 7285, 7192, 10695},
		{6200, 5890, 6510, 7936},
		{9300, 7595, 7983, 8990},
	},
	"growth": {
		{5, 12, 8, 15},
		{18, 23, 10, 20},
		{12, 15, 18, 23},
		{25, 22, 21, 35},
		{20, 18, 22, 28},
		{30, 24, 26, 32},
	},
}

// dateShares split a quarter total over its six dates, in twentieths
var dateShares = [6]int{3, 4, 2, 4, 4, 3}

// DefaultConfigFile is the built-in shipping dataset:
// six regions, four routes, 24 dates grouped into quarters and halves, three measures.
// Facts are stored per date; each quarter's dates add up to its recorded total.
func DefaultConfigFile() *ConfigFile {
	cf := &ConfigFile{
		Dimensions: map[string][]string{
			"source": {"Africa", "Asia", "Australia", "Europe", "North America", "South America"},
			"route":  {"road", "rail", "sea", "air"},
			"time": {
				"Feb-17-99", "Apr-22-99", "Sep-07-99", "Dec-01-99",
				"Mar-13-99", "May-31-99", "Sep-18-99", "Dec-22-99",
				"Mar-05-99", "May-19-99", "Aug-09-99", "Nov-27-99",
				"Mar-07-99", "Jun-20-99", "Sep-11-99", "Dec-15-99",
				"Mar-30-99", "Jun-28-99", "Sep-30-99", "Dec-29-99",
				"Feb-27-99", "Jun-03-99", "Aug-21-99", "Nov-30-99",
			},
		},
		Hierarchies: map[string]HierarchyFile{
			"time": {
				Levels: []LevelFile{
					{
						Name:   "half",
						Values: []string{"1st half", "2nd half"},
						AggregationMap: map[string][]string{
							"1st half": {"Q1", "Q2"},
							"2nd half": {"Q3", "Q4"},
						},
					},
					{
						Name:   "quarter",
						Values: []string{"Q1", "Q2", "Q3", "Q4"},
						AggregationMap: map[string][]string{
							"Q1": {"Feb-17-99", "Mar-13-99", "Mar-05-99", "Mar-07-99", "Mar-30-99", "Feb-27-99"},
							"Q2": {"Apr-22-99", "May-31-99", "May-19-99", "Jun-20-99", "Jun-28-99", "Jun-03-99"},
							"Q3": {"Sep-07-99", "Sep-18-99", "Aug-09-99", "Sep-11-99", "Sep-30-99", "Aug-21-99"},
							"Q4": {"Dec-01-99", "Dec-22-99", "Nov-27-99", "Dec-15-99", "Dec-29-99", "Nov-30-99"},
						},
					},
					{
						Name: "date",
						Values: []string{
							"Feb-17-99", "Apr-22-99", "Sep-07-99", "Dec-01-99",
							"Mar-13-99", "May-31-99", "Sep-18-99", "Dec-22-99",
							"Mar-05-99", "May-19-99", "Aug-09-99", "Nov-27-99",
							"Mar-07-99", "Jun-20-99", "Sep-11-99", "Dec-15-99",
							"Mar-30-99", "Jun-28-99", "Sep-30-99", "Dec-29-99",
							"Feb-27-99", "Jun-03-99", "Aug-21-99", "Nov-30-99",
						},
					},
				},
				CurrentLevel: 1,
			},
			"source": {
				Levels: []LevelFile{
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
				Levels: []LevelFile{
					{
						Name:   "transport_type",
						Values: []string{"ground", "nonground"},
						AggregationMap: map[string][]string{
							"ground":    {"road", "rail"},
							"nonground": {"sea", "air"},
						},
					},
					{
						Name:   "method",
						Values: []string{"road", "rail", "sea", "air"},
					},
				},
				CurrentLevel: 1,
			},
		},
		CurrentMeasure:    "packages",
		CurrentDimensions: []string{"source", "route", "time"},
	}

	quarters := cf.Hierarchies["time"].Levels[1]
	cf.Measures = make(map[string][][]float64, len(quarterTotals))
	for name, totals := range quarterTotals {
		scale := 1.0
		if name == Ct.Growth.String() {
			scale = 10 // one decimal
		}
		cf.Measures[name] = spreadQuarters(totals, quarters, cf.Dimensions["time"], scale)
	}
	return cf
}

// spreadQuarters expands [region][quarter] totals onto date columns.
// Totals are split in units of 1/scale by dateShares and the last date of a
// quarter takes the remainder, so the dates always sum back to the total.
func spreadQuarters(totals [][]float64, quarters LevelFile, dates []string, scale float64) [][]float64 {
	col := make(map[string]int, len(dates))
	for i, d := range dates {
		col[d] = i
	}

	out := make([][]float64, len(totals))
	for r, row := range totals {
		out[r] = make([]float64, len(dates))
		for q, total := range row {
			children := quarters.AggregationMap[quarters.Values[q]]
			units := int(math.Round(total * scale))
			left := units
			for i, d := range children {
				part := left
				if i < len(children)-1 {
					part = units * dateShares[i%len(dateShares)] / 20
				}
				left -= part
				out[r][col[d]] = float64(part) / scale
			}
		}
	}
	return out
}

func containsDimension(dims []Ct.Dimension, d Ct.Dimension) bool {
	for _, v := range dims {
		if v == d {
			return true
		}
	}
	return false
}
