package types

/*

	These are the "immutable" core types of Cubeview,
	provided for cross-package use (display, plugins) and testing.

	Only small value methods (names, parsing, text marshaling) live here.
	Constructors and behavior are housed in their own packages.

*/

import (
	"fmt"
	"time"
)

// Dimension is one of the three fixed axes of analysis.
// The set is closed: there is no "unknown dimension" value in the engine.
type Dimension int

const (
	Source Dimension = iota // where the packages come from
	Route                   // how they travel
	Time                    // when they travel
)

// Dimensions lists every Dimension in canonical order
var Dimensions = [3]Dimension{Source, Route, Time}

func (d Dimension) String() string {
	switch d {
	case Source:
		return "source"
	case Route:
		return "route"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

// Valid reports whether d is one of the three dimensions
func (d Dimension) Valid() bool { return d >= Source && d <= Time }

// ParseDimension maps a dimension name to its Dimension
func ParseDimension(s string) (Dimension, bool) {
	switch s {
	case "source":
		return Source, true
	case "route":
		return Route, true
	case "time":
		return Time, true
	}
	return -1, false
}

func (d Dimension) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dimension %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Dimension) UnmarshalText(b []byte) error {
	parsed, ok := ParseDimension(string(b))
	if !ok {
		return fmt.Errorf("unknown dimension %q", string(b))
	}
	*d = parsed
	return nil
}

// Axis is a spatial render axis
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists every Axis in canonical order
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Valid reports whether a is one of x, y, z
func (a Axis) Valid() bool { return a >= AxisX && a <= AxisZ }

// ParseAxis maps "x", "y" or "z" to an Axis.
// Anything else returns an invalid Axis and false.
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "x", "X":
		return AxisX, true
	case "y", "Y":
		return AxisY, true
	case "z", "Z":
		return AxisZ, true
	}
	return -1, false
}

func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid axis %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(b []byte) error {
	parsed, ok := ParseAxis(string(b))
	if !ok {
		return fmt.Errorf("unknown axis %q", string(b))
	}
	*a = parsed
	return nil
}

// Measure is a quantitative fact stored in the cube
type Measure int

const (
	Packages Measure = iota
	Revenue
	Growth
)

// Measures lists every Measure in canonical order
var Measures = [3]Measure{Packages, Revenue, Growth}

func (m Measure) String() string {
	switch m {
	case Revenue:
		return "revenue"
	case Growth:
		return "growth"
	default:
		return "packages"
	}
}

// Valid reports whether m is an enumerated measure
func (m Measure) Valid() bool { return m >= Packages && m <= Growth }

// ParseMeasure maps a measure name to its Measure.
// Unknown names fall back to Packages, with ok reporting the miss.
func ParseMeasure(s string) (m Measure, ok bool) {
	switch s {
	case "packages":
		return Packages, true
	case "revenue":
		return Revenue, true
	case "growth":
		return Growth, true
	}
	return Packages, false
}

func (m Measure) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Measure) UnmarshalText(b []byte) error {
	*m, _ = ParseMeasure(string(b))
	return nil
}

// Cell is one projected point of the cube at the current hierarchy levels.
// Cells are transient: every projection replaces all of them.
type Cell struct {
	SourceIndex int     `json:"sourceIndex"`
	RouteIndex  int     `json:"routeIndex"`
	TimeIndex   int     `json:"timeIndex"`
	Source      string  `json:"source"`
	Route       string  `json:"route"`
	Time        string  `json:"time"`
	Value       float64 `json:"value"`
	Visible     bool    `json:"visible"`
}

// Index returns the cell's position along dimension d
func (c Cell) Index(d Dimension) int {
	switch d {
	case Route:
		return c.RouteIndex
	case Time:
		return c.TimeIndex
	default:
		return c.SourceIndex
	}
}

// Category returns the cell's category value along dimension d
func (c Cell) Category(d Dimension) string {
	switch d {
	case Route:
		return c.Route
	case Time:
		return c.Time
	default:
		return c.Source
	}
}

// Filter is a dice allow-list for a single dimension.
// A nil Values list places no restriction on the dimension.
type Filter struct {
	Dimension Dimension `json:"dimension"`
	Values    []string  `json:"values"`
}

// ValueRange keeps the cells whose value lies within [Min, Max].
// A nil bound is open.
type ValueRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Open reports whether neither bound is set
func (r ValueRange) Open() bool { return r.Min == nil && r.Max == nil }

// Contains reports whether v passes both bounds
func (r ValueRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Statistics is a summary over any sequence of numbers
type Statistics struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// Transaction is a synthetic drill-through record
type Transaction struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
	Type   string  `json:"type"`
}

// OperationKind names an entry in the operation history
type OperationKind string

const (
	OpSlice           OperationKind = "slice"
	OpClearSlice      OperationKind = "clear_slice"
	OpDice            OperationKind = "dice"
	OpFilterValues    OperationKind = "filter_values"
	OpClearFilter     OperationKind = "clear_value_filter"
	OpResetDice       OperationKind = "reset_dice"
	OpDrillDown       OperationKind = "drill_down"
	OpDrillUp         OperationKind = "drill_up"
	OpDrillThrough    OperationKind = "drill_through"
	OpPivot           OperationKind = "pivot"
	OpToggleDimension OperationKind = "toggle_dimension"
	OpSetMeasure      OperationKind = "set_measure"
	OpClearAll        OperationKind = "clear_all"
)

// HistoryRecord is one applied operation.
// Parameters hold only JSON-compatible values.
type HistoryRecord struct {
	Operation  OperationKind  `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// LevelInfo describes the active level of one hierarchy
type LevelInfo struct {
	Level int    `json:"currentLevel"`
	Name  string `json:"levelName"`
	Total int    `json:"totalLevels"`
}

// Outcome reports what an operation did.
// Err carries the diagnostic for a no-op and is never serialized.
type Outcome struct {
	Applied bool   `json:"applied"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Snapshot is the flat, serializable export of the session state
type Snapshot struct {
	ID                string                  `json:"id"`
	Timestamp         time.Time               `json:"timestamp"`
	DrillLevels       map[Dimension]LevelInfo `json:"drillLevels"`
	PivotState        map[Axis]Dimension      `json:"pivotState"`
	DiceFilters       []Filter                `json:"diceFilters"`
	ValueFilter       *ValueRange             `json:"valueFilter,omitempty"`
	SliceByAxis       map[Axis]int            `json:"sliceByAxis"`
	OperationHistory  []HistoryRecord         `json:"operationHistory"`
	CurrentMeasure    Measure                 `json:"currentMeasure"`
	VisibleDimensions []Dimension             `json:"currentDimensions"`
	VisibleCells      int                     `json:"visibleCells"`
	TotalCells        int                     `json:"totalCells"`
}

// CubeStatistics summarizes the current projection
type CubeStatistics struct {
	TotalCells    int        `json:"totalCells"`
	VisibleCells  int        `json:"visibleCells"`
	HiddenCells   int        `json:"hiddenCells"`
	Statistics    Statistics `json:"statistics"`
	ActiveFilters int        `json:"activeFilters"`
	ActiveSlices  int        `json:"activeSlices"`
	ValueFilter   bool       `json:"valueFilter"`
}

// DimensionBreakdown is the hierarchy context of one drill-through coordinate
type DimensionBreakdown struct {
	CurrentLevel    string   `json:"currentLevel"`
	CurrentValue    string   `json:"currentValue"`
	AvailableLevels []string `json:"availableLevels"`
	CanDrillDown    bool     `json:"canDrillDown"`
	CanDrillUp      bool     `json:"canDrillUp"`
	LevelPosition   string   `json:"levelPosition"`
	Children        []string `json:"children,omitempty"`
}

// DrillThrough is the detail expansion of a single cell
type DrillThrough struct {
	BatchID      string                           `json:"batchId"`
	Summary      string                           `json:"summary"`
	Value        float64                          `json:"value"`
	Cell         Cell                             `json:"cell"`
	Transactions []Transaction                    `json:"transactions"`
	Statistics   Statistics                       `json:"statistics"`
	Breakdown    map[Dimension]DimensionBreakdown `json:"hierarchicalBreakdown"`
	Coordinates  string                           `json:"coordinates"`
	Granularity  string                           `json:"granularity"`
	GeneratedAt  time.Time                        `json:"generatedAt"`
}
