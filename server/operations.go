package cubeview

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	Ct "github.com/maroda/cubeview/types"
)

// Observer receives a callback for every operation and projection.
// obvy.StatsInternal satisfies it.
type Observer interface {
	RecOperation(op string, applied bool)
	RecProjection(seconds float64, total, visible int)
}

type nopObserver struct{}

func (nopObserver) RecOperation(string, bool)       {}
func (nopObserver) RecProjection(float64, int, int) {}

// Cube is the operation engine for a single analysis session.
// Every operation mutates the state and reprojects under MU.
type Cube struct {
	MU sync.RWMutex

	cfg      *Config
	agg      *Aggregator
	state    *State
	cells    []Ct.Cell // projection of the current state
	parallel bool
	tracer   trace.Tracer
	rng      *rand.Rand
	now      func() time.Time
	observer Observer
	histCap  int
}

// Option configures a Cube
type Option func(*Cube)

// WithHistoryCapacity bounds the operation history
func WithHistoryCapacity(n int) Option {
	return func(c *Cube) { c.histCap = n }
}

// WithParallelProjection fans projection out per source value
func WithParallelProjection() Option {
	return func(c *Cube) { c.parallel = true }
}

// WithTracer replaces the global otel tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Cube) { c.tracer = t }
}

// WithRand fixes the drill-through random source
func WithRand(r *rand.Rand) Option {
	return func(c *Cube) { c.rng = r }
}

// WithClock replaces time.Now for history timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Cube) { c.now = now }
}

// WithObserver attaches a metrics observer
func WithObserver(o Observer) Option {
	return func(c *Cube) { c.observer = o }
}

// NewCube starts a session over an immutable Config
func NewCube(cfg *Config, opts ...Option) (*Cube, error) {
	if cfg == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("%w: no configuration", ErrInvalidConfig)
	}

	c := &Cube{
		cfg:      cfg,
		agg:      NewAggregator(cfg),
		tracer:   otel.Tracer("cubeview"),
		now:      time.Now,
		observer: nopObserver{},
		histCap:  DefaultHistoryCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}

	c.state = NewState(cfg, c.histCap)
	c.reproject()

	slog.Info("Cube ready",
		slog.Int("cells", len(c.cells)),
		slog.String("levels", c.describeLevels()),
		slog.Bool("parallel", c.parallel))

	return c, nil
}

// Config returns the immutable configuration
func (c *Cube) Config() *Config {
	if c == nil {
		return nil
	}
	return c.cfg
}

// reproject rebuilds the cell list; the caller holds the write lock
func (c *Cube) reproject() {
	start := time.Now()
	c.cells = c.project()
	c.observer.RecProjection(time.Since(start).Seconds(), len(c.cells), countVisible(c.cells))
}

// record appends an applied operation to the history; the caller holds the write lock
func (c *Cube) record(kind Ct.OperationKind, params map[string]any) {
	c.state.History.Add(Ct.HistoryRecord{
		Operation:  kind,
		Parameters: params,
		Timestamp:  c.now(),
	})
}

func (c *Cube) applied(span trace.Span, kind Ct.OperationKind, msg string) Ct.Outcome {
	span.SetAttributes(attribute.Bool("applied", true))
	c.observer.RecOperation(string(kind), true)
	slog.Info(msg, slog.String("operation", string(kind)))
	return Ct.Outcome{Applied: true, Message: msg}
}

func (c *Cube) skipped(span trace.Span, kind Ct.OperationKind, msg string, err error) Ct.Outcome {
	span.SetAttributes(attribute.Bool("applied", false))
	c.observer.RecOperation(string(kind), false)
	slog.Warn(msg, slog.String("operation", string(kind)), slog.Any("Error", err))
	return Ct.Outcome{Message: msg, Err: err}
}

func noCube(kind Ct.OperationKind) Ct.Outcome {
	msg := fmt.Sprintf("Cube not available for %s", kind)
	slog.Error(msg, slog.Any("Error", ErrNoCube))
	return Ct.Outcome{Message: msg, Err: ErrNoCube}
}

// Slice keeps only the cells whose index on the dimension mapped to axis
// equals position. A second slice on the same axis replaces the first.
func (c *Cube) Slice(ctx context.Context, axis Ct.Axis, position int) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpSlice)
	}
	_, span := c.tracer.Start(ctx, "cube.slice",
		trace.WithAttributes(attribute.String("axis", axis.String()), attribute.Int("position", position)))
	defer span.End()

	if !axis.Valid() {
		return c.skipped(span, Ct.OpSlice, fmt.Sprintf("Invalid slice axis %s", axis),
			fmt.Errorf("slice: %w", ErrInvalidAxis))
	}
	if position < 0 {
		return c.skipped(span, Ct.OpSlice, fmt.Sprintf("Invalid slice position %d on axis %s", position, axis),
			fmt.Errorf("slice: %w", ErrInvalidPosition))
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	c.state.Slices[axis] = position
	c.reproject()
	c.record(Ct.OpSlice, map[string]any{
		"axis":     axis.String(),
		"position": position,
	})

	return c.applied(span, Ct.OpSlice, fmt.Sprintf("Slice applied on axis %s - %d visible cells",
		strings.ToUpper(axis.String()), countVisible(c.cells)))
}

// ClearSlice drops the slice on one axis
func (c *Cube) ClearSlice(ctx context.Context, axis Ct.Axis) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpClearSlice)
	}
	_, span := c.tracer.Start(ctx, "cube.clear_slice",
		trace.WithAttributes(attribute.String("axis", axis.String())))
	defer span.End()

	if !axis.Valid() {
		return c.skipped(span, Ct.OpClearSlice, fmt.Sprintf("Invalid slice axis %s", axis),
			fmt.Errorf("clear slice: %w", ErrInvalidAxis))
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	if _, ok := c.state.Slices[axis]; !ok {
		return c.skipped(span, Ct.OpClearSlice, fmt.Sprintf("No slice on axis %s", axis), nil)
	}
	delete(c.state.Slices, axis)
	c.reproject()
	c.record(Ct.OpClearSlice, map[string]any{"axis": axis.String()})

	return c.applied(span, Ct.OpClearSlice, fmt.Sprintf("Slice on axis %s removed", axis))
}

// ClearAllSlices drops every slice
func (c *Cube) ClearAllSlices(ctx context.Context) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpClearSlice)
	}
	_, span := c.tracer.Start(ctx, "cube.clear_slice")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	if len(c.state.Slices) == 0 {
		return c.skipped(span, Ct.OpClearSlice, "No slices to remove", nil)
	}
	clear(c.state.Slices)
	c.reproject()
	c.record(Ct.OpClearSlice, map[string]any{"axis": "all"})

	return c.applied(span, Ct.OpClearSlice, "All slices removed")
}

// Dice replaces the filter set. A filter with nil Values restricts nothing.
func (c *Cube) Dice(ctx context.Context, filters []Ct.Filter) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpDice)
	}
	_, span := c.tracer.Start(ctx, "cube.dice",
		trace.WithAttributes(attribute.Int("filters", len(filters))))
	defer span.End()

	kept := make([]Ct.Filter, 0, len(filters))
	for _, f := range filters {
		if !f.Dimension.Valid() {
			slog.Warn("Dropping dice filter", slog.Int("dimension", int(f.Dimension)),
				slog.Any("Error", ErrInvalidDimension))
			continue
		}
		nf := Ct.Filter{Dimension: f.Dimension}
		if f.Values != nil {
			nf.Values = append([]string{}, f.Values...)
		}
		kept = append(kept, nf)
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	c.state.Dice = kept
	c.reproject()
	c.record(Ct.OpDice, map[string]any{"filters": c.state.diceCopy()})

	return c.applied(span, Ct.OpDice, fmt.Sprintf("Dice applied with %d filters - %d visible cells",
		len(kept), countVisible(c.cells)))
}

// FilterValues keeps only the cells whose current value lies within r.
// The range is evaluated on every projection, so it follows drills and measure changes.
func (c *Cube) FilterValues(ctx context.Context, r Ct.ValueRange) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpFilterValues)
	}
	_, span := c.tracer.Start(ctx, "cube.filter_values")
	defer span.End()

	switch {
	case r.Open():
		return c.skipped(span, Ct.OpFilterValues, "Value filter needs a minimum or a maximum",
			fmt.Errorf("filter: %w", ErrInvalidRange))
	case r.Min != nil && math.IsNaN(*r.Min), r.Max != nil && math.IsNaN(*r.Max):
		return c.skipped(span, Ct.OpFilterValues, "Value filter bounds must be numbers",
			fmt.Errorf("filter: %w", ErrInvalidRange))
	case r.Min != nil && r.Max != nil && *r.Min > *r.Max:
		return c.skipped(span, Ct.OpFilterValues, fmt.Sprintf("Value filter minimum %g is above maximum %g", *r.Min, *r.Max),
			fmt.Errorf("filter: %w", ErrInvalidRange))
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	c.state.Range = copyRange(r)
	c.reproject()

	params := make(map[string]any, 2)
	if r.Min != nil {
		params["min"] = *r.Min
		span.SetAttributes(attribute.Float64("min", *r.Min))
	}
	if r.Max != nil {
		params["max"] = *r.Max
		span.SetAttributes(attribute.Float64("max", *r.Max))
	}
	c.record(Ct.OpFilterValues, params)

	return c.applied(span, Ct.OpFilterValues, fmt.Sprintf("Value filter applied - %d visible cells",
		countVisible(c.cells)))
}

// ClearValueFilter removes the value filter
func (c *Cube) ClearValueFilter(ctx context.Context) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpClearFilter)
	}
	_, span := c.tracer.Start(ctx, "cube.clear_value_filter")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	if c.state.Range == nil {
		return c.skipped(span, Ct.OpClearFilter, "No value filter to remove", nil)
	}
	c.state.Range = nil
	c.reproject()
	c.record(Ct.OpClearFilter, nil)

	return c.applied(span, Ct.OpClearFilter, fmt.Sprintf("Value filter removed - %d visible cells",
		countVisible(c.cells)))
}

// ResetDice removes every dice filter
func (c *Cube) ResetDice(ctx context.Context) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpResetDice)
	}
	_, span := c.tracer.Start(ctx, "cube.reset_dice")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	c.state.Dice = nil
	c.reproject()
	c.record(Ct.OpResetDice, nil)

	return c.applied(span, Ct.OpResetDice, fmt.Sprintf("Dice reset - %d visible cells", countVisible(c.cells)))
}

// DrillDown moves every dimension that has a more detailed level one level down
func (c *Cube) DrillDown(ctx context.Context) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpDrillDown)
	}
	_, span := c.tracer.Start(ctx, "cube.drill_down")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	return c.drill(span, Ct.OpDrillDown, 1)
}

// DrillUp moves every dimension that has a more aggregated level one level up
func (c *Cube) DrillUp(ctx context.Context) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpDrillUp)
	}
	_, span := c.tracer.Start(ctx, "cube.drill_up")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	return c.drill(span, Ct.OpDrillUp, -1)
}

// drill applies a lockstep level change; the caller holds the write lock
func (c *Cube) drill(span trace.Span, kind Ct.OperationKind, step int) Ct.Outcome {
	reg := c.cfg.Registry
	var changed []string
	for _, dim := range Ct.Dimensions {
		lvl := c.state.Levels[dim]
		can := reg.CanDrillDown(dim, lvl)
		if step < 0 {
			can = reg.CanDrillUp(dim, lvl)
		}
		if can {
			c.state.Levels[dim] = lvl + step
			changed = append(changed, dim.String())
		}
	}

	if len(changed) == 0 {
		msg := "Already at the most detailed level"
		if step < 0 {
			msg = "Already at the most summarized level"
		}
		return c.skipped(span, kind, msg, fmt.Errorf("%s: %w", kind, ErrHierarchyExhausted))
	}

	c.reproject()
	desc := c.describeLevels()
	c.record(kind, map[string]any{
		"changedDimensions": changed,
		"hierarchyLevels":   c.state.LevelInfo(reg),
	})
	span.SetAttributes(attribute.String("levels", desc))

	label := "Drill-down"
	if step < 0 {
		label = "Drill-up"
	}
	return c.applied(span, kind, fmt.Sprintf("%s applied - %s", label, desc))
}

// Pivot swaps the dimensions shown on two distinct axes
func (c *Cube) Pivot(ctx context.Context, a1, a2 Ct.Axis) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpPivot)
	}
	_, span := c.tracer.Start(ctx, "cube.pivot",
		trace.WithAttributes(attribute.String("axis1", a1.String()), attribute.String("axis2", a2.String())))
	defer span.End()

	if !a1.Valid() || !a2.Valid() || a1 == a2 {
		return c.skipped(span, Ct.OpPivot, fmt.Sprintf("Invalid axis combination: %s-%s", a1, a2),
			fmt.Errorf("pivot: %w", ErrInvalidAxis))
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	c.state.Pivot[a1], c.state.Pivot[a2] = c.state.Pivot[a2], c.state.Pivot[a1]
	c.reproject()
	c.record(Ct.OpPivot, map[string]any{
		"axes":     []string{a1.String(), a2.String()},
		"newState": c.state.pivotMap(),
	})

	return c.applied(span, Ct.OpPivot, fmt.Sprintf("Pivot applied between %s and %s",
		strings.ToUpper(a1.String()), strings.ToUpper(a2.String())))
}

// ToggleDimension shows or hides a dimension. The last visible one stays.
// A dimension shown again goes to the end of the visible list.
func (c *Cube) ToggleDimension(ctx context.Context, dim Ct.Dimension) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpToggleDimension)
	}
	_, span := c.tracer.Start(ctx, "cube.toggle_dimension",
		trace.WithAttributes(attribute.String("dimension", dim.String())))
	defer span.End()

	if !dim.Valid() {
		return c.skipped(span, Ct.OpToggleDimension, fmt.Sprintf("Unknown dimension %s", dim),
			fmt.Errorf("toggle: %w", ErrInvalidDimension))
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	visible := c.state.IsVisible(dim)
	if visible && len(c.state.Visible) == 1 {
		return c.skipped(span, Ct.OpToggleDimension, "At least one dimension must remain visible",
			fmt.Errorf("toggle %s: %w", dim, ErrDimensionFloor))
	}

	next := make([]Ct.Dimension, 0, len(Ct.Dimensions))
	for _, d := range c.state.Visible {
		if d != dim {
			next = append(next, d)
		}
	}
	if !visible {
		next = append(next, dim)
	}
	c.state.Visible = next
	c.record(Ct.OpToggleDimension, map[string]any{
		"dimension": dim.String(),
		"visible":   !visible,
	})

	verb := "shown"
	if visible {
		verb = "hidden"
	}
	return c.applied(span, Ct.OpToggleDimension, fmt.Sprintf("Dimension %s %s", dim, verb))
}

// SetMeasure switches the measure used by projection; unknown measures become packages
func (c *Cube) SetMeasure(ctx context.Context, m Ct.Measure) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpSetMeasure)
	}
	if !m.Valid() {
		m = Ct.Packages
	}
	_, span := c.tracer.Start(ctx, "cube.set_measure",
		trace.WithAttributes(attribute.String("measure", m.String())))
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	if c.state.Measure == m {
		return c.skipped(span, Ct.OpSetMeasure, fmt.Sprintf("Measure is already %s", m), nil)
	}
	c.state.Measure = m
	c.reproject()
	c.record(Ct.OpSetMeasure, map[string]any{"measure": m.String()})

	return c.applied(span, Ct.OpSetMeasure, fmt.Sprintf("Measure set to %s", m))
}

// ClearAllOperations restores the configured defaults and starts a fresh history
// whose only entry is the clear itself.
func (c *Cube) ClearAllOperations(ctx context.Context) Ct.Outcome {
	if c == nil {
		return noCube(Ct.OpClearAll)
	}
	_, span := c.tracer.Start(ctx, "cube.clear_all")
	defer span.End()

	c.MU.Lock()
	defer c.MU.Unlock()

	c.state.reset(c.cfg)
	c.state.History.Reset()
	c.reproject()
	c.record(Ct.OpClearAll, nil)

	return c.applied(span, Ct.OpClearAll, "All operations cleared")
}

// Project returns a copy of the current cells
func (c *Cube) Project() []Ct.Cell {
	if c == nil {
		slog.Error("Cube not available for projection", slog.Any("Error", ErrNoCube))
		return []Ct.Cell{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	out := make([]Ct.Cell, len(c.cells))
	copy(out, c.cells)
	return out
}

// VisibleCells returns only the cells passing every slice and filter
func (c *Cube) VisibleCells() []Ct.Cell {
	all := c.Project()
	out := all[:0]
	for _, cell := range all {
		if cell.Visible {
			out = append(out, cell)
		}
	}
	return out
}

// ValueAt aggregates m at the current hierarchy levels
func (c *Cube) ValueAt(source, route, time string, m Ct.Measure) float64 {
	if c == nil {
		slog.Error("Cube not available for aggregation", slog.Any("Error", ErrNoCube))
		return 0
	}
	c.MU.RLock()
	lv := c.state.Levels
	c.MU.RUnlock()

	return c.agg.ValueAt(lv, source, route, time, m)
}

// CurrentLevelDescription renders the levels as
// "source: region (2/2), route: method (2/2), time: quarter (2/3)"
func (c *Cube) CurrentLevelDescription() string {
	if c == nil {
		return ""
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.describeLevels()
}

func (c *Cube) describeLevels() string {
	parts := make([]string, 0, len(Ct.Dimensions))
	for _, dim := range Ct.Dimensions {
		lvl := c.state.Levels[dim]
		parts = append(parts, fmt.Sprintf("%s: %s (%d/%d)",
			dim, c.cfg.Registry.LevelName(dim, lvl), lvl+1, c.cfg.Registry.Depth(dim)))
	}
	return strings.Join(parts, ", ")
}

// HierarchyLevels reports level index, name and depth per dimension
func (c *Cube) HierarchyLevels() map[Ct.Dimension]Ct.LevelInfo {
	if c == nil {
		return map[Ct.Dimension]Ct.LevelInfo{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.state.LevelInfo(c.cfg.Registry)
}

// Statistics summarizes the visible cells
func (c *Cube) Statistics() Ct.CubeStatistics {
	if c == nil {
		slog.Error("Cube not available for statistics", slog.Any("Error", ErrNoCube))
		return Ct.CubeStatistics{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	var values []float64
	visible := 0
	for _, cell := range c.cells {
		if !cell.Visible {
			continue
		}
		visible++
		if cell.Value > 0 {
			values = append(values, cell.Value)
		}
	}

	return Ct.CubeStatistics{
		TotalCells:    len(c.cells),
		VisibleCells:  visible,
		HiddenCells:   len(c.cells) - visible,
		Statistics:    GetStatistics(values),
		ActiveFilters: len(c.state.Dice),
		ActiveSlices:  len(c.state.Slices),
		ValueFilter:   c.state.Range != nil,
	}
}

// History returns the operation history, oldest first
func (c *Cube) History() []Ct.HistoryRecord {
	if c == nil {
		return []Ct.HistoryRecord{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.state.History.List()
}

// LastOperation is the newest history record
func (c *Cube) LastOperation() (Ct.HistoryRecord, bool) {
	if c == nil {
		return Ct.HistoryRecord{}, false
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.state.History.Last()
}

// Measure is the measure currently projected
func (c *Cube) Measure() Ct.Measure {
	if c == nil {
		return Ct.Packages
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.state.Measure
}

// PivotState maps each axis to the dimension it shows
func (c *Cube) PivotState() map[Ct.Axis]Ct.Dimension {
	if c == nil {
		return map[Ct.Axis]Ct.Dimension{}
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return c.state.pivotMap()
}

// VisibleDimensions lists the shown dimensions in the order they were shown
func (c *Cube) VisibleDimensions() []Ct.Dimension {
	if c == nil {
		return nil
	}
	c.MU.RLock()
	defer c.MU.RUnlock()

	return append([]Ct.Dimension(nil), c.state.Visible...)
}
