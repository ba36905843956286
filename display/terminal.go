package cubeview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	Co "github.com/maroda/cubeview/obvy"
	Cp "github.com/maroda/cubeview/plugin"
	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

const (
	screenGutter = 6
	barWidth     = 20
)

// View renders one Cube session to a terminal and to the web
type View struct {
	MU          sync.Mutex         // State locks to read data
	Cube        *Cs.Cube           // the analysis session
	CubeOptions []Cs.Option        // applied again when the config is reloaded
	Screen      tcell.Screen       // the screen itself, nil when web only
	Stats       *Co.StatsInternal  // Internal status for prometheus
	Output      Cp.OutputAdapter   // snapshot export sink
	Hub         *Hub               // websocket clients
	Supervisor  *RefreshSupervisor // periodic redraw and push
	server      *http.Server       // web + metrics server
	Selected    int                // Selected visible cell
	ShowDetail  bool               // Display drill-through overlay
	detail      *Ct.DrillThrough   // last drill-through result
	message     string             // last operation message
}

// Settings carries the runtime knobs from main
type Settings struct {
	Addr        string
	Refresh     time.Duration
	Output      string // output plugin name, empty for none
	ExportPath  string
	CubeOptions []Cs.Option
}

func (v *View) cube() *Cs.Cube {
	v.MU.Lock()
	defer v.MU.Unlock()
	return v.Cube
}

// NewView wires a cube to its stats and an optional screen
func NewView(cube *Cs.Cube, stats *Co.StatsInternal, screen tcell.Screen) (*View, error) {
	if cube == nil {
		slog.Error("Could not get a Cube for display", slog.Any("Error", Cs.ErrNoCube))
		return nil, Cs.ErrNoCube
	}
	if stats == nil {
		stats = Co.NewStatsInternal()
	}

	view := &View{
		Cube:   cube,
		Screen: screen,
		Stats:  stats,
	}
	view.Hub = NewHub(stats.RecClients)

	if screen != nil {
		view.UpdateScreen()
	}

	return view, nil
}

// GetScreenSize provides the terminal size for drawing
func (v *View) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// ResizeScreen redraws after terminal changes
func (v *View) ResizeScreen() {
	v.Screen.Sync()
	v.UpdateScreen()
}

func (v *View) UpdateScreen() {
	v.Screen.Clear()
	v.DrawCubeView()
	v.Screen.Show()
}

// pageStart keeps the selected row inside a page of n rows
func pageStart(selected, n int) int {
	if n < 1 || selected < n {
		return 0
	}
	return selected - n + 1
}

// DrawCubeView draws the whole session: header, visible cells as bars, and key help
func (v *View) DrawCubeView() {
	width, height := v.GetScreenSize()
	cube := v.cube()

	v.MU.Lock()
	selected := v.Selected
	showDetail := v.ShowDetail
	detail := v.detail
	message := v.message
	v.MU.Unlock()

	v.DrawViewBorder(width-1, height-2)

	stats := cube.Statistics()
	pivot := cube.PivotState()
	v.DrawText(2, 1, width-2, 1, fmt.Sprintf("CUBEVIEW | measure: %s", cube.Measure()))
	v.DrawText(2, 2, width-2, 2, cube.CurrentLevelDescription())
	v.DrawText(2, 3, width-2, 3, fmt.Sprintf("x: %s  y: %s  z: %s | shown: %s",
		pivot[Ct.AxisX], pivot[Ct.AxisY], pivot[Ct.AxisZ], dimensionList(cube.VisibleDimensions())))
	v.DrawText(2, 4, width-2, 4, fmt.Sprintf("visible %d/%d | sum %.1f | avg %.2f | min %.1f | max %.1f",
		stats.VisibleCells, stats.TotalCells, stats.Statistics.Sum, stats.Statistics.Avg,
		stats.Statistics.Min, stats.Statistics.Max))

	if showDetail && detail != nil {
		v.drawDetail(width, height, detail)
	} else {
		v.drawCells(width, height, cube.VisibleCells(), stats.Statistics.Max, selected)
	}

	if message != "" {
		v.DrawText(2, height-3, width-2, height-3, message)
	}
	v.DrawText(1, height-1, width, height, "d/u drill | m measure | p pivot | x/y/z slice | s unslice | 1/2/3 dims | t detail | f filter | r reset dice | c clear | e export | q quit")
}

func (v *View) drawCells(width, height int, cells []Ct.Cell, top float64, selected int) {
	rows := height - screenGutter - 4
	start := pageStart(selected, rows)

	for i := start; i < len(cells) && i-start < rows; i++ {
		cell := cells[i]
		y := screenGutter + i - start

		label := fmt.Sprintf("%-13.13s %-10.10s %-10.10s %9.1f ", cell.Source, cell.Route, cell.Time, cell.Value)
		if i == selected {
			label = "> " + label
		} else {
			label = "  " + label
		}
		v.DrawText(2, y, width-2, y, label)

		x := 2 + len([]rune(label))
		if x+barWidth < width-2 {
			WriteBar(v.Screen, x, y, x+BarLength(cell.Value, top, barWidth), y+1, barStyle(cell.Value, top))
		}
	}
}

func (v *View) drawDetail(width, height int, d *Ct.DrillThrough) {
	y := screenGutter
	v.DrawText(2, y, width-2, y, fmt.Sprintf("DRILL-THROUGH %s  %s  value %.1f", d.Coordinates, d.Summary, d.Value))
	y++
	v.DrawText(2, y, width-2, y, "granularity: "+d.Granularity)
	y += 2
	for _, tx := range d.Transactions {
		if y >= height-4 {
			break
		}
		v.DrawText(4, y, width-2, y, fmt.Sprintf("%s  %s  %10.0f  %s", tx.ID, tx.Date, tx.Amount, tx.Type))
		y++
	}
	y++
	for _, dim := range Ct.Dimensions {
		b, ok := d.Breakdown[dim]
		if !ok || y >= height-4 {
			continue
		}
		v.DrawText(4, y, width-2, y, fmt.Sprintf("%s: %s = %s (%s) %s",
			dim, b.CurrentLevel, b.CurrentValue, b.LevelPosition, strings.Join(b.Children, ", ")))
		y++
	}
}

func dimensionList(dims []Ct.Dimension) string {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.String()
	}
	return strings.Join(names, ",")
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	row := y1
	col := x1
	style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
}

func (v *View) setMessage(out Ct.Outcome) {
	v.MU.Lock()
	v.message = out.Message
	v.MU.Unlock()
}

// selectedCell returns the highlighted visible cell, if any
func (v *View) selectedCell() (Ct.Cell, bool) {
	cells := v.cube().VisibleCells()

	v.MU.Lock()
	defer v.MU.Unlock()
	if len(cells) == 0 {
		return Ct.Cell{}, false
	}
	if v.Selected >= len(cells) {
		v.Selected = len(cells) - 1
	}
	return cells[v.Selected], true
}

func (v *View) moveSelection(step int) {
	n := len(v.cube().VisibleCells())

	v.MU.Lock()
	defer v.MU.Unlock()
	v.Selected += step
	if v.Selected >= n {
		v.Selected = n - 1
	}
	if v.Selected < 0 {
		v.Selected = 0
	}
}

// sliceAtSelection slices axis at the selected cell's position
func (v *View) sliceAtSelection(ctx context.Context, axis Ct.Axis) Ct.Outcome {
	cell, ok := v.selectedCell()
	if !ok {
		return Ct.Outcome{Message: "No visible cell to slice at"}
	}
	cube := v.cube()
	dim := cube.PivotState()[axis]
	return cube.Slice(ctx, axis, cell.Index(dim))
}

// filterAtSelection keeps the cells worth at least the selected one,
// or drops the value filter when one is active
func (v *View) filterAtSelection(ctx context.Context) Ct.Outcome {
	cube := v.cube()
	if cube.Statistics().ValueFilter {
		return cube.ClearValueFilter(ctx)
	}
	cell, ok := v.selectedCell()
	if !ok {
		return Ct.Outcome{Message: "No visible cell to filter at"}
	}
	return cube.FilterValues(ctx, Ct.ValueRange{Min: &cell.Value})
}

// nextMeasure cycles packages, revenue, growth
func nextMeasure(m Ct.Measure) Ct.Measure {
	return Ct.Measures[(int(m)+1)%len(Ct.Measures)]
}

// HandleKey applies the operation bound to a key.
// It returns false when the key asks to quit.
func (v *View) HandleKey(ev *tcell.EventKey) bool {
	ctx := context.Background()
	cube := v.cube()

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.moveSelection(-1)
		return true
	case tcell.KeyDown:
		v.moveSelection(1)
		return true
	}

	var out Ct.Outcome
	switch ev.Rune() {
	case 'q':
		return false
	case 'd':
		out = cube.DrillDown(ctx)
	case 'u':
		out = cube.DrillUp(ctx)
	case 'm':
		out = cube.SetMeasure(ctx, nextMeasure(cube.Measure()))
	case 'p':
		out = cube.Pivot(ctx, Ct.AxisX, Ct.AxisY)
	case 'x':
		out = v.sliceAtSelection(ctx, Ct.AxisX)
	case 'y':
		out = v.sliceAtSelection(ctx, Ct.AxisY)
	case 'z':
		out = v.sliceAtSelection(ctx, Ct.AxisZ)
	case 's':
		out = cube.ClearAllSlices(ctx)
	case '1':
		out = cube.ToggleDimension(ctx, Ct.Source)
	case '2':
		out = cube.ToggleDimension(ctx, Ct.Route)
	case '3':
		out = cube.ToggleDimension(ctx, Ct.Time)
	case 'f':
		out = v.filterAtSelection(ctx)
	case 'r':
		out = cube.ResetDice(ctx)
	case 'c':
		out = cube.ClearAllOperations(ctx)
	case 't':
		out = v.toggleDetail(ctx)
	case 'e':
		snap, err := v.Export()
		out = Ct.Outcome{Applied: err == nil, Message: "Exported snapshot " + snap.ID, Err: err}
		if err != nil {
			out.Message = "Export failed: " + err.Error()
		}
	default:
		return true
	}

	if out.Applied && ev.Rune() != 't' {
		v.MU.Lock()
		v.ShowDetail = false
		v.detail = nil
		v.MU.Unlock()
	}
	v.setMessage(out)
	v.moveSelection(0)
	if out.Applied {
		v.Broadcast()
	}
	return true
}

// toggleDetail opens a drill-through of the selected cell, or closes the open one
func (v *View) toggleDetail(ctx context.Context) Ct.Outcome {
	v.MU.Lock()
	open := v.ShowDetail
	v.MU.Unlock()
	if open {
		v.MU.Lock()
		v.ShowDetail = false
		v.detail = nil
		v.MU.Unlock()
		return Ct.Outcome{Message: "Detail closed"}
	}

	var cell *Ct.Cell
	if c, ok := v.selectedCell(); ok {
		cell = &c
	}
	detail, out := v.cube().DrillThrough(ctx, cell)
	if out.Applied {
		v.MU.Lock()
		v.ShowDetail = true
		v.detail = &detail
		v.MU.Unlock()
	}
	return out
}

// HandleMouseClick selects the cell row under the pointer
func (v *View) HandleMouseClick(x, y int) {
	if y < screenGutter {
		return
	}
	_, height := v.GetScreenSize()
	rows := height - screenGutter - 4
	n := len(v.cube().VisibleCells())

	v.MU.Lock()
	defer v.MU.Unlock()
	idx := pageStart(v.Selected, rows) + y - screenGutter
	if idx < n {
		v.Selected = idx
	}
}

// Running Loop to handle events until quit
func (v *View) handleKeyBoardEvent() {
	// Panic recovery and logging
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in event loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
		}
	}()

	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return // screen finalized
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			if !v.HandleKey(ev) {
				return
			}
			v.UpdateScreen()
		case *tcell.EventMouse:
			// Button1 is Left Mouse Button
			if ev.Buttons() == tcell.Button1 {
				v.HandleMouseClick(ev.Position())
				v.UpdateScreen()
			}
		}
	}
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

// Handler is the traced router
func (v *View) Handler() http.Handler {
	return otelhttp.NewHandler(v.SetupMux(), "cubeview")
}

// listen runs the web server until it is shut down
func (v *View) listen(srv *http.Server) error {
	slog.Info("Starting Cubeview web server...", slog.String("Port", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start web server", slog.Any("Error", err))
		return err
	}
	return nil
}

// shutdown stops the refresh loop, the server and the output
func (v *View) shutdown() {
	if v.Supervisor != nil {
		v.Supervisor.Stop()
	}
	if v.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.server.Shutdown(ctx); err != nil {
			slog.Error("Web server shutdown failed", slog.Any("Error", err))
		}
	}
	if v.Output != nil {
		if err := v.Output.Close(); err != nil {
			slog.Error("Output close failed", slog.Any("Error", err))
		}
	}
}

func (v *View) newServer(addr string) *http.Server {
	v.server = &http.Server{
		Addr:              addr,
		Handler:           v.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return v.server
}

func (v *View) attachOutput(s Settings) error {
	v.CubeOptions = s.CubeOptions
	if s.Output == "" {
		return nil
	}
	return InitOutput(v, s.Output, s.ExportPath)
}

// StartTerminal is called by main to run the terminal view.
// The web server runs alongside it on s.Addr.
func StartTerminal(cube *Cs.Cube, stats *Co.StatsInternal, s Settings) error {
	screen, err := GetTTY()
	if err != nil {
		slog.Error("Could not start terminal", slog.Any("Error", err))
		return err
	}

	view, err := NewView(cube, stats, screen)
	if err != nil {
		screen.Fini()
		return err
	}
	if err := view.attachOutput(s); err != nil {
		screen.Fini()
		return err
	}

	go view.listen(view.newServer(s.Addr))
	view.NewRefreshSupervisor(s.Refresh).Start()

	view.handleKeyBoardEvent()

	view.shutdown()
	screen.Fini()
	return nil
}

// StartWeb serves the cube without a terminal until ctx is done
func StartWeb(ctx context.Context, cube *Cs.Cube, stats *Co.StatsInternal, s Settings) error {
	view, err := NewView(cube, stats, nil)
	if err != nil {
		return err
	}
	if err := view.attachOutput(s); err != nil {
		return err
	}

	view.NewRefreshSupervisor(s.Refresh).Start()

	errc := make(chan error, 1)
	srv := view.newServer(s.Addr)
	go func() { errc <- view.listen(srv) }()

	select {
	case err = <-errc:
	case <-ctx.Done():
		slog.Info("Stopping Cubeview web server")
	}
	view.shutdown()
	return err
}
