package cubeview

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	Cs "github.com/maroda/cubeview/server"
	Ct "github.com/maroda/cubeview/types"
)

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket stream of the projected cells
// - Version for programmatic use
// - Cube reads and operations under /api
// - Config reload, which starts a fresh session
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", v.WebsocketHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)

	api.HandleFunc("/version", v.VersionHandler).Methods(http.MethodGet)
	api.HandleFunc("/cells", v.CellsHandler).Methods(http.MethodGet)
	api.HandleFunc("/state", v.StateHandler).Methods(http.MethodGet)
	api.HandleFunc("/statistics", v.StatisticsHandler).Methods(http.MethodGet)
	api.HandleFunc("/history", v.HistoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/export", v.ExportHandler).Methods(http.MethodPost)
	api.HandleFunc("/export", v.ExportQueryHandler).Methods(http.MethodGet)
	api.HandleFunc("/config", v.ConfigHandler).Methods(http.MethodPost)

	ops := api.PathPrefix("/ops").Subrouter()
	ops.HandleFunc("/slice", v.SliceHandler).Methods(http.MethodPost)
	ops.HandleFunc("/slice", v.ClearAllSlicesHandler).Methods(http.MethodDelete)
	ops.HandleFunc("/slice/{axis}", v.ClearSliceHandler).Methods(http.MethodDelete)
	ops.HandleFunc("/dice", v.DiceHandler).Methods(http.MethodPost)
	ops.HandleFunc("/dice", v.ResetDiceHandler).Methods(http.MethodDelete)
	ops.HandleFunc("/filter", v.FilterValuesHandler).Methods(http.MethodPost)
	ops.HandleFunc("/filter", v.ClearValueFilterHandler).Methods(http.MethodDelete)
	ops.HandleFunc("/drilldown", v.DrillDownHandler).Methods(http.MethodPost)
	ops.HandleFunc("/drillup", v.DrillUpHandler).Methods(http.MethodPost)
	ops.HandleFunc("/pivot", v.PivotHandler).Methods(http.MethodPost)
	ops.HandleFunc("/drillthrough", v.DrillThroughHandler).Methods(http.MethodPost)
	ops.HandleFunc("/measure", v.MeasureHandler).Methods(http.MethodPost)
	ops.HandleFunc("/dimension/{dim}", v.ToggleDimensionHandler).Methods(http.MethodPost)
	ops.HandleFunc("/clear", v.ClearHandler).Methods(http.MethodPost)

	return r
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// OpResponse is what every operation endpoint answers with.
// No-op outcomes are still a 200, the message says why.
type OpResponse struct {
	Ct.Outcome
	Description  string `json:"description"`
	VisibleCells int    `json:"visibleCells"`
}

type sliceRequest struct {
	Axis     string `json:"axis"`
	Position int    `json:"position"`
}

type filterRequest struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

// valueRangeRequest bounds are optional, null or missing means open
type valueRangeRequest struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type pivotRequest struct {
	Axis1 string `json:"axis1"`
	Axis2 string `json:"axis2"`
}

type measureRequest struct {
	Measure string `json:"measure"`
}

type drillThroughResponse struct {
	Ct.Outcome
	Detail *Ct.DrillThrough `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Could not encode response", slog.Any("Error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON request body into dst and answers 400 when it can't
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Warn("Malformed request body",
			slog.String("path", r.URL.Path),
			slog.Any("Error", err))
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// respond answers an operation and pushes the new state to websocket clients
func (v *View) respond(w http.ResponseWriter, out Ct.Outcome) {
	if out.Applied {
		v.Broadcast()
	}
	writeJSON(w, http.StatusOK, OpResponse{
		Outcome:      out,
		Description:  v.cube().CurrentLevelDescription(),
		VisibleCells: len(v.cube().VisibleCells()),
	})
}

func (v *View) CellsHandler(w http.ResponseWriter, r *http.Request) {
	cells := v.cube().Project()
	if r.URL.Query().Get("visible") == "true" {
		cells = v.cube().VisibleCells()
	}
	writeJSON(w, http.StatusOK, cells)
}

func (v *View) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v.cube().ExportState())
}

func (v *View) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v.cube().Statistics())
}

func (v *View) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v.cube().History())
}

func (v *View) SliceHandler(w http.ResponseWriter, r *http.Request) {
	var req sliceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	axis, _ := Ct.ParseAxis(req.Axis)
	v.respond(w, v.cube().Slice(r.Context(), axis, req.Position))
}

func (v *View) ClearSliceHandler(w http.ResponseWriter, r *http.Request) {
	axis, _ := Ct.ParseAxis(mux.Vars(r)["axis"])
	v.respond(w, v.cube().ClearSlice(r.Context(), axis))
}

func (v *View) ClearAllSlicesHandler(w http.ResponseWriter, r *http.Request) {
	v.respond(w, v.cube().ClearAllSlices(r.Context()))
}

func (v *View) DiceHandler(w http.ResponseWriter, r *http.Request) {
	var req []filterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// unknown dimensions pass through as invalid and are dropped by the cube
	filters := make([]Ct.Filter, 0, len(req))
	for _, f := range req {
		dim, _ := Ct.ParseDimension(f.Dimension)
		filters = append(filters, Ct.Filter{Dimension: dim, Values: f.Values})
	}
	v.respond(w, v.cube().Dice(r.Context(), filters))
}

func (v *View) ResetDiceHandler(w http.ResponseWriter, r *http.Request) {
	v.respond(w, v.cube().ResetDice(r.Context()))
}

func (v *View) FilterValuesHandler(w http.ResponseWriter, r *http.Request) {
	var req valueRangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v.respond(w, v.cube().FilterValues(r.Context(), Ct.ValueRange{Min: req.Min, Max: req.Max}))
}

func (v *View) ClearValueFilterHandler(w http.ResponseWriter, r *http.Request) {
	v.respond(w, v.cube().ClearValueFilter(r.Context()))
}

func (v *View) DrillDownHandler(w http.ResponseWriter, r *http.Request) {
	v.respond(w, v.cube().DrillDown(r.Context()))
}

func (v *View) DrillUpHandler(w http.ResponseWriter, r *http.Request) {
	v.respond(w, v.cube().DrillUp(r.Context()))
}

func (v *View) PivotHandler(w http.ResponseWriter, r *http.Request) {
	var req pivotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a1, _ := Ct.ParseAxis(req.Axis1)
	a2, _ := Ct.ParseAxis(req.Axis2)
	v.respond(w, v.cube().Pivot(r.Context(), a1, a2))
}

// DrillThroughHandler expands the posted cell, or the first visible
// cell when the body is empty
func (v *View) DrillThroughHandler(w http.ResponseWriter, r *http.Request) {
	var cell *Ct.Cell
	var req Ct.Cell
	err := json.NewDecoder(r.Body).Decode(&req)
	switch {
	case err == nil:
		cell = &req
	case errors.Is(err, io.EOF):
	default:
		slog.Warn("Malformed drill-through body", slog.Any("Error", err))
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	detail, out := v.cube().DrillThrough(r.Context(), cell)
	resp := drillThroughResponse{Outcome: out}
	if out.Applied {
		resp.Detail = &detail
		v.Broadcast()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (v *View) MeasureHandler(w http.ResponseWriter, r *http.Request) {
	var req measureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, ok := Ct.ParseMeasure(req.Measure)
	if !ok {
		slog.Warn("Unknown measure, using packages", slog.String("measure", req.Measure))
	}
	v.respond(w, v.cube().SetMeasure(r.Context(), m))
}

func (v *View) ToggleDimensionHandler(w http.ResponseWriter, r *http.Request) {
	dim, _ := Ct.ParseDimension(mux.Vars(r)["dim"])
	v.respond(w, v.cube().ToggleDimension(r.Context(), dim))
}

func (v *View) ClearHandler(w http.ResponseWriter, r *http.Request) {
	v.respond(w, v.cube().ClearAllOperations(r.Context()))
}

// ConfigHandler replaces the cube with one built from the posted configuration.
// The previous session, history included, is discarded.
func (v *View) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	cf, err := Cs.LoadConfig(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := Cs.NewConfig(cf)
	if err != nil {
		slog.Warn("Rejected cube configuration", slog.Any("Error", err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := v.ReloadConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v.respond(w, Ct.Outcome{Applied: true, Message: "Configuration reloaded"})
}

// ExportHandler writes the current snapshot through the configured output
func (v *View) ExportHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := v.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ExportQueryHandler lists exported snapshots between ?start= and ?end= (RFC 3339).
// Missing bounds cover everything up to now.
func (v *View) ExportQueryHandler(w http.ResponseWriter, r *http.Request) {
	if v.Output == nil {
		writeError(w, http.StatusInternalServerError, ErrNoOutput.Error())
		return
	}

	start := time.Unix(0, 0)
	end := time.Now()
	q := r.URL.Query()
	if s := q.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
			return
		}
		start = t
	}
	if e := q.Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
			return
		}
		end = t
	}

	snaps, err := v.Output.QueryRange(start, end)
	if err != nil {
		slog.Error("Could not query exports", slog.Any("Error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []*Ct.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}
