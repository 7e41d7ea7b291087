package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/model"
	"github.com/sells-group/forest-cli/internal/region"
	"github.com/sells-group/forest-cli/internal/stats"
	"github.com/sells-group/forest-cli/internal/store"
)

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Error: msg})
}

// writeFailure maps service errors to HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var ae *analysis.Error
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ae):
		writeError(w, http.StatusBadGateway, ae.Kind.Error())
	default:
		zap.L().Error("api: unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, map[string]string{"status": "ok"})
}

// readRegions parses a GeoJSON request body.
func (s *Server) readRegions(w http.ResponseWriter, r *http.Request) ([]region.Region, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	return region.Parse(body)
}

func (s *Server) handleForma(w http.ResponseWriter, r *http.Request) {
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	regions, err := s.readRegions(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.analyzer.Forma250(r.Context(), analysis.FormaRequest{Regions: regions, Period: period})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, res)
}

func (s *Server) handleFormaAdmin(w http.ResponseWriter, r *http.Request) {
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	area := analysis.AdminArea{ISO: chi.URLParam(r, "iso")}
	if raw := chi.URLParam(r, "adm1"); raw != "" {
		adm1, err := strconv.Atoi(raw)
		if err != nil || adm1 <= 0 {
			writeError(w, http.StatusBadRequest, "adm1 must be a positive integer")
			return
		}
		area.Adm1 = adm1
	}

	res, err := s.analyzer.Forma250(r.Context(), analysis.FormaRequest{Admin: &area, Period: period})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, res)
}

func (s *Server) handleExtent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := analysis.ExtentRequest{
		Asset: q.Get("asset"),
		Band:  q.Get("band"),
		Tiles: s.opts.DefaultTiles,
	}

	var err error
	if req.Tiles, err = intParam(q.Get("tiles"), req.Tiles); err != nil {
		writeError(w, http.StatusBadRequest, "tiles: "+err.Error())
		return
	}
	if req.Threshold, err = intParam(q.Get("threshold"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "threshold: "+err.Error())
		return
	}
	if req.PerRegion, err = boolParam(q.Get("per_region")); err != nil {
		writeError(w, http.StatusBadRequest, "per_region: "+err.Error())
		return
	}
	if req.BestEffort, err = boolParam(q.Get("best_effort")); err != nil {
		writeError(w, http.StatusBadRequest, "best_effort: "+err.Error())
		return
	}

	if req.Regions, err = s.readRegions(w, r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.analyzer.Extent(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, res)
}

func (s *Server) handleStatsSelect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		query stats.Query
		err   error
	)
	if query.Begin, err = intParam(q.Get("begin"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "begin: "+err.Error())
		return
	}
	if query.End, err = intParam(q.Get("end"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}
	if query.Indicator, err = intParam(q.Get("indicator"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "indicator: "+err.Error())
		return
	}
	if raw := q.Get("scale"); raw != "" {
		if query.Scale, err = strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, http.StatusBadRequest, "scale: "+strconv.Quote(raw)+" is not a number")
			return
		}
	}

	var table stats.Table
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err := dec.Decode(&table); err != nil {
		writeError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}

	sel, err := stats.Select(table, query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, sel)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Kind:   model.RunKind(q.Get("kind")),
		Status: model.RunStatus(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(string(filter.Status)))
		return
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 50); err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "offset: "+err.Error())
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeData(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, run)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Errorf("%q is not an integer", raw)
	}
	if v < 0 {
		return 0, eris.Errorf("%d must not be negative", v)
	}
	return v, nil
}

func boolParam(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, eris.Errorf("%q is not a boolean", raw)
	}
	return v, nil
}
