package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/palette"
	"github.com/sells-group/choropleth/internal/store"
)

// ClassifyRequest is the body of POST /v1/classify. A null value is treated as missing.
type ClassifyRequest struct {
	Values      []*float64 `json:"values"`
	IDs         []string   `json:"ids,omitempty"`
	Column      string     `json:"column,omitempty"`
	Scheme      string     `json:"scheme,omitempty"`
	K           *int       `json:"k,omitempty"`
	DropInvalid *bool      `json:"drop_invalid,omitempty"`
	Palette     string     `json:"palette,omitempty"`
	Save        bool       `json:"save,omitempty"`
}

// ClassifyResponse is the classification with its legend.
type ClassifyResponse struct {
	ID           string       `json:"id,omitempty"`
	Scheme       string       `json:"scheme"`
	K            int          `json:"k"`
	KEffective   int          `json:"k_effective"`
	Edges        []float64    `json:"edges"`
	Classes      []int        `json:"classes"`
	Counts       []int        `json:"counts"`
	Bounds       [][2]float64 `json:"bounds"`
	Dropped      int          `json:"dropped"`
	Min          float64      `json:"min"`
	Max          float64      `json:"max"`
	Degenerate   bool         `json:"degenerate"`
	Approximate  bool         `json:"approximate"`
	GVF          float64      `json:"gvf"`
	Labels       []string     `json:"labels"`
	Colors       []string     `json:"colors"`
	MissingColor string       `json:"missing_color"`
}

// RunResponse is a stored run, optionally with its assignments.
type RunResponse struct {
	model.Run
	Assignments []model.Assignment `json:"assignments,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schemes": classify.Schemes()})
}

func (s *Server) handlePalettes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"palettes": s.palettes.Names()})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes(s.cfg.MaxValues))

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.cfg.MaxValues > 0 && len(req.Values) > s.cfg.MaxValues {
		writeError(w, http.StatusRequestEntityTooLarge, "too many values")
		return
	}
	if len(req.IDs) > 0 && len(req.IDs) != len(req.Values) {
		writeError(w, http.StatusBadRequest, "ids must have one entry per value")
		return
	}
	if req.Save && s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	opts, err := s.options(req)
	if err != nil {
		writeClassifyError(w, err)
		return
	}
	if opts.Scheme.NeedsK() && s.cfg.MaxK > 0 && opts.K > s.cfg.MaxK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("k must be at most %d", s.cfg.MaxK))
		return
	}

	values := make([]float64, len(req.Values))
	for i, v := range req.Values {
		if v == nil {
			values[i] = math.NaN()
			continue
		}
		values[i] = *v
	}

	res, err := classify.Classify(values, opts)
	if err != nil {
		writeClassifyError(w, err)
		return
	}

	name := req.Palette
	if name == "" {
		name = s.palette
	}
	pal, err := s.palettes.Get(name, res.KEffective)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := ClassifyResponse{
		Scheme:       string(res.Scheme),
		K:            res.K,
		KEffective:   res.KEffective,
		Edges:        res.Edges,
		Classes:      res.Classes,
		Counts:       res.Counts,
		Bounds:       res.Bounds(),
		Dropped:      res.Dropped,
		Min:          res.Min,
		Max:          res.Max,
		Degenerate:   res.Degenerate,
		Approximate:  res.Approximate,
		GVF:          res.GVF(),
		Labels:       palette.Labels(res, palette.DefaultLabelOptions()),
		Colors:       pal.Colors,
		MissingColor: pal.Missing,
	}

	if req.Save {
		run := model.NewRun(req.Column, "api", res)
		if err := s.store.SaveRun(r.Context(), run); err != nil {
			s.log.Error("save run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save run")
			return
		}
		if len(req.IDs) > 0 {
			if _, err := s.store.SaveAssignments(r.Context(), run.ID, model.Assignments(req.IDs, res)); err != nil {
				s.log.Error("save assignments failed", zap.String("run_id", run.ID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to save assignments")
				return
			}
		}
		resp.ID = run.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// options merges the request over the server defaults.
func (s *Server) options(req ClassifyRequest) (classify.Options, error) {
	opts := s.defaults
	if req.Scheme != "" {
		scheme, err := classify.ParseScheme(req.Scheme)
		if err != nil {
			return classify.Options{}, err
		}
		opts.Scheme = scheme
	}
	if req.K != nil {
		opts.K = *req.K
	}
	if req.DropInvalid != nil {
		opts.DropInvalid = *req.DropInvalid
	}
	return opts, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{Column: q.Get("column"), Scheme: q.Get("scheme")}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.log.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	resp := RunResponse{Run: *run}
	if r.URL.Query().Get("assignments") == "true" {
		if resp.Assignments, err = s.store.GetAssignments(r.Context(), id); err != nil {
			s.log.Error("get assignments failed", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to get assignments")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

// maxBodyBytes allows roughly 32 bytes per value plus ids.
func maxBodyBytes(maxValues int) int64 {
	if maxValues <= 0 {
		return 64 << 20
	}
	return int64(maxValues)*64 + 1<<20
}

func writeClassifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, classify.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "classification failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
