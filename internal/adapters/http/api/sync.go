package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/kpisync/internal/app"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/pkg/logger"
)

// SyncHandler runs a sync on request and answers with its result.
type SyncHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps Dependencies, l logger.Logger) *SyncHandler {
	return &SyncHandler{deps: deps, logger: l}
}

// syncRequest is the JSON body of POST /api/kpi_sync. Absent fields keep
// the query or default value.
type syncRequest struct {
	ProcessIndividual *bool   `json:"process_individual"`
	ProcessTeamLeader *bool   `json:"process_team_leader"`
	Therapist         *string `json:"therapist"`
}

// HandleSync handles GET and POST /api/kpi_sync.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.kpi_sync"
	req, err := parseSyncRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Submit(r.Context(), req, true)
	switch {
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	case err != nil && res.Status == "":
		// Never reached the runner: cancelled while queued or waiting.
		h.logger.Warn(r.Context(), "sync request aborted", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.Result{
			Status:         model.StatusError,
			PendingChanges: []model.PendingChange{},
			Error:          WrapKind(op, ErrSyncFailed, err).Error(),
		})
		return
	}
	if res.Status == model.StatusError {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseSyncRequest(r *http.Request) (model.RunRequest, error) {
	req := model.DefaultRunRequest(model.TriggerHTTP)
	q := r.URL.Query()
	if v := q.Get("process_individual"); v != "" {
		req.ProcessIndividual = strings.EqualFold(v, "true")
	}
	if v := q.Get("process_team_leader"); v != "" {
		req.ProcessTeamLeader = strings.EqualFold(v, "true")
	}
	req.Therapist = q.Get("therapist")

	if r.Method != http.MethodPost || r.Body == nil {
		return req, nil
	}
	var body syncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, err
	}
	if body.ProcessIndividual != nil {
		req.ProcessIndividual = *body.ProcessIndividual
	}
	if body.ProcessTeamLeader != nil {
		req.ProcessTeamLeader = *body.ProcessTeamLeader
	}
	if body.Therapist != nil {
		req.Therapist = *body.Therapist
	}
	return req, nil
}

// RunsHandler lists recent runs.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// HandleRuns handles GET /api/runs?limit=n.
func (h *RunsHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.runs"
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRunsLimit {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("limit must be between 1 and 500")))
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}
