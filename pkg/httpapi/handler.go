package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/negotiation"
	"digital.vasic.challengeboard/pkg/report"
)

type eventRequest struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	Time       *time.Time     `json:"time"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type completeRequest struct {
	Ref string `json:"ref"`
}

type modeRequest struct {
	Testing *bool `json:"testing"`
}

func (h *handler) getMode(w http.ResponseWriter, _ *http.Request) {
	mode := h.engine.Mode()
	writeJSON(w, http.StatusOK, map[string]any{
		"testing":   mode.Testing,
		"reloading": mode.Reloading,
		"policy":    h.engine.Policy().String(),
	})
}

func (h *handler) putMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Testing == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "testing is required")
		return
	}
	h.engine.SetTestingMode(*req.Testing)
	h.getMode(w, r)
}

func (h *handler) getMetrics(w http.ResponseWriter, _ *http.Request) {
	if h.metrics == nil {
		writeError(w, http.StatusNotFound, "not_found", "metrics are disabled")
		return
	}
	writeJSON(w, http.StatusOK, h.metrics.Counters())
}

// getReport renders the board. ?format=html selects HTML; JSON
// is the default.
func (h *handler) getReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	rep, ok := report.ForFormat(format)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("unknown format %q", format))
		return
	}

	var counters map[string]int
	if h.metrics != nil {
		counters = h.metrics.Counters()
	}
	data, err := rep.Generate(report.Build(h.engine, counters))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *handler) rotateAll(w http.ResponseWriter, _ *http.Request) {
	n := h.engine.RotateAll()
	writeJSON(w, http.StatusOK, map[string]int{"rotated": n})
}

func (h *handler) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeError(w, http.StatusNotFound, "not_found", "reload is disabled")
		return
	}
	if err := h.reload(r.Context()); err != nil {
		h.logger.Error("reload failed", logging.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "reload_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listLists(w http.ResponseWriter, _ *http.Request) {
	lists := h.engine.Lists()
	out := make([]listView, 0, len(lists))
	for _, l := range lists {
		out = append(out, newListView(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *handler) getList(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.List(chi.URLParam(r, "list"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	l.CheckAndRotate(h.engine.Mode())
	writeJSON(w, http.StatusOK, newListView(l))
}

func (h *handler) getVisible(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.List(chi.URLParam(r, "list"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	visible := l.Visible()
	out := make([]challengeView, 0, len(visible))
	for _, d := range visible {
		out = append(out, newChallengeView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *handler) getRotation(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.List(chi.URLParam(r, "list"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	v := newListView(l)
	writeJSON(w, http.StatusOK, map[string]any{
		"list":          v.ID,
		"interval":      v.Interval,
		"last_rotation": v.LastRotation,
		"remaining_ms":  v.RemainingMillis,
		"remaining":     v.RemainingFormatted,
	})
}

func (h *handler) forceRotate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "list")
	if err := h.engine.ForceRotate(id); err != nil {
		respondEngineError(w, err)
		return
	}
	l, err := h.engine.List(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListView(l))
}

func (h *handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	p, ok := h.engine.Profile(chi.URLParam(r, "participant"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_participant", "participant not found")
		return
	}
	writeJSON(w, http.StatusOK, h.newParticipantView(p))
}

func (h *handler) join(w http.ResponseWriter, r *http.Request) {
	p := h.engine.Join(chi.URLParam(r, "participant"))
	writeJSON(w, http.StatusOK, h.newParticipantView(p))
}

func (h *handler) postEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "type is required")
		return
	}

	participant := chi.URLParam(r, "participant")
	ev := &challenge.Event{
		Type:        req.Type,
		Participant: participant,
		Attributes:  req.Attributes,
	}
	if req.Time != nil {
		ev.Time = *req.Time
	}
	n := h.engine.Progress(participant, ev)
	writeJSON(w, http.StatusAccepted, map[string]int{"completed": n})
}

func (h *handler) selectChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Select(
		chi.URLParam(r, "participant"),
		chi.URLParam(r, "list"),
		challenge.ID(chi.URLParam(r, "challenge")),
	)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	v := selectView{Status: res.Status.String()}
	if res.Status == engine.SelectPending {
		v.Token = res.Token
		v.Replacing = res.Replacing
		v.ExpiresAt = &res.ExpiresAt
		writeJSON(w, http.StatusAccepted, v)
		return
	}
	pv := newProgressView(res.Progress)
	v.Progress = &pv
	writeJSON(w, http.StatusCreated, v)
}

func (h *handler) abandon(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Abandon(
		chi.URLParam(r, "participant"),
		chi.URLParam(r, "list"),
		challenge.ID(chi.URLParam(r, "challenge")),
	)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) confirmReplacement(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	outcome, err := h.engine.ConfirmReplacement(
		chi.URLParam(r, "participant"), req.Token,
	)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondOutcome(w, outcome)
}

func (h *handler) cancelReplacement(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	respondOutcome(w, h.engine.CancelReplacement(
		chi.URLParam(r, "participant"), req.Token,
	))
}

func (h *handler) forceComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	participant := chi.URLParam(r, "participant")
	g, err := h.engine.ForceComplete(participant, strings.TrimSpace(req.Ref))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.logger.Info("challenge force-completed",
		logging.ParticipantField(participant),
		logging.ListField(g.List()),
		logging.ChallengeField(string(g.ID())),
	)
	writeJSON(w, http.StatusOK, completedView{
		List: g.List(), Challenge: g.ID(), CompletedAt: h.engine.Now(),
	})
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset(chi.URLParam(r, "participant"))
	w.WriteHeader(http.StatusNoContent)
}

// respondOutcome reports a negotiation outcome. An outcome of
// none means no prompt matched the token.
func respondOutcome(w http.ResponseWriter, outcome negotiation.Outcome) {
	switch outcome {
	case negotiation.None:
		writeError(w, http.StatusNotFound, "no_pending_replacement",
			"no pending replacement matches the token")
	case negotiation.Expired:
		writeError(w, http.StatusGone, "replacement_expired",
			"the replacement prompt has expired")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
	}
}

func respondEngineError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeError(w, status, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrUnknownList):
		return http.StatusNotFound, "unknown_list"
	case errors.Is(err, engine.ErrUnknownChallenge):
		return http.StatusNotFound, "unknown_challenge"
	case errors.Is(err, engine.ErrNotActive):
		return http.StatusNotFound, "not_active"
	case errors.Is(err, engine.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, engine.ErrNoLongerAvailable):
		return http.StatusGone, "no_longer_available"
	case errors.Is(err, engine.ErrNotVisible):
		return http.StatusConflict, "not_visible"
	case errors.Is(err, engine.ErrAlreadyCompleted):
		return http.StatusConflict, "already_completed"
	case errors.Is(err, engine.ErrAlreadyInProgress):
		return http.StatusConflict, "already_in_progress"
	case errors.Is(err, engine.ErrAutomaticChallenge):
		return http.StatusConflict, "automatic_challenge"
	case errors.Is(err, engine.ErrSlotsHeldBySelection):
		return http.StatusConflict, "slots_held_by_selection"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// decodeBody reads a JSON body. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorResponse{
		"error": {Code: code, Message: message},
	})
}
