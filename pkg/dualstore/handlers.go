package dualstore

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/surrealdb/dualstore/pkg/constants"
	"github.com/surrealdb/dualstore/pkg/flags"
	"github.com/surrealdb/dualstore/pkg/reconcile"
)

const (
	callerHeader    = "X-User-ID"
	anonymousCaller = "anonymous"
	maxBodyBytes    = 1 << 20
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses. Messages built by
// the services are returned as-is; anything else is logged and replaced by a
// generic message so database error text never reaches the client.
func (a *App) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, constants.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, "Application is in read-only mode")
	case errors.Is(err, constants.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, constants.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, constants.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, constants.ErrInsufficientStock), errors.Is(err, constants.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, constants.ErrFeatureDisabled):
		respondError(w, http.StatusForbidden, "Premium features are not enabled for this user")
	case errors.Is(err, constants.ErrUnknownEntity):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "The operation could not be completed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func callerID(r *http.Request) string {
	if id := r.Header.Get(callerHeader); id != "" {
		return id
	}
	return anonymousCaller
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	stores := make(map[string]string)
	status, code := "healthy", http.StatusOK
	for side, err := range a.Ping(r.Context()) {
		if err != nil {
			stores[string(side)] = "unreachable"
			if side == constants.Primary {
				status, code = "unhealthy", http.StatusServiceUnavailable
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		stores[string(side)] = "ok"
	}

	respondJSON(w, code, map[string]any{
		"status":           status,
		"time":             time.Now().UTC(),
		"stores":           stores,
		"secondaryEnabled": a.IsSecondaryEnabled(),
		"readOnly":         a.IsReadOnly(),
		"featureFlags":     a.flags.Status(),
	})
}

func (a *App) handleBidirectionalSync(w http.ResponseWriter, r *http.Request) {
	if a.IsReadOnly() {
		respondError(w, http.StatusConflict, "Sync is not available in read-only mode")
		return
	}
	result := a.reconciler.PerformBidirectionalSync(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, result)
}

func (a *App) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	last, runs, ok := a.reconciler.LastResult()
	body := map[string]any{
		"secondaryEnabled": a.IsSecondaryEnabled(),
		"syncCount":        runs,
		"entities":         a.reconciler.Entities(),
	}
	if ok {
		body["lastSync"] = last
	}
	respondJSON(w, http.StatusOK, body)
}

func (a *App) handleEntitySync(w http.ResponseWriter, r *http.Request) {
	if err := a.checkSyncable(); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	entity := mux.Vars(r)["entity"]
	dir := reconcile.Direction(r.URL.Query().Get("direction"))
	if dir == "" {
		dir = reconcile.ToSecondary
	}
	if dir != reconcile.ToSecondary && dir != reconcile.ToPrimary {
		respondError(w, http.StatusBadRequest, "direction must be to_secondary or to_primary")
		return
	}

	n, err := a.reconciler.SyncEntity(r.Context(), entity, dir)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entity":      entity,
		"direction":   dir,
		"syncedCount": n,
		"timestamp":   time.Now().UTC(),
	})
}

func (a *App) handleConsistency(w http.ResponseWriter, r *http.Request) {
	reports := a.reconciler.VerifyAll(r.Context())
	consistent := true
	for _, report := range reports {
		consistent = consistent && report.InSync
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": consistent,
		"reports":    reports,
	})
}

func (a *App) handleEntityConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := a.reconciler.VerifyConsistency(r.Context(), mux.Vars(r)["entity"])
	if errors.Is(err, constants.ErrUnknownEntity) {
		a.respondServiceError(w, r, err)
		return
	}
	// A failed count check is still a report.
	respondJSON(w, http.StatusOK, report)
}

func (a *App) handleFeatureFlags(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"caller":   caller,
		"features": a.flags.AllFeatures(r.Context(), caller),
		"status":   a.flags.Status(),
	})
}

type setFlagRequest struct {
	Value  any    `json:"value"`
	Caller string `json:"caller,omitempty"`
}

func (a *App) handleSetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	static, ok := a.flags.Provider().(*flags.Static)
	if !ok {
		respondError(w, http.StatusNotImplemented, "Flags are managed by the configured backend")
		return
	}
	var req setFlagRequest
	if err := decodeBody(w, r, &req); err != nil || req.Value == nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	key := mux.Vars(r)["key"]
	if req.Caller != "" {
		static.SetFor(req.Caller, key, req.Value)
	} else {
		static.Set(key, req.Value)
	}
	a.log.Info("feature flag updated", "key", key, "caller", req.Caller, "value", req.Value)
	respondJSON(w, http.StatusOK, map[string]any{"key": key, "value": req.Value, "caller": req.Caller})
}

type readOnlyRequest struct {
	ReadOnly *bool `json:"readOnly"`
}

func (a *App) handleGetReadOnly(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req readOnlyRequest
	if err := decodeBody(w, r, &req); err != nil || req.ReadOnly == nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	a.SetReadOnly(*req.ReadOnly)
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}
