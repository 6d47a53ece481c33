// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package api provides the admin HTTP surface: health, metrics, the failure
// ledger, trigger-word configuration, alert views, and cohort inspection.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/ingest"
	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/models"
	"github.com/tomtom215/cursus/internal/safety"
	"github.com/tomtom215/cursus/internal/warehouse"
)

// RecoveryService exposes the failure ledger operations.
type RecoveryService interface {
	ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailedStatement, error)
	Retry(ctx context.Context, statementID string) error
	Resolve(ctx context.Context, statementID string) error
}

// AlertService exposes the trigger-word engine operations.
type AlertService interface {
	Keywords() []safety.KeywordInfo
	UpdateKeywords(ctx context.Context, words []string, mode safety.UpdateMode) (added, removed []string)
	RecentAlerts(limit int) []*safety.AlertRecord
	GetSummary() safety.Summary
}

// RegistryStore exposes the warehouse read views the API serves.
type RegistryStore interface {
	ListCohorts(ctx context.Context) ([]*models.Cohort, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// StatsSource supplies the consumer counter snapshot.
type StatsSource interface {
	Stats() ingest.Stats
}

// Handlers holds the services behind the admin endpoints.
type Handlers struct {
	recovery RecoveryService
	alerts   AlertService
	registry RegistryStore
	stats    StatsSource
	syncNow  func()
}

// NewHandlers wires the handler set. syncNow may be nil when no cohort
// scheduler is running.
func NewHandlers(recovery RecoveryService, alerts AlertService, registry RegistryStore,
	stats StatsSource, syncNow func()) *Handlers {
	return &Handlers{
		recovery: recovery,
		alerts:   alerts,
		registry: registry,
		stats:    stats,
		syncNow:  syncNow,
	}
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns the consumer counter snapshot.
func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.Stats())
}

// ListFailures returns unresolved ledger entries, filterable by stage and
// error type.
func (h *Handlers) ListFailures(w http.ResponseWriter, r *http.Request) {
	filter := models.FailureFilter{
		Stage:     r.URL.Query().Get("stage"),
		ErrorType: r.URL.Query().Get("error_type"),
		Limit:     queryInt(r, "limit", 0),
	}
	failures, err := h.recovery.ListFailures(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list failures")
		logging.Error().Err(err).Msg("Failure list query failed")
		return
	}
	if failures == nil {
		failures = []*models.FailedStatement{}
	}
	respondJSON(w, http.StatusOK, failures)
}

// RetryFailure republishes the newest unresolved failure for a statement.
func (h *Handlers) RetryFailure(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "statementID")
	if err := h.recovery.Retry(r.Context(), statementID); err != nil {
		if errors.Is(err, warehouse.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no unresolved failure for statement")
			return
		}
		respondError(w, http.StatusInternalServerError, "retry failed")
		logging.Error().Err(err).Str("statement_id", statementID).Msg("Failure retry failed")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"statement_id": statementID, "status": "queued"})
}

// ResolveFailure marks a statement's failures handled. Idempotent.
func (h *Handlers) ResolveFailure(w http.ResponseWriter, r *http.Request) {
	statementID := chi.URLParam(r, "statementID")
	if err := h.recovery.Resolve(r.Context(), statementID); err != nil {
		respondError(w, http.StatusInternalServerError, "resolve failed")
		logging.Error().Err(err).Str("statement_id", statementID).Msg("Failure resolve failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"statement_id": statementID, "status": "resolved"})
}

// Keywords returns the configured trigger words with scan state.
func (h *Handlers) Keywords(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.alerts.Keywords())
}

type keywordUpdateRequest struct {
	Words []string `json:"words"`
	Mode  string   `json:"mode"` // "append" (default) or "replace"
}

// UpdateKeywords applies a keyword configuration change.
func (h *Handlers) UpdateKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	mode := safety.ModeAppend
	switch req.Mode {
	case "", "append":
	case "replace":
		mode = safety.ModeReplace
	default:
		respondError(w, http.StatusBadRequest, "mode must be append or replace")
		return
	}

	added, removed := h.alerts.UpdateKeywords(r.Context(), req.Words, mode)
	if added == nil {
		added = []string{}
	}
	if removed == nil {
		removed = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"added": added, "removed": removed})
}

// RecentAlerts returns alerts within the retention window, newest first.
func (h *Handlers) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.alerts.RecentAlerts(queryInt(r, "limit", 50))
	if alerts == nil {
		alerts = []*safety.AlertRecord{}
	}
	respondJSON(w, http.StatusOK, alerts)
}

// AlertSummary returns the aggregated alert view.
func (h *Handlers) AlertSummary(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.alerts.GetSummary())
}

// ListCohorts returns the cohort registry.
func (h *Handlers) ListCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.registry.ListCohorts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list cohorts")
		logging.Error().Err(err).Msg("Cohort list query failed")
		return
	}
	if cohorts == nil {
		cohorts = []*models.Cohort{}
	}
	respondJSON(w, http.StatusOK, cohorts)
}

// TriggerCohortSync requests an immediate registry rebuild.
func (h *Handlers) TriggerCohortSync(w http.ResponseWriter, _ *http.Request) {
	if h.syncNow == nil {
		respondError(w, http.StatusServiceUnavailable, "cohort sync not running")
		return
	}
	h.syncNow()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// GetProfile returns one merged user profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile, err := h.registry.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, warehouse.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load profile")
		logging.Error().Err(err).Str("user_id", userID).Msg("Profile query failed")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("Response encode failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
