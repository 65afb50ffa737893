// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campuskit/affinity/internal/affinity"
	"github.com/campuskit/affinity/internal/logging"
	"github.com/campuskit/affinity/internal/signals"
)

// Catalog is the project catalog surface the handlers need beyond the
// read-only view the engine uses.
type Catalog interface {
	FetchProject(ctx context.Context, id int, activeOnly bool) (affinity.ProjectSummary, error)
	UpsertProject(ctx context.Context, id int, title string, active bool) error
	SetActive(ctx context.Context, id int, active bool) error
}

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	selector  *affinity.Selector
	ingestor  *affinity.Ingestor
	publisher *signals.Publisher
	likes     affinity.LikeStore
	catalog   Catalog
	pinger    Pinger
}

// NewHandler wires handler dependencies.
func NewHandler(
	selector *affinity.Selector,
	ingestor *affinity.Ingestor,
	publisher *signals.Publisher,
	likes affinity.LikeStore,
	catalog Catalog,
	pinger Pinger,
) *Handler {
	return &Handler{
		selector:  selector,
		ingestor:  ingestor,
		publisher: publisher,
		likes:     likes,
		catalog:   catalog,
		pinger:    pinger,
	}
}

// relatedResponse is the payload for GET /projects/{id}/related.
type relatedResponse struct {
	ProjectID int                       `json:"project_id"`
	Related   []affinity.ProjectSummary `json:"related"`
}

// Related returns up to the configured quota of related projects. Selection
// failures degrade to an empty list rather than an error page.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	activeOnly := boolQueryParam(r, "active_only", true)

	if _, err := h.catalog.FetchProject(r.Context(), id, activeOnly); err != nil {
		if errors.Is(err, affinity.ErrUnknownProject) {
			rw.NotFound("project not found")
			return
		}
		rw.StoreError(err)
		return
	}

	related, err := h.selector.Related(r.Context(), id, activeOnly)
	if err != nil {
		// Context cancellation is the only non-degradable failure.
		rw.ServiceUnavailable("selection unavailable")
		return
	}

	rw.Success(relatedResponse{ProjectID: id, Related: related})
}

// ClickThrough accepts a navigation signal from one project page to
// another. The reinforcement is applied asynchronously.
func (h *Handler) ClickThrough(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ClickThroughRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	if req.FromProjectID == req.ToProjectID {
		rw.BadRequest("from_project_id and to_project_id must differ")
		return
	}

	sig := signals.NewSignal(signals.KindClickThrough)
	sig.FromProjectID = req.FromProjectID
	sig.ProjectID = req.ToProjectID
	sig.SessionID = req.SessionID

	h.publish(rw, r, sig)
}

// View accepts a page-view signal for a project.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	sig := signals.NewSignal(signals.KindView)
	sig.ProjectID = id

	h.publish(rw, r, sig)
}

// Engagement accepts a combined view-plus-click signal for a project. The
// click portion only registers when a session id is supplied.
func (h *Handler) Engagement(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	var req EngagementRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	sig := signals.NewSignal(signals.KindEngagement)
	sig.ProjectID = id
	sig.SessionID = req.SessionID

	h.publish(rw, r, sig)
}

// publish sends a signal and answers 202. Publish failures are surfaced as
// 503 so callers can distinguish "queued" from "lost".
func (h *Handler) publish(rw *ResponseWriter, r *http.Request, sig *signals.Signal) {
	if err := h.publisher.Publish(r.Context(), sig); err != nil {
		logger := logging.Ctx(r.Context())
		logger.Warn().Err(err).Str("kind", sig.Kind).Msg("Signal publish failed")
		rw.ServiceUnavailable("signal pipeline unavailable")
		return
	}
	rw.Accepted(map[string]string{"signal_id": sig.SignalID})
}

// Adjust applies a privileged strength adjustment synchronously so the
// caller sees validation and storage failures directly.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AdjustRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	err := h.ingestor.RecordManualAdjustment(r.Context(), req.ProjectA, req.ProjectB, req.Amount)
	switch {
	case err == nil:
		rw.Success(map[string]interface{}{
			"project_a": req.ProjectA,
			"project_b": req.ProjectB,
			"amount":    req.Amount,
		})
	case errors.Is(err, affinity.ErrSelfPair):
		rw.BadRequest("project_a and project_b must differ")
	case errors.Is(err, affinity.ErrUnknownProject):
		rw.NotFound("project not found")
	case errors.Is(err, affinity.ErrStoreUnavailable):
		rw.StoreError(err)
	default:
		rw.InternalError("adjustment failed")
	}
}

// UpsertProject creates or replaces a catalog entry.
func (h *Handler) UpsertProject(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	var req UpsertProjectRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	if err := h.catalog.UpsertProject(r.Context(), id, req.Title, *req.Active); err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(map[string]interface{}{"project_id": id})
}

// SetProjectActive archives or restores a project. Links and counters are
// retained either way.
func (h *Handler) SetProjectActive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	var req SetActiveRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	err = h.catalog.SetActive(r.Context(), id, *req.Active)
	switch {
	case err == nil:
		rw.Success(map[string]interface{}{"project_id": id, "active": *req.Active})
	case errors.Is(err, affinity.ErrUnknownProject):
		rw.NotFound("project not found")
	default:
		rw.StoreError(err)
	}
}

// likesResponse is the payload for GET /projects/{id}/likes.
type likesResponse struct {
	ProjectID int   `json:"project_id"`
	Count     int64 `json:"count"`
	Liked     *bool `json:"liked,omitempty"`
}

// Likes returns the like count, and the caller's liked state when a
// user_id query parameter is present.
func (h *Handler) Likes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	count, err := h.likes.LikeCount(r.Context(), id)
	if err != nil {
		rw.StoreError(err)
		return
	}

	resp := likesResponse{ProjectID: id, Count: count}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		liked, err := h.likes.IsLiked(r.Context(), id, userID)
		if err != nil {
			rw.StoreError(err)
			return
		}
		resp.Liked = &liked
	}

	rw.Success(resp)
}

// AddLike records a like for the project. Idempotent.
func (h *Handler) AddLike(w http.ResponseWriter, r *http.Request) {
	h.likeOp(w, r, h.likes.AddLike)
}

// RemoveLike removes a like for the project. Idempotent.
func (h *Handler) RemoveLike(w http.ResponseWriter, r *http.Request) {
	h.likeOp(w, r, h.likes.RemoveLike)
}

func (h *Handler) likeOp(w http.ResponseWriter, r *http.Request, op func(context.Context, int, string) error) {
	rw := NewResponseWriter(w, r)

	id, err := projectIDParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.BadRequest("user id is required")
		return
	}

	if _, err := h.catalog.FetchProject(r.Context(), id, true); err != nil {
		if errors.Is(err, affinity.ErrUnknownProject) {
			rw.NotFound("project not found")
			return
		}
		rw.StoreError(err)
		return
	}

	if err := op(r.Context(), id, userID); err != nil {
		rw.StoreError(err)
		return
	}
	rw.NoContent()
}
