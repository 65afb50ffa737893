// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/campuskit/affinity/internal/validation"
)

// ClickThroughRequest is the body for POST /signals/click-through.
type ClickThroughRequest struct {
	FromProjectID int    `json:"from_project_id" validate:"required,gt=0"`
	ToProjectID   int    `json:"to_project_id" validate:"required,gt=0"`
	SessionID     string `json:"session_id" validate:"omitempty,max=128"`
}

// EngagementRequest is the body for POST /projects/{id}/engagement.
type EngagementRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

// AdjustRequest is the body for the privileged POST /affinity/adjust.
type AdjustRequest struct {
	ProjectA int     `json:"project_a" validate:"required,gt=0"`
	ProjectB int     `json:"project_b" validate:"required,gt=0"`
	Amount   float64 `json:"amount" validate:"required,gte=-1,lte=1"`
}

// UpsertProjectRequest is the body for PUT /projects/{id}.
type UpsertProjectRequest struct {
	Title  string `json:"title" validate:"required,min=1,max=500"`
	Active *bool  `json:"active" validate:"required"`
}

// SetActiveRequest is the body for PATCH /projects/{id}/active.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// decodeJSON reads and closes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// decodeAndValidate decodes the body into dst and runs struct validation.
// On failure it writes the error response and returns false.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(r, dst); err != nil {
		rw.BadRequest(err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields)
		return false
	}
	return true
}

// projectIDParam parses the {id} URL parameter as a positive project id.
func projectIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", raw)
	}
	return id, nil
}

// boolQueryParam parses an optional boolean query parameter.
func boolQueryParam(r *http.Request, key string, defaultValue bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
