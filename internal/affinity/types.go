// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import (
	"context"
	"time"
)

// ProjectSummary is the slice of catalog data the engine reads. The catalog
// collaborator is authoritative for existence and the active flag; the
// engine never mutates it.
type ProjectSummary struct {
	// ID is the opaque catalog identifier.
	ID int `json:"id"`

	// Title is the project title, carried through for display.
	Title string `json:"title"`

	// Active distinguishes current projects from archived ones.
	Active bool `json:"active"`

	// Views is the accumulated view count used for popularity ranking.
	Views int64 `json:"views"`
}

// Link is one edge of the affinity graph as seen from a source project:
// the other endpoint and the accumulated match strength.
type Link struct {
	// Other is the project on the far side of the link.
	Other int `json:"other"`

	// Strength is the accumulated match strength, clamped to [0, 1].
	Strength float64 `json:"strength"`
}

// Pair is an unordered project pair in canonical (low, high) order.
// Storing pairs canonically guarantees at most one link per unordered pair.
type Pair struct {
	Low  int
	High int
}

// NewPair canonicalizes (a, b) into a Pair. Self-referential pairs are
// rejected: a project has no affinity with itself.
func NewPair(a, b int) (Pair, error) {
	if a == b {
		return Pair{}, ErrSelfPair
	}
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}, nil
}

// Other returns the endpoint of the pair that is not id.
func (p Pair) Other(id int) int {
	if p.Low == id {
		return p.High
	}
	return p.Low
}

// ClampStrength bounds a strength value to the valid [0, 1] range.
func ClampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Store is the durable affinity mapping. Implementations must make
// Reinforce atomic per pair under concurrent callers: the combined effect
// of two concurrent reinforcements equals a single reinforcement of the
// summed delta, within clamping.
type Store interface {
	// GetStrength returns the stored strength for the unordered pair
	// (a, b), or 0 when no link exists. Symmetric in its arguments.
	GetStrength(ctx context.Context, a, b int) (float64, error)

	// Reinforce atomically adds delta to the pair's strength, creating the
	// link at zero if absent, clamps the result to [0, 1], and returns the
	// new value. Rejects a == b with ErrSelfPair.
	Reinforce(ctx context.Context, a, b int, delta float64) (float64, error)

	// TopLinks returns all links involving projectID ordered by strength
	// descending, ties broken by the other project id ascending, truncated
	// to limit.
	TopLinks(ctx context.Context, projectID, limit int) ([]Link, error)
}

// CounterStore records raw behavioural telemetry. Increments must be atomic
// per key; counters are create-on-first-use and never reset.
type CounterStore interface {
	// IncrementView adds one view to the project's counter and returns the
	// new total.
	IncrementView(ctx context.Context, projectID int) (int64, error)

	// RecordClick appends a click event for the (project, session) pair.
	// Events are append-only and never mutated.
	RecordClick(ctx context.Context, projectID int, sessionID string, at time.Time) error
}

// Catalog is the outbound contract to the project catalog collaborator.
// When activeOnly is set, archived projects are invisible: fetching one
// yields ErrUnknownProject and rankings exclude them.
type Catalog interface {
	// FetchProject returns the summary for id, or ErrUnknownProject when
	// the catalog does not recognize it (or it is filtered out).
	FetchProject(ctx context.Context, id int, activeOnly bool) (ProjectSummary, error)

	// FetchMostViewed returns up to n projects ordered by view count
	// descending, ties broken by project id ascending.
	FetchMostViewed(ctx context.Context, n int, activeOnly bool) ([]ProjectSummary, error)
}

// LikeStore records per-user project favourites. Add and remove are
// idempotent on the (project, user) pair.
type LikeStore interface {
	AddLike(ctx context.Context, projectID int, userID string) error
	RemoveLike(ctx context.Context, projectID int, userID string) error
	IsLiked(ctx context.Context, projectID int, userID string) (bool, error)
	LikeCount(ctx context.Context, projectID int) (int64, error)
}
