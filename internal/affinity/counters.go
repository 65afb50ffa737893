// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Counters records per-project view and click telemetry. Each call is one
// unit of signal; callers decide whether that is per page load or per
// session. Counters only grow: archival or extension of a project never
// resets them.
type Counters struct {
	store   CounterStore
	catalog Catalog
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCounters creates the counter recorder.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCounters(store CounterStore, catalog Catalog, logger zerolog.Logger) *Counters {
	return &Counters{
		store:   store,
		catalog: catalog,
		logger:  logger.With().Str("component", "counters").Logger(),
		now:     time.Now,
	}
}

// RecordView adds one view to the project's counter. Unknown project ids
// yield ErrUnknownProject for the boundary to log and drop.
func (c *Counters) RecordView(ctx context.Context, projectID int) error {
	if _, err := c.catalog.FetchProject(ctx, projectID, false); err != nil {
		return fmt.Errorf("record view for %d: %w", projectID, err)
	}

	views, err := c.store.IncrementView(ctx, projectID)
	if err != nil {
		return fmt.Errorf("record view for %d: %w", projectID, err)
	}

	c.logger.Debug().Int("project_id", projectID).Int64("views", views).Msg("view recorded")
	return nil
}

// RecordClick appends a click event for the (project, session) pair.
// A session id is required; events are appended without per-session
// deduplication.
func (c *Counters) RecordClick(ctx context.Context, projectID int, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("record click for %d: %w", projectID, ErrMissingSession)
	}
	if _, err := c.catalog.FetchProject(ctx, projectID, false); err != nil {
		return fmt.Errorf("record click for %d: %w", projectID, err)
	}

	if err := c.store.RecordClick(ctx, projectID, sessionID, c.now().UTC()); err != nil {
		return fmt.Errorf("record click for %d: %w", projectID, err)
	}

	c.logger.Debug().Int("project_id", projectID).Str("session_id", sessionID).Msg("click recorded")
	return nil
}

// RecordEngagement is the combined page-visit signal: one view always, plus
// a click event when a session id is present. Mirrors the behaviour of the
// portal's register-user-data endpoint.
func (c *Counters) RecordEngagement(ctx context.Context, projectID int, sessionID string) error {
	if err := c.RecordView(ctx, projectID); err != nil {
		return err
	}
	if sessionID == "" {
		return nil
	}
	return c.RecordClick(ctx, projectID, sessionID)
}
