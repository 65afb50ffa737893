// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package database

import (
	"context"
	"time"

	"github.com/campuskit/affinity/internal/metrics"
)

// IncrementView adds one to the project's view counter and returns the new
// total. Counters only ever grow; there is no decrement path.
func (db *DB) IncrementView(ctx context.Context, projectID int) (int64, error) {
	const query = `
		INSERT INTO view_counters (project_id, views)
		VALUES (?, 1)
		ON CONFLICT (project_id) DO UPDATE SET
			views = view_counters.views + 1
		RETURNING views`

	var views int64
	err := db.withConflictRetry(ctx, func() error {
		start := time.Now()
		scanErr := db.conn.QueryRowContext(ctx, query, projectID).Scan(&views)
		metrics.ObserveDBQuery("increment_view", "view_counters", start, scanErr)
		return scanErr
	})
	if err != nil {
		return 0, storeErr("increment view", err)
	}
	return views, nil
}

// RecordClick appends a click event. Events are append-only; repeated
// clicks from the same session produce distinct rows and dedup policy is
// left to readers.
func (db *DB) RecordClick(ctx context.Context, projectID int, sessionID string, at time.Time) error {
	err := db.withConflictRetry(ctx, func() error {
		start := time.Now()
		_, execErr := db.conn.ExecContext(ctx,
			`INSERT INTO click_events (project_id, session_id, clicked_at)
			 VALUES (?, ?, ?)`,
			projectID, sessionID, at,
		)
		metrics.ObserveDBQuery("record_click", "click_events", start, execErr)
		return execErr
	})
	if err != nil {
		return storeErr("record click", err)
	}
	return nil
}
