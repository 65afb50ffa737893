// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campuskit/affinity/internal/metrics"
)

// AddLike records a like. Liking an already-liked project is a no-op.
func (db *DB) AddLike(ctx context.Context, projectID int, userID string) error {
	err := db.withConflictRetry(ctx, func() error {
		start := time.Now()
		_, execErr := db.conn.ExecContext(ctx, `
			INSERT INTO likes (project_id, user_id, liked_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (project_id, user_id) DO NOTHING`,
			projectID, userID,
		)
		metrics.ObserveDBQuery("add_like", "likes", start, execErr)
		return execErr
	})
	if err != nil {
		return storeErr("add like", err)
	}
	return nil
}

// RemoveLike deletes a like. Removing an absent like is a no-op.
func (db *DB) RemoveLike(ctx context.Context, projectID int, userID string) error {
	err := db.withConflictRetry(ctx, func() error {
		start := time.Now()
		_, execErr := db.conn.ExecContext(ctx,
			`DELETE FROM likes WHERE project_id = ? AND user_id = ?`,
			projectID, userID,
		)
		metrics.ObserveDBQuery("remove_like", "likes", start, execErr)
		return execErr
	})
	if err != nil {
		return storeErr("remove like", err)
	}
	return nil
}

// IsLiked reports whether the user currently likes the project.
func (db *DB) IsLiked(ctx context.Context, projectID int, userID string) (bool, error) {
	start := time.Now()
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM likes WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&one)
	metrics.ObserveDBQuery("is_liked", "likes", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("is liked", err)
	}
	return true, nil
}

// LikeCount returns the number of users that like the project.
func (db *DB) LikeCount(ctx context.Context, projectID int) (int64, error) {
	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM likes WHERE project_id = ?`,
		projectID,
	).Scan(&count)
	metrics.ObserveDBQuery("like_count", "likes", start, err)
	if err != nil {
		return 0, storeErr("like count", err)
	}
	return count, nil
}
