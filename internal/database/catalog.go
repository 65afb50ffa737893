// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuskit/affinity/internal/affinity"
	"github.com/campuskit/affinity/internal/metrics"
)

// FetchProject loads a single project summary. When activeOnly is set,
// archived projects are treated as unknown.
func (db *DB) FetchProject(ctx context.Context, id int, activeOnly bool) (affinity.ProjectSummary, error) {
	query := `
		SELECT p.project_id, p.title, p.active, coalesce(v.views, 0)
		FROM projects p
		LEFT JOIN view_counters v ON v.project_id = p.project_id
		WHERE p.project_id = ?`
	if activeOnly {
		query += ` AND p.active`
	}

	start := time.Now()
	var p affinity.ProjectSummary
	err := db.conn.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Title, &p.Active, &p.Views)
	metrics.ObserveDBQuery("fetch_project", "projects", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return affinity.ProjectSummary{}, fmt.Errorf("project %d: %w", id, affinity.ErrUnknownProject)
	}
	if err != nil {
		return affinity.ProjectSummary{}, storeErr("fetch project", err)
	}
	return p, nil
}

// FetchMostViewed returns up to n projects ordered by view count
// descending, ties broken by project id ascending. Projects with no
// counter row rank as zero views.
func (db *DB) FetchMostViewed(ctx context.Context, n int, activeOnly bool) ([]affinity.ProjectSummary, error) {
	if n <= 0 {
		return []affinity.ProjectSummary{}, nil
	}

	query := `
		SELECT p.project_id, p.title, p.active, coalesce(v.views, 0) AS views
		FROM projects p
		LEFT JOIN view_counters v ON v.project_id = p.project_id`
	if activeOnly {
		query += `
		WHERE p.active`
	}
	query += `
		ORDER BY views DESC, p.project_id ASC
		LIMIT ?`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, n)
	metrics.ObserveDBQuery("fetch_most_viewed", "projects", start, err)
	if err != nil {
		return nil, storeErr("fetch most viewed", err)
	}
	defer func() { _ = rows.Close() }()

	projects := make([]affinity.ProjectSummary, 0, n)
	for rows.Next() {
		var p affinity.ProjectSummary
		if err := rows.Scan(&p.ID, &p.Title, &p.Active, &p.Views); err != nil {
			return nil, storeErr("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate projects", err)
	}

	return projects, nil
}

// UpsertProject creates or updates a catalog entry.
func (db *DB) UpsertProject(ctx context.Context, id int, title string, active bool) error {
	err := db.withConflictRetry(ctx, func() error {
		start := time.Now()
		_, execErr := db.conn.ExecContext(ctx, `
			INSERT INTO projects (project_id, title, active, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (project_id) DO UPDATE SET
				title = excluded.title,
				active = excluded.active,
				updated_at = now()`,
			id, title, active,
		)
		metrics.ObserveDBQuery("upsert_project", "projects", start, execErr)
		return execErr
	})
	if err != nil {
		return storeErr("upsert project", err)
	}
	return nil
}

// SetActive flips a project's visibility without touching its title.
// Affinity links and counters are retained so reactivation restores the
// project's standing.
func (db *DB) SetActive(ctx context.Context, id int, active bool) error {
	var res sql.Result
	err := db.withConflictRetry(ctx, func() error {
		start := time.Now()
		var execErr error
		res, execErr = db.conn.ExecContext(ctx,
			`UPDATE projects SET active = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE project_id = ?`,
			active, id,
		)
		metrics.ObserveDBQuery("set_active", "projects", start, execErr)
		return execErr
	})
	if err != nil {
		return storeErr("set active", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("set active", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %d: %w", id, affinity.ErrUnknownProject)
	}
	return nil
}
