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

// GetStrength returns the stored strength for the unordered pair (a, b),
// or 0 when no link exists.
func (db *DB) GetStrength(ctx context.Context, a, b int) (float64, error) {
	pair, err := affinity.NewPair(a, b)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var strength float64
	err = db.conn.QueryRowContext(ctx,
		`SELECT strength FROM affinity_links
		 WHERE project_low = ? AND project_high = ?`,
		pair.Low, pair.High,
	).Scan(&strength)
	metrics.ObserveDBQuery("get_strength", "affinity_links", start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("get strength", err)
	}
	return strength, nil
}

// Reinforce atomically adds delta to the pair's strength, creating the
// link at zero if absent, clamps to [0, 1], and returns the new value.
//
// The whole read-modify-write is a single INSERT .. ON CONFLICT DO UPDATE
// statement, so two concurrent reinforcements of d1 and d2 accumulate to
// d1+d2 (within clamping) rather than losing one of the writes. DuckDB
// optimistic-concurrency conflicts are retried with backoff.
func (db *DB) Reinforce(ctx context.Context, a, b int, delta float64) (float64, error) {
	pair, err := affinity.NewPair(a, b)
	if err != nil {
		return 0, err
	}

	const query = `
		INSERT INTO affinity_links (project_low, project_high, strength, updated_at)
		VALUES (?, ?, greatest(0.0, least(1.0, ?)), CURRENT_TIMESTAMP)
		ON CONFLICT (project_low, project_high) DO UPDATE SET
			strength = greatest(0.0, least(1.0, affinity_links.strength + ?)),
			updated_at = now()
		RETURNING strength`

	var strength float64
	err = db.withConflictRetry(ctx, func() error {
		start := time.Now()
		scanErr := db.conn.QueryRowContext(ctx, query,
			pair.Low, pair.High, delta, delta,
		).Scan(&strength)
		metrics.ObserveDBQuery("reinforce", "affinity_links", start, scanErr)
		return scanErr
	})
	if err != nil {
		return 0, storeErr(fmt.Sprintf("reinforce %d/%d", pair.Low, pair.High), err)
	}

	metrics.ReinforcementsApplied.Inc()
	return strength, nil
}

// TopLinks returns all links involving projectID ordered by strength
// descending, ties broken by the other project id ascending, truncated to
// limit.
func (db *DB) TopLinks(ctx context.Context, projectID, limit int) ([]affinity.Link, error) {
	if limit <= 0 {
		return []affinity.Link{}, nil
	}

	const query = `
		SELECT CASE WHEN project_low = ? THEN project_high ELSE project_low END AS other,
		       strength
		FROM affinity_links
		WHERE project_low = ? OR project_high = ?
		ORDER BY strength DESC, other ASC
		LIMIT ?`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, projectID, projectID, projectID, limit)
	metrics.ObserveDBQuery("top_links", "affinity_links", start, err)
	if err != nil {
		return nil, storeErr("top links", err)
	}
	defer func() { _ = rows.Close() }()

	links := make([]affinity.Link, 0, limit)
	for rows.Next() {
		var link affinity.Link
		if err := rows.Scan(&link.Other, &link.Strength); err != nil {
			return nil, storeErr("scan link", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate links", err)
	}

	return links, nil
}
