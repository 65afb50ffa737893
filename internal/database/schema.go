// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package database

// schemaQueries returns the table and index creation statements. All
// columns are declared up front; additive migrations append here.
func schemaQueries() []string {
	return []string{
		// Catalog mirror. The portal is authoritative; this service keeps
		// the slice of data recommendations need: title and active flag.
		`CREATE TABLE IF NOT EXISTS projects (
			project_id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Unordered pairs stored canonically (low < high) so at most one
		// link exists per pair. Strength is clamped at write time; the
		// constraints are a backstop.
		`CREATE TABLE IF NOT EXISTS affinity_links (
			project_low INTEGER NOT NULL,
			project_high INTEGER NOT NULL,
			strength DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (project_low, project_high),
			CHECK (project_low < project_high),
			CHECK (strength >= 0.0 AND strength <= 1.0)
		)`,

		// Monotonic per-project view counters, created lazily on first view.
		`CREATE TABLE IF NOT EXISTS view_counters (
			project_id INTEGER PRIMARY KEY,
			views BIGINT NOT NULL DEFAULT 0
		)`,

		// Append-only click event log. Retention is an external policy.
		`CREATE TABLE IF NOT EXISTS click_events (
			project_id INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			clicked_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_click_events_project
			ON click_events (project_id)`,

		// Per-user project favourites.
		`CREATE TABLE IF NOT EXISTS likes (
			project_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			liked_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (project_id, user_id)
		)`,
	}
}
