// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

// Package database implements the engine's persistence contracts on
// DuckDB: the affinity store, view/click counters, likes, and the project
// catalog mirror. All mutation paths use single-statement atomic upserts
// with transaction-conflict retry, so concurrent reinforcement of the same
// pair accumulates without lost updates.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/campuskit/affinity/internal/affinity"
	"github.com/campuskit/affinity/internal/config"
	"github.com/campuskit/affinity/internal/logging"
	"github.com/campuskit/affinity/internal/metrics"
)

// DB wraps the DuckDB connection and provides the data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// Compile-time checks that DB satisfies the engine contracts.
var (
	_ affinity.Store        = (*DB)(nil)
	_ affinity.CounterStore = (*DB)(nil)
	_ affinity.Catalog      = (*DB)(nil)
	_ affinity.LikeStore    = (*DB)(nil)
)

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	// DuckDB works best with a small pool; writes serialize internally.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.initialize(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("failed to close database after init error")
		}
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("database ready")
	return db, nil
}

// initialize creates the schema.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, query := range schemaQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema query: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive. Used by the readiness endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// isTransactionConflict detects DuckDB optimistic-concurrency conflicts
// that are safe to retry.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update")
}

// withConflictRetry runs fn, retrying transaction conflicts with
// exponential backoff (1ms, 2ms, 4ms, ...). Other errors are returned
// immediately.
func (db *DB) withConflictRetry(ctx context.Context, fn func() error) error {
	maxRetries := db.cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isTransactionConflict(lastErr) {
			return lastErr
		}

		metrics.DBConflictRetries.Inc()
		if attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// storeErr classifies a persistence failure as recoverable for the engine
// while preserving the underlying cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, affinity.ErrStoreUnavailable, err)
}
