// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/campuskit/affinity/internal/metrics"
)

// SelectorConfig contains tuning for related-project selection.
type SelectorConfig struct {
	// MaxRelated is the result quota. Default: 4.
	MaxRelated int `json:"max_related"`

	// FallbackBatch is the initial most-viewed fetch size used to pad
	// sparse affinity data. The batch doubles while the pool may hold more
	// candidates. Default: 8.
	FallbackBatch int `json:"fallback_batch"`

	// BreakerTimeout is how long the circuit stays open after the store is
	// declared unavailable. Default: 30s.
	BreakerTimeout time.Duration `json:"breaker_timeout"`
}

// DefaultSelectorConfig returns production defaults.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		MaxRelated:     4,
		FallbackBatch:  8,
		BreakerTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration for invalid values.
func (c SelectorConfig) Validate() error {
	if c.MaxRelated < 1 {
		return fmt.Errorf("max_related must be positive, got %d", c.MaxRelated)
	}
	if c.FallbackBatch < c.MaxRelated {
		return fmt.Errorf("fallback_batch %d must be >= max_related %d", c.FallbackBatch, c.MaxRelated)
	}
	return nil
}

// Selector answers related-project queries by combining explicit affinity
// links with a most-viewed popularity fallback. It is safe for concurrent
// use.
//
// Selection reads through a circuit breaker: persistence failures degrade
// the answer to an empty set so the enclosing page render never fails on a
// missing recommendation panel.
type Selector struct {
	store   Store
	catalog Catalog
	config  SelectorConfig
	logger  zerolog.Logger
	breaker *gobreaker.CircuitBreaker[[]ProjectSummary]
}

// NewSelector creates a recommendation selector.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSelector(store Store, catalog Catalog, cfg SelectorConfig, logger zerolog.Logger) (*Selector, error) {
	if cfg.MaxRelated == 0 && cfg.FallbackBatch == 0 {
		cfg = DefaultSelectorConfig()
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}

	componentLogger := logger.With().Str("component", "selector").Logger()

	breaker := gobreaker.NewCircuitBreaker[[]ProjectSummary](gobreaker.Settings{
		Name:    "affinity-selection",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLogger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("selection breaker state change")
		},
	})

	return &Selector{
		store:   store,
		catalog: catalog,
		config:  cfg,
		logger:  componentLogger,
		breaker: breaker,
	}, nil
}

// Related returns up to MaxRelated projects related to projectID, never
// including projectID itself and, when activeOnly is set, never including
// archived projects. Results are deterministic for a given store state.
//
// Store or catalog failures are downgraded: the error is logged, the
// breaker records the failure, and an empty set is returned. Only context
// cancellation propagates to the caller.
func (s *Selector) Related(ctx context.Context, projectID int, activeOnly bool) ([]ProjectSummary, error) {
	result, err := s.breaker.Execute(func() ([]ProjectSummary, error) {
		return s.selectRelated(ctx, projectID, activeOnly)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn().
			Err(err).
			Int("project_id", projectID).
			Msg("selection degraded to empty set")
		metrics.SelectionRequests.WithLabelValues("degraded").Inc()
		metrics.SelectionResultSize.Observe(0)
		return []ProjectSummary{}, nil
	}
	metrics.SelectionRequests.WithLabelValues("ok").Inc()
	metrics.SelectionResultSize.Observe(float64(len(result)))
	return result, nil
}

// selectRelated implements the two-phase selection policy: explicit links
// first, most-viewed padding second.
func (s *Selector) selectRelated(ctx context.Context, projectID int, activeOnly bool) ([]ProjectSummary, error) {
	quota := s.config.MaxRelated
	result := make([]ProjectSummary, 0, quota)
	seen := map[int]struct{}{projectID: {}}

	links, err := s.store.TopLinks(ctx, projectID, quota)
	if err != nil {
		return nil, fmt.Errorf("top links for %d: %w", projectID, err)
	}

	for _, link := range links {
		if len(result) >= quota {
			break
		}
		if _, dup := seen[link.Other]; dup {
			continue
		}
		summary, err := s.catalog.FetchProject(ctx, link.Other, activeOnly)
		if errors.Is(err, ErrUnknownProject) {
			// Linked project vanished from the catalog or is archived
			// under the active filter. Skip, the fallback fills the gap.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch linked project %d: %w", link.Other, err)
		}
		seen[summary.ID] = struct{}{}
		result = append(result, summary)
	}

	if len(result) < quota {
		padded, err := s.padFromMostViewed(ctx, result, seen, activeOnly)
		if err != nil {
			return nil, err
		}
		result = padded
	}

	return result, nil
}

// padFromMostViewed appends not-yet-included projects from the most-viewed
// ranking until the quota is met or the candidate pool is exhausted. The
// batch size doubles while the pool may hold further candidates, so a
// short batch never causes an out-of-bounds walk and a small catalog
// terminates with a short result.
func (s *Selector) padFromMostViewed(ctx context.Context, result []ProjectSummary, seen map[int]struct{}, activeOnly bool) ([]ProjectSummary, error) {
	quota := s.config.MaxRelated
	batch := s.config.FallbackBatch

	for len(result) < quota {
		pool, err := s.catalog.FetchMostViewed(ctx, batch, activeOnly)
		if err != nil {
			return nil, fmt.Errorf("fetch most viewed: %w", err)
		}

		for _, candidate := range pool {
			if len(result) >= quota {
				break
			}
			if _, dup := seen[candidate.ID]; dup {
				continue
			}
			seen[candidate.ID] = struct{}{}
			result = append(result, candidate)
		}

		if len(pool) < batch {
			// The catalog has no further candidates.
			break
		}
		batch *= 2
	}

	return result, nil
}
