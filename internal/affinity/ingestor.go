// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// IngestorConfig contains tuning for signal ingestion.
type IngestorConfig struct {
	// ClickIncrement is the fixed strength delta applied per observed
	// click-through. Default: 0.05.
	ClickIncrement float64 `json:"click_increment"`
}

// DefaultIngestorConfig returns production defaults.
func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{ClickIncrement: 0.05}
}

// Validate checks the configuration for invalid values.
func (c IngestorConfig) Validate() error {
	if c.ClickIncrement <= 0 || c.ClickIncrement > 1 {
		return fmt.Errorf("click_increment must be in (0, 1], got %v", c.ClickIncrement)
	}
	return nil
}

// Ingestor translates observed behavioural events into bounded
// reinforcement of the affinity store. It is safe for concurrent use; all
// state lives in the store.
//
// Repeated identical click events each add the full increment. There is no
// session-level deduplication at this layer; the click event log in the
// Counters component retains enough data for a retention or dedup policy
// to be applied elsewhere.
type Ingestor struct {
	store   Store
	catalog Catalog
	config  IngestorConfig
	logger  zerolog.Logger
}

// NewIngestor creates a signal ingestor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewIngestor(store Store, catalog Catalog, cfg IngestorConfig, logger zerolog.Logger) (*Ingestor, error) {
	if cfg.ClickIncrement == 0 {
		cfg = DefaultIngestorConfig()
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

	return &Ingestor{
		store:   store,
		catalog: catalog,
		config:  cfg,
		logger:  logger.With().Str("component", "ingestor").Logger(),
	}, nil
}

// RecordClickThrough reinforces the link between the project a user was
// viewing and the project they navigated to. The pair must be distinct and
// both ids must exist in the catalog; archived projects still accumulate
// signal, so the catalog is consulted without the active-only filter.
func (i *Ingestor) RecordClickThrough(ctx context.Context, from, to int) error {
	return i.reinforce(ctx, from, to, i.config.ClickIncrement)
}

// RecordManualAdjustment applies an administrative correction to the
// recommendation graph. The amount may be negative; the stored strength
// clamps at the [0, 1] bounds rather than failing.
func (i *Ingestor) RecordManualAdjustment(ctx context.Context, a, b int, amount float64) error {
	return i.reinforce(ctx, a, b, amount)
}

func (i *Ingestor) reinforce(ctx context.Context, a, b int, delta float64) error {
	if a == b {
		return fmt.Errorf("reinforce %d/%d: %w", a, b, ErrSelfPair)
	}

	for _, id := range []int{a, b} {
		if _, err := i.catalog.FetchProject(ctx, id, false); err != nil {
			return fmt.Errorf("reinforce %d/%d: %w", a, b, err)
		}
	}

	strength, err := i.store.Reinforce(ctx, a, b, delta)
	if err != nil {
		return fmt.Errorf("reinforce %d/%d: %w", a, b, err)
	}

	i.logger.Debug().
		Int("project_a", a).
		Int("project_b", b).
		Float64("delta", delta).
		Float64("strength", strength).
		Msg("link reinforced")

	return nil
}
