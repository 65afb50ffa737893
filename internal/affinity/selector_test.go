// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func testSelector(t *testing.T, store Store, catalog Catalog, cfg SelectorConfig) *Selector {
	t.Helper()
	sel, err := NewSelector(store, catalog, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}
	return sel
}

func activeProject(id int, views int64) ProjectSummary {
	return ProjectSummary{ID: id, Title: "P", Active: true, Views: views}
}

func resultIDs(result []ProjectSummary) []int {
	ids := make([]int, len(result))
	for i, p := range result {
		ids[i] = p.ID
	}
	return ids
}

func assertIDs(t *testing.T, got []ProjectSummary, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("result ids = %v, want %v", resultIDs(got), want)
	}
	for i, p := range got {
		if p.ID != want[i] {
			t.Fatalf("result ids = %v, want %v", resultIDs(got), want)
		}
	}
}

func TestRelatedPrefersStrongLinks(t *testing.T) {
	store := newMockStore()
	catalog := newMockCatalog(
		activeProject(1, 0),
		activeProject(2, 10),
		activeProject(3, 50),
		activeProject(4, 5),
		activeProject(5, 1),
		activeProject(6, 99),
	)
	ctx := context.Background()
	for _, s := range []struct {
		other    int
		strength float64
	}{
		{other: 2, strength: 0.9},
		{other: 3, strength: 0.5},
		{other: 4, strength: 0.7},
		{other: 5, strength: 0.3},
	} {
		if _, err := store.Reinforce(ctx, 1, s.other, s.strength); err != nil {
			t.Fatalf("Reinforce() error = %v", err)
		}
	}

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(ctx, 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}

	// Strength order beats popularity: 6 has the most views but no link.
	assertIDs(t, got, []int{2, 4, 3, 5})
}

func TestRelatedTieBreaksByProjectID(t *testing.T) {
	store := newMockStore()
	catalog := newMockCatalog(
		activeProject(1, 0), activeProject(2, 0),
		activeProject(3, 0), activeProject(4, 0), activeProject(9, 0),
	)
	ctx := context.Background()
	for _, other := range []int{9, 3, 4, 2} {
		if _, err := store.Reinforce(ctx, 1, other, 0.5); err != nil {
			t.Fatalf("Reinforce() error = %v", err)
		}
	}

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(ctx, 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	assertIDs(t, got, []int{2, 3, 4, 9})
}

func TestRelatedPadsWithMostViewed(t *testing.T) {
	store := newMockStore()
	catalog := newMockCatalog(
		activeProject(1, 0),
		activeProject(2, 10),
		activeProject(3, 500),
		activeProject(4, 100),
		activeProject(5, 50),
		activeProject(6, 1),
	)
	ctx := context.Background()
	if _, err := store.Reinforce(ctx, 1, 2, 0.9); err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(ctx, 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}

	// One explicit link, then the most-viewed fallback in view order,
	// never repeating the link or the subject project.
	assertIDs(t, got, []int{2, 3, 4, 5})
}

func TestRelatedSkipsArchivedLinkTargets(t *testing.T) {
	store := newMockStore()
	catalog := newMockCatalog(
		activeProject(1, 0),
		ProjectSummary{ID: 2, Active: false, Views: 10},
		activeProject(3, 5),
		activeProject(4, 2),
	)
	ctx := context.Background()
	if _, err := store.Reinforce(ctx, 1, 2, 0.9); err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	if _, err := store.Reinforce(ctx, 1, 3, 0.4); err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(ctx, 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	assertIDs(t, got, []int{3, 4})

	// Without the active filter the archived target is included.
	got, err = sel.Related(ctx, 1, false)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	assertIDs(t, got, []int{2, 3, 4})
}

func TestRelatedSmallCatalogShortResult(t *testing.T) {
	store := newMockStore()
	catalog := newMockCatalog(
		activeProject(1, 0),
		activeProject(2, 3),
	)

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	// A two-project catalog yields one candidate without error.
	assertIDs(t, got, []int{2})
}

func TestRelatedEmptyCatalog(t *testing.T) {
	store := newMockStore()
	catalog := newMockCatalog(activeProject(1, 0))

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Related() = %v, want empty", resultIDs(got))
	}
}

func TestRelatedDegradesToEmptyOnStoreFailure(t *testing.T) {
	store := newMockStore()
	store.failWith = ErrStoreUnavailable
	catalog := newMockCatalog(activeProject(1, 0), activeProject(2, 1))

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	got, err := sel.Related(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("Related() error = %v, want degraded nil", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Related() = %v, want empty non-nil set", got)
	}
}

func TestRelatedBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	store := newMockStore()
	store.failWith = ErrStoreUnavailable
	catalog := newMockCatalog(activeProject(1, 0))

	sel := testSelector(t, store, catalog, DefaultSelectorConfig())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := sel.Related(ctx, 1, true); err != nil {
			t.Fatalf("Related() call %d error = %v", i, err)
		}
	}

	// Once open, the breaker stops reaching the store; calls still
	// degrade to an empty answer.
	callsBefore := store.reinforceCalls // unrelated, just keep the mock honest
	got, err := sel.Related(ctx, 1, true)
	if err != nil {
		t.Fatalf("Related() with open breaker error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Related() with open breaker = %v, want empty", got)
	}
	if store.reinforceCalls != callsBefore {
		t.Errorf("unexpected store writes during selection")
	}
}

func TestRelatedCancellationPropagatesInsteadOfDegrading(t *testing.T) {
	store := newMockStore()
	store.failWith = ErrStoreUnavailable
	catalog := newMockCatalog(activeProject(1, 0))
	sel := testSelector(t, store, catalog, DefaultSelectorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sel.Related(ctx, 1, true); !errors.Is(err, context.Canceled) {
		t.Errorf("Related() with cancelled context error = %v, want context.Canceled", err)
	}
}

func TestSelectorConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SelectorConfig
		wantErr bool
	}{
		{name: "default", cfg: DefaultSelectorConfig(), wantErr: false},
		{name: "zero quota", cfg: SelectorConfig{MaxRelated: 0, FallbackBatch: 8}, wantErr: true},
		{name: "batch below quota", cfg: SelectorConfig{MaxRelated: 4, FallbackBatch: 2}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
