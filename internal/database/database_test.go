// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campuskit/affinity/internal/affinity"
	"github.com/campuskit/affinity/internal/config"
)

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO
// connections under CI resource pressure can hang, so only one test holds
// an open database at a time.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates an in-memory database held for the whole test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:       ":memory:",
		MaxMemory:  "1GB",
		MaxRetries: 10,
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func seedProject(t *testing.T, db *DB, id int, title string, active bool) {
	t.Helper()
	if err := db.UpsertProject(context.Background(), id, title, active); err != nil {
		t.Fatalf("UpsertProject(%d) error = %v", id, err)
	}
}

func TestReinforceCreatesAndAccumulates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.Reinforce(ctx, 2, 1, 0.05)
	if err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	if got != 0.05 {
		t.Errorf("Reinforce() first = %v, want 0.05", got)
	}

	// Reversed argument order hits the same canonical pair.
	got, err = db.Reinforce(ctx, 1, 2, 0.05)
	if err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	if got != 0.1 {
		t.Errorf("Reinforce() second = %v, want 0.1", got)
	}

	strength, err := db.GetStrength(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetStrength() error = %v", err)
	}
	if strength != 0.1 {
		t.Errorf("GetStrength() = %v, want 0.1", strength)
	}
}

func TestReinforceClampsToUnitInterval(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.Reinforce(ctx, 1, 2, 1.5)
	if err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	if got != 1.0 {
		t.Errorf("Reinforce(+1.5) = %v, want 1.0", got)
	}

	got, err = db.Reinforce(ctx, 1, 2, -3.0)
	if err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	if got != 0.0 {
		t.Errorf("Reinforce(-3.0) = %v, want 0.0", got)
	}

	// A negative delta on an existing row subtracts from the stored
	// value, not from the clamped delta.
	if _, err := db.Reinforce(ctx, 1, 2, 0.8); err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	got, err = db.Reinforce(ctx, 1, 2, -0.3)
	if err != nil {
		t.Fatalf("Reinforce() error = %v", err)
	}
	if got < 0.499 || got > 0.501 {
		t.Errorf("Reinforce(0.8 then -0.3) = %v, want 0.5", got)
	}
}

func TestReinforceRejectsSelfPair(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Reinforce(context.Background(), 7, 7, 0.05)
	if !errors.Is(err, affinity.ErrSelfPair) {
		t.Errorf("Reinforce(7, 7) error = %v, want ErrSelfPair", err)
	}
}

func TestReinforceConcurrentAccumulation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const workers = 20
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := db.Reinforce(ctx, 1, 2, 0.05)
			errCh <- err
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("concurrent Reinforce() error = %v", err)
		}
	}

	strength, err := db.GetStrength(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetStrength() error = %v", err)
	}
	// 20 * 0.05 accumulates to exactly the cap.
	if strength < 0.999 {
		t.Errorf("GetStrength() after 20 concurrent +0.05 = %v, want 1.0", strength)
	}
}

func TestGetStrengthMissingPairIsZero(t *testing.T) {
	db := setupTestDB(t)

	strength, err := db.GetStrength(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("GetStrength() error = %v", err)
	}
	if strength != 0 {
		t.Errorf("GetStrength() = %v, want 0", strength)
	}
}

func TestTopLinksOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Project 1 linked to 2 (0.3), 3 (0.5), 4 (0.3), 9 (0.1).
	pairs := []struct {
		a, b  int
		delta float64
	}{
		{1, 2, 0.3},
		{3, 1, 0.5},
		{1, 4, 0.3},
		{9, 1, 0.1},
		{2, 3, 0.9}, // does not involve project 1
	}
	for _, p := range pairs {
		if _, err := db.Reinforce(ctx, p.a, p.b, p.delta); err != nil {
			t.Fatalf("Reinforce(%d, %d) error = %v", p.a, p.b, err)
		}
	}

	links, err := db.TopLinks(ctx, 1, 10)
	if err != nil {
		t.Fatalf("TopLinks() error = %v", err)
	}

	want := []affinity.Link{
		{Other: 3, Strength: 0.5},
		{Other: 2, Strength: 0.3},
		{Other: 4, Strength: 0.3},
		{Other: 9, Strength: 0.1},
	}
	if len(links) != len(want) {
		t.Fatalf("TopLinks() returned %d links, want %d", len(links), len(want))
	}
	for i, link := range links {
		if link != want[i] {
			t.Errorf("TopLinks()[%d] = %+v, want %+v", i, link, want[i])
		}
	}

	limited, err := db.TopLinks(ctx, 1, 2)
	if err != nil {
		t.Fatalf("TopLinks(limit=2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].Other != 3 || limited[1].Other != 2 {
		t.Errorf("TopLinks(limit=2) = %+v, want [{3 0.5} {2 0.3}]", limited)
	}
}

func TestIncrementView(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		views, err := db.IncrementView(ctx, 5)
		if err != nil {
			t.Fatalf("IncrementView() error = %v", err)
		}
		if views != want {
			t.Errorf("IncrementView() = %d, want %d", views, want)
		}
	}
}

func TestRecordClickAppendsRows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	at := time.Now().UTC()
	for i := 0; i < 2; i++ {
		if err := db.RecordClick(ctx, 5, "session-a", at); err != nil {
			t.Fatalf("RecordClick() error = %v", err)
		}
	}

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM click_events WHERE project_id = 5`).Scan(&count)
	if err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 2 {
		t.Errorf("click_events count = %d, want 2 (append-only, no dedup)", count)
	}
}

func TestFetchProject(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedProject(t, db, 1, "Compiler Playground", true)
	seedProject(t, db, 2, "Archived Thesis", false)

	p, err := db.FetchProject(ctx, 1, true)
	if err != nil {
		t.Fatalf("FetchProject(1) error = %v", err)
	}
	if p.ID != 1 || p.Title != "Compiler Playground" || !p.Active {
		t.Errorf("FetchProject(1) = %+v", p)
	}

	// Archived project is invisible when filtering to active.
	if _, err := db.FetchProject(ctx, 2, true); !errors.Is(err, affinity.ErrUnknownProject) {
		t.Errorf("FetchProject(2, activeOnly) error = %v, want ErrUnknownProject", err)
	}
	if _, err := db.FetchProject(ctx, 2, false); err != nil {
		t.Errorf("FetchProject(2, all) error = %v", err)
	}

	if _, err := db.FetchProject(ctx, 99, false); !errors.Is(err, affinity.ErrUnknownProject) {
		t.Errorf("FetchProject(99) error = %v, want ErrUnknownProject", err)
	}
}

func TestFetchMostViewedOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedProject(t, db, 1, "One", true)
	seedProject(t, db, 2, "Two", true)
	seedProject(t, db, 3, "Three", true)
	seedProject(t, db, 4, "Archived", false)

	bumps := map[int]int{2: 5, 3: 2, 4: 9}
	for id, n := range bumps {
		for i := 0; i < n; i++ {
			if _, err := db.IncrementView(ctx, id); err != nil {
				t.Fatalf("IncrementView(%d) error = %v", id, err)
			}
		}
	}

	got, err := db.FetchMostViewed(ctx, 10, true)
	if err != nil {
		t.Fatalf("FetchMostViewed() error = %v", err)
	}

	// Archived project 4 is excluded despite the highest view count.
	// Project 1 has no counter row and ranks last with zero views.
	wantIDs := []int{2, 3, 1}
	if len(got) != len(wantIDs) {
		t.Fatalf("FetchMostViewed() returned %d projects, want %d", len(got), len(wantIDs))
	}
	for i, p := range got {
		if p.ID != wantIDs[i] {
			t.Errorf("FetchMostViewed()[%d].ID = %d, want %d", i, p.ID, wantIDs[i])
		}
	}
	if got[0].Views != 5 {
		t.Errorf("FetchMostViewed()[0].Views = %d, want 5", got[0].Views)
	}
}

func TestSetActive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedProject(t, db, 1, "One", true)

	if err := db.SetActive(ctx, 1, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if _, err := db.FetchProject(ctx, 1, true); !errors.Is(err, affinity.ErrUnknownProject) {
		t.Errorf("archived project still visible: error = %v", err)
	}

	if err := db.SetActive(ctx, 1, true); err != nil {
		t.Fatalf("SetActive(restore) error = %v", err)
	}
	if _, err := db.FetchProject(ctx, 1, true); err != nil {
		t.Errorf("restored project not visible: error = %v", err)
	}

	if err := db.SetActive(ctx, 42, true); !errors.Is(err, affinity.ErrUnknownProject) {
		t.Errorf("SetActive(42) error = %v, want ErrUnknownProject", err)
	}
}

func TestLikes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Double add is a no-op.
	for i := 0; i < 2; i++ {
		if err := db.AddLike(ctx, 1, "user-a"); err != nil {
			t.Fatalf("AddLike() error = %v", err)
		}
	}
	if err := db.AddLike(ctx, 1, "user-b"); err != nil {
		t.Fatalf("AddLike() error = %v", err)
	}

	count, err := db.LikeCount(ctx, 1)
	if err != nil {
		t.Fatalf("LikeCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("LikeCount() = %d, want 2", count)
	}

	liked, err := db.IsLiked(ctx, 1, "user-a")
	if err != nil {
		t.Fatalf("IsLiked() error = %v", err)
	}
	if !liked {
		t.Error("IsLiked(user-a) = false, want true")
	}

	if err := db.RemoveLike(ctx, 1, "user-a"); err != nil {
		t.Fatalf("RemoveLike() error = %v", err)
	}
	liked, err = db.IsLiked(ctx, 1, "user-a")
	if err != nil {
		t.Fatalf("IsLiked() error = %v", err)
	}
	if liked {
		t.Error("IsLiked(user-a) after remove = true, want false")
	}

	// Removing an absent like is a no-op.
	if err := db.RemoveLike(ctx, 1, "user-c"); err != nil {
		t.Errorf("RemoveLike(absent) error = %v", err)
	}
}

func TestStoreErrorsAreRecoverable(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err := db.GetStrength(context.Background(), 1, 2)
	if !errors.Is(err, affinity.ErrStoreUnavailable) {
		t.Errorf("GetStrength() on closed db error = %v, want ErrStoreUnavailable", err)
	}
}
