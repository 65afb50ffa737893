// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package affinity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// mockStore is an in-memory Store with optional injected failures.
type mockStore struct {
	mu        sync.Mutex
	strengths map[Pair]float64
	failWith  error

	reinforceCalls int
}

func newMockStore() *mockStore {
	return &mockStore{strengths: make(map[Pair]float64)}
}

func (m *mockStore) GetStrength(_ context.Context, a, b int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	pair, err := NewPair(a, b)
	if err != nil {
		return 0, err
	}
	return m.strengths[pair], nil
}

func (m *mockStore) Reinforce(_ context.Context, a, b int, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reinforceCalls++
	if m.failWith != nil {
		return 0, m.failWith
	}
	pair, err := NewPair(a, b)
	if err != nil {
		return 0, err
	}
	next := ClampStrength(m.strengths[pair] + delta)
	m.strengths[pair] = next
	return next, nil
}

func (m *mockStore) TopLinks(_ context.Context, projectID, limit int) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	links := make([]Link, 0)
	for pair, strength := range m.strengths {
		if pair.Low != projectID && pair.High != projectID {
			continue
		}
		links = append(links, Link{Other: pair.Other(projectID), Strength: strength})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Strength != links[j].Strength {
			return links[i].Strength > links[j].Strength
		}
		return links[i].Other < links[j].Other
	})
	if len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

// mockCatalog is an in-memory Catalog with optional injected failures.
type mockCatalog struct {
	mu       sync.Mutex
	projects map[int]ProjectSummary
	failWith error
}

func newMockCatalog(projects ...ProjectSummary) *mockCatalog {
	m := &mockCatalog{projects: make(map[int]ProjectSummary)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockCatalog) FetchProject(_ context.Context, id int, activeOnly bool) (ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return ProjectSummary{}, m.failWith
	}
	p, ok := m.projects[id]
	if !ok || (activeOnly && !p.Active) {
		return ProjectSummary{}, fmt.Errorf("project %d: %w", id, ErrUnknownProject)
	}
	return p, nil
}

func (m *mockCatalog) FetchMostViewed(_ context.Context, n int, activeOnly bool) ([]ProjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	pool := make([]ProjectSummary, 0, len(m.projects))
	for _, p := range m.projects {
		if activeOnly && !p.Active {
			continue
		}
		pool = append(pool, p)
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Views != pool[j].Views {
			return pool[i].Views > pool[j].Views
		}
		return pool[i].ID < pool[j].ID
	})
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool, nil
}

// mockCounterStore records counter calls in memory.
type mockCounterStore struct {
	mu       sync.Mutex
	views    map[int]int64
	clicks   []recordedClick
	failWith error
}

type recordedClick struct {
	projectID int
	sessionID string
	at        time.Time
}

func newMockCounterStore() *mockCounterStore {
	return &mockCounterStore{views: make(map[int]int64)}
}

func (m *mockCounterStore) IncrementView(_ context.Context, projectID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	m.views[projectID]++
	return m.views[projectID], nil
}

func (m *mockCounterStore) RecordClick(_ context.Context, projectID int, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.clicks = append(m.clicks, recordedClick{projectID: projectID, sessionID: sessionID, at: at})
	return nil
}
