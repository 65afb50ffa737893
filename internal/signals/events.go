// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package signals

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current signal schema version.
const SchemaVersion = 1

// Signal kinds.
const (
	KindView         = "view"
	KindClickThrough = "click_through"
	KindEngagement   = "engagement"
	KindAdjustment   = "adjustment"
)

// Signal is the canonical wire format for engagement signals. A single
// schema carries all kinds; fields not used by a kind stay zero.
type Signal struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	SignalID      string    `json:"signal_id"`
	Kind          string    `json:"kind"`
	OccurredAt    time.Time `json:"occurred_at"`

	// ProjectID is the subject project for view, engagement, and
	// click_through signals, and the first project for adjustments.
	ProjectID int `json:"project_id"`

	// FromProjectID is the page the visitor navigated from for
	// click_through signals.
	FromProjectID int `json:"from_project_id,omitempty"`

	// OtherProjectID is the second project for adjustment signals.
	OtherProjectID int `json:"other_project_id,omitempty"`

	// Delta is the strength adjustment for adjustment signals.
	Delta float64 `json:"delta,omitempty"`

	SessionID string `json:"session_id,omitempty"`
}

// NewSignal creates a signal with a unique ID and UTC timestamp.
func NewSignal(kind string) *Signal {
	return &Signal{
		SchemaVersion: SchemaVersion,
		SignalID:      uuid.New().String(),
		Kind:          kind,
		OccurredAt:    time.Now().UTC(),
	}
}

// Validate checks structural requirements per kind.
func (s *Signal) Validate() error {
	if s.SignalID == "" {
		return fmt.Errorf("signal missing id")
	}
	switch s.Kind {
	case KindView, KindEngagement:
		if s.ProjectID <= 0 {
			return fmt.Errorf("%s signal: invalid project id %d", s.Kind, s.ProjectID)
		}
	case KindClickThrough:
		if s.ProjectID <= 0 || s.FromProjectID <= 0 {
			return fmt.Errorf("click_through signal: invalid project ids %d/%d", s.FromProjectID, s.ProjectID)
		}
	case KindAdjustment:
		if s.ProjectID <= 0 || s.OtherProjectID <= 0 {
			return fmt.Errorf("adjustment signal: invalid project ids %d/%d", s.ProjectID, s.OtherProjectID)
		}
	default:
		return fmt.Errorf("unknown signal kind %q", s.Kind)
	}
	return nil
}

// Encode serializes a signal to its wire form.
func Encode(s *Signal) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	return data, nil
}

// Decode parses a signal from its wire form.
func Decode(data []byte) (*Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = 1
	}
	return &s, nil
}
