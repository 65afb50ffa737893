// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/campuskit/affinity/internal/logging"
	"github.com/campuskit/affinity/internal/metrics"
)

// Publisher emits signals to the bus. Handlers answer 202 once a signal is
// accepted by the transport; applying it is the consumer's job.
type Publisher struct {
	publisher message.Publisher
	topic     string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps the bus's publishing end.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{
		publisher: bus.Publisher,
		topic:     bus.Topic,
	}
}

// Publish validates, serializes, and sends one signal. The signal ID rides
// along as the message UUID so JetStream deduplication works when the NATS
// transport is active.
func (p *Publisher) Publish(ctx context.Context, s *Signal) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("signal publisher is closed")
	}
	p.mu.RUnlock()

	if err := s.Validate(); err != nil {
		return err
	}

	data, err := Encode(s)
	if err != nil {
		return err
	}

	msg := message.NewMessage(s.SignalID, data)
	msg.Metadata.Set("kind", s.Kind)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish %s signal: %w", s.Kind, err)
	}

	metrics.SignalsPublished.WithLabelValues(s.Kind).Inc()
	logger := logging.Ctx(ctx)
	logger.Debug().
		Str("signal_id", s.SignalID).
		Str("kind", s.Kind).
		Int("project_id", s.ProjectID).
		Msg("Signal published")
	return nil
}

// Close stops accepting signals. The underlying transport is closed by the
// owning Bus.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
