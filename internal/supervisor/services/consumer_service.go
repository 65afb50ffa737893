// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package services

import (
	"context"
	"fmt"
)

// SignalConsumer matches the consumer's lifecycle surface.
type SignalConsumer interface {
	Run(ctx context.Context) error
	Running() <-chan struct{}
}

// ConsumerService runs the signal consumer under supervision. The
// consumer's Run blocks until its context is cancelled, which maps
// directly onto suture's Serve contract.
type ConsumerService struct {
	consumer SignalConsumer
}

// NewConsumerService wraps a signal consumer as a supervised service.
func NewConsumerService(consumer SignalConsumer) *ConsumerService {
	return &ConsumerService{consumer: consumer}
}

// Serve implements suture.Service.
func (s *ConsumerService) Serve(ctx context.Context) error {
	if err := s.consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("signal consumer failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *ConsumerService) String() string {
	return "signal-consumer"
}
