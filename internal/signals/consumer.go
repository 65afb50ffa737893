// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/campuskit/affinity/internal/affinity"
	"github.com/campuskit/affinity/internal/cache"
	"github.com/campuskit/affinity/internal/logging"
	"github.com/campuskit/affinity/internal/metrics"
)

// dedupTTL bounds how long an applied signal id is remembered. Redelivery
// windows are far shorter than this in both transports.
const dedupTTL = 10 * time.Minute

// Consumer drains the signal topic and applies each signal to the engine.
//
// Failure policy: recoverable store errors are returned to the router so
// its retry middleware redelivers the message; everything else (malformed
// payload, unknown project, unknown kind) is acked and dropped, since
// redelivery cannot fix it.
type Consumer struct {
	router   *message.Router
	ingestor *affinity.Ingestor
	counters *affinity.Counters

	// applied remembers recently applied signal ids so redeliveries do
	// not double-apply reinforcements or counter increments.
	applied *cache.LRU[struct{}]
}

// NewConsumer builds a router with retry and recovery middleware and one
// handler per configured consumer slot.
func NewConsumer(
	bus *Bus,
	consumers int,
	ingestor *affinity.Ingestor,
	counters *affinity.Counters,
	logger watermill.LoggerAdapter,
) (*Consumer, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create signal router: %w", err)
	}

	retry := middleware.Retry{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(
		middleware.Recoverer,
		retry.Middleware,
	)

	c := &Consumer{
		router:   router,
		ingestor: ingestor,
		counters: counters,
		applied:  cache.NewLRU[struct{}](10000, dedupTTL),
	}

	for i := 0; i < consumers; i++ {
		router.AddNoPublisherHandler(
			fmt.Sprintf("apply-signals-%d", i),
			bus.Topic,
			bus.Subscriber,
			c.handle,
		)
	}

	return c, nil
}

// Run blocks until the context is cancelled or the router fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running returns a channel closed once all handlers are started.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// Close shuts the router down, waiting for in-flight handlers.
func (c *Consumer) Close() error {
	return c.router.Close()
}

func (c *Consumer) handle(msg *message.Message) error {
	ctx := msg.Context()

	sig, err := Decode(msg.Payload)
	if err != nil {
		c.drop(ctx, msg, "", err)
		return nil
	}
	if err := sig.Validate(); err != nil {
		c.drop(ctx, msg, sig.Kind, err)
		return nil
	}

	if c.applied.Contains(sig.SignalID) {
		metrics.SignalsProcessed.WithLabelValues(sig.Kind, "dropped").Inc()
		logger := logging.Ctx(ctx)
		logger.Debug().
			Str("signal_id", sig.SignalID).
			Str("kind", sig.Kind).
			Msg("Duplicate signal ignored")
		return nil
	}

	err = c.apply(ctx, sig)
	switch {
	case err == nil:
		c.applied.Add(sig.SignalID, struct{}{})
		metrics.SignalsProcessed.WithLabelValues(sig.Kind, "applied").Inc()
		return nil
	case errors.Is(err, affinity.ErrStoreUnavailable):
		metrics.SignalsProcessed.WithLabelValues(sig.Kind, "failed").Inc()
		logger := logging.Ctx(ctx)
		logger.Warn().
			Err(err).
			Str("signal_id", sig.SignalID).
			Str("kind", sig.Kind).
			Msg("Signal failed, will retry")
		return err
	default:
		c.drop(ctx, msg, sig.Kind, err)
		return nil
	}
}

func (c *Consumer) apply(ctx context.Context, sig *Signal) error {
	switch sig.Kind {
	case KindView:
		return c.counters.RecordView(ctx, sig.ProjectID)
	case KindClickThrough:
		return c.ingestor.RecordClickThrough(ctx, sig.FromProjectID, sig.ProjectID)
	case KindEngagement:
		return c.counters.RecordEngagement(ctx, sig.ProjectID, sig.SessionID)
	case KindAdjustment:
		return c.ingestor.RecordManualAdjustment(ctx, sig.ProjectID, sig.OtherProjectID, sig.Delta)
	default:
		return fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
}

func (c *Consumer) drop(ctx context.Context, msg *message.Message, kind string, err error) {
	if kind == "" {
		kind = "unknown"
	}
	metrics.SignalsProcessed.WithLabelValues(kind, "dropped").Inc()
	logger := logging.Ctx(ctx)
	logger.Warn().
		Err(err).
		Str("message_id", msg.UUID).
		Str("kind", kind).
		Msg("Signal dropped")
}
