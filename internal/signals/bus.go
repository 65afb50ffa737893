// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

// Package signals carries engagement signals from the HTTP surface to the
// affinity engine over a message bus. The API handlers publish and return
// immediately; consumers apply the signals asynchronously, so a slow or
// failing store never blocks page loads.
//
// Two transports are supported. The in-process GoChannel transport is the
// default and needs no infrastructure. NATS JetStream can be enabled for
// deployments where several instances share one signal stream.
package signals

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/campuskit/affinity/internal/config"
)

// Bus bundles the publisher and subscriber ends of one signal transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string
}

// NewBus builds the transport selected by the configuration.
func NewBus(cfg *config.SignalsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	switch cfg.Transport {
	case config.TransportChannel:
		return newChannelBus(cfg, logger), nil
	case config.TransportNATS:
		return newNATSBus(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown signals transport %q", cfg.Transport)
	}
}

func newChannelBus(cfg *config.SignalsConfig, logger watermill.LoggerAdapter) *Bus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
	return &Bus{
		Publisher:  pubsub,
		Subscriber: pubsub,
		Topic:      cfg.Topic,
	}
}

func newNATSBus(cfg *config.SignalsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	marshaler := &wmnats.NATSMarshaler{}

	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:            cfg.NATSURL,
		NatsOptions:    natsOpts,
		Unmarshaler:    marshaler,
		AckWaitTimeout: 30 * time.Second,
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: "affinity",
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &Bus{
		Publisher:  pub,
		Subscriber: sub,
		Topic:      cfg.Topic,
	}, nil
}

// Close releases both transport ends.
func (b *Bus) Close() error {
	pubErr := b.Publisher.Close()
	if sub, ok := b.Subscriber.(interface{ Close() error }); ok {
		// GoChannel shares one Close between both ends.
		if _, same := b.Publisher.(*gochannel.GoChannel); !same {
			if err := sub.Close(); err != nil {
				return err
			}
		}
	}
	return pubErr
}
