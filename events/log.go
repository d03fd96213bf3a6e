// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"errors"

	"github.com/luxfi/log"
)

// LogPublisher writes every event to a logger at info level.
type LogPublisher struct {
	logger log.Logger
}

// NewLogPublisher creates a publisher writing to logger.
func NewLogPublisher(logger log.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event any) error {
	if env, ok := event.(Envelope); ok {
		p.logger.Info("event", "topic", topic, "txID", env.TxID, "payload", env.Payload)
		return nil
	}
	p.logger.Info("event", "topic", topic, "payload", event)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
