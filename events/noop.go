// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"sync"
)

// NoopPublisher discards all events. Used when no NATS URL is configured.
type NoopPublisher struct{}

func (p *NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (p *NoopPublisher) Close() error { return nil }

// Recorder keeps published envelopes in memory, in publish order.
type Recorder struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func (r *Recorder) Publish(_ context.Context, _ string, event any) error {
	env, ok := event.(Envelope)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Envelopes returns a copy of everything recorded so far.
func (r *Recorder) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.envelopes))
	copy(out, r.envelopes)
	return out
}

// Topics returns the topics of everything recorded so far.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.envelopes))
	for i, env := range r.envelopes {
		out[i] = env.Topic
	}
	return out
}
