// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/Spielworks/plai/core"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestPublishersImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = (*Recorder)(nil)
	var _ Publisher = (*LogPublisher)(nil)
	var _ Publisher = Fanout(nil)
}

func TestEventTopics(t *testing.T) {
	tests := []struct {
		event Event
		topic string
	}{
		{SessionCreated{}, TopicSessionCreated},
		{SessionEnded{}, TopicSessionEnded},
		{SessionVerified{}, TopicSessionVerified},
		{SessionPurchased{}, TopicSessionPurchased},
		{SessionsAcquired{}, TopicSessionsAcquired},
		{PoolFunded{}, TopicPoolFunded},
		{RewardsClaimed{}, TopicRewardsClaimed},
		{OrchestratorChanged{}, TopicOrchestratorChanged},
	}
	for _, tt := range tests {
		if tt.event.Topic() != tt.topic {
			t.Errorf("%T.Topic() = %s, want %s", tt.event, tt.event.Topic(), tt.topic)
		}
	}
}

func TestSessionCreatedFieldOrder(t *testing.T) {
	data, err := json.Marshal(SessionCreated{SessionID: 1, Price: 5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	order := []string{"session_id", "owner", "context_ref", "verifier", "started_at", "price", "payment_asset"}
	last := -1
	for _, field := range order {
		idx := strings.Index(s, `"`+field+`"`)
		if idx <= last {
			t.Fatalf("field %s out of order in %s", field, s)
		}
		last = idx
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	env := Envelope{TxID: ids.GenerateTestID(), Topic: TopicPoolFunded, Payload: PoolFunded{Amount: 10}}
	if err := r.Publish(context.Background(), env.Topic, env); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// Non-envelope values are ignored.
	r.Publish(context.Background(), "other", "raw")

	if got := r.Topics(); len(got) != 1 || got[0] != TopicPoolFunded {
		t.Errorf("Topics() = %v", got)
	}
	if r.Envelopes()[0].TxID != env.TxID {
		t.Error("tx id mismatch")
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("plai.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	owner := core.Address{0x0a}
	env := Envelope{
		TxID:    ids.GenerateTestID(),
		Topic:   TopicRewardsClaimed,
		Payload: RewardsClaimed{SessionID: 4, Owner: owner, Amount: 50},
	}
	if err := pub.Publish(context.Background(), env.Topic, env); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := pub.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != TopicRewardsClaimed {
			t.Errorf("subject = %s, want %s", msg.Subject, TopicRewardsClaimed)
		}
		var got struct {
			Topic   string         `json:"topic"`
			Payload RewardsClaimed `json:"payload"`
		}
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Payload.Amount != 50 || got.Payload.Owner != owner {
			t.Errorf("unexpected payload: %+v", got.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicPoolFunded, PoolFunded{}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNewNATSPublisher_BadURL(t *testing.T) {
	if _, err := NewNATSPublisher("nats://127.0.0.1:1", nats.Timeout(100*time.Millisecond), nats.NoReconnect()); err == nil {
		t.Error("expected connection error")
	}
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, string, any) error { return p.err }

func (p failingPublisher) Close() error { return p.err }

func TestFanout(t *testing.T) {
	errDown := errors.New("broker down")
	r1, r2 := &Recorder{}, &Recorder{}
	f := Fanout{r1, failingPublisher{errDown}, NewLogPublisher(log.NewWriter(io.Discard)), r2}

	env := Envelope{TxID: ids.GenerateTestID(), Topic: TopicSessionEnded, Payload: SessionEnded{SessionID: 3}}
	err := f.Publish(context.Background(), env.Topic, env)
	if !errors.Is(err, errDown) {
		t.Errorf("expected joined broker error, got %v", err)
	}
	// A failing publisher does not starve the ones after it.
	if len(r1.Envelopes()) != 1 || len(r2.Envelopes()) != 1 {
		t.Error("every publisher should receive the event")
	}
	if err := f.Close(); !errors.Is(err, errDown) {
		t.Errorf("expected close error, got %v", err)
	}
}
