package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"socialconnect/src/lib"
)

// NostrSource receives deltas pushed to a relay by the publisher. Cancelling
// the subscription context sends CLOSE and drops the connection, so the relay
// stops holding the subscription.
type NostrSource struct {
	RelayURL string
	Verifier *DeltaVerifier
	Logger   *slog.Logger
	Metrics  *lib.Metrics
}

func (s *NostrSource) Subscribe(ctx context.Context, group string) (<-chan Delta, error) {
	if s.Verifier == nil {
		return nil, fmt.Errorf("nostr source has no verifier")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	relay, err := nostr.RelayConnect(ctx, s.RelayURL)
	if err != nil {
		return nil, fmt.Errorf("connect push relay %s: %w", s.RelayURL, err)
	}

	since := nostr.Now()
	filter := nostr.Filter{
		Kinds:   DeltaEventKinds(),
		Authors: []string{s.Verifier.Publisher()},
		Tags:    nostr.TagMap{"h": []string{group}},
		Since:   &since,
	}
	sub, err := relay.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		_ = relay.Close()
		return nil, fmt.Errorf("subscribe push relay: %w", err)
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		defer func() {
			_ = relay.Close()
		}()
		defer sub.Unsub()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub.Events:
				if !ok {
					return
				}
				delta, err := s.Verifier.Decode(event, group, time.Now())
				if err != nil {
					s.Metrics.Inc("push_events_rejected_total")
					logger.Warn("dropping push event", "group", group, "event_id", event.ID, "error", err)
					continue
				}
				s.Metrics.Inc("push_events_total")
				select {
				case out <- delta:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
