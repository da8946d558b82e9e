package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"socialconnect/src/lib"
	"socialconnect/src/services"
)

// Bridge reads group state from a DeltaSource and republishes every change
// as a signed delta event on the push relay.
type Bridge struct {
	Source   services.DeltaSource
	RelayURL string
	Secret   string
	Logger   *slog.Logger
	Metrics  *lib.Metrics
	Now      func() time.Time
}

type deltaKey struct {
	group string
	kind  services.DeltaKind
}

// Run publishes deltas for groups until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, groups []string) error {
	if b.Source == nil {
		return fmt.Errorf("bridge has no delta source")
	}
	if len(groups) == 0 {
		return fmt.Errorf("bridge needs at least one group")
	}
	if _, err := nostr.GetPublicKey(b.Secret); err != nil {
		return fmt.Errorf("derive publisher key: %w", err)
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}

	pool := nostr.NewSimplePool(ctx)
	if _, err := pool.EnsureRelay(b.RelayURL); err != nil {
		return fmt.Errorf("connect push relay %s: %w", b.RelayURL, err)
	}
	defer func() {
		pool.Relays.Range(func(_ string, relay *nostr.Relay) bool {
			_ = relay.Close()
			return true
		})
		pool.Close("bridge stopped")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streams := make([]<-chan services.Delta, 0, len(groups))
	for _, group := range groups {
		ch, err := b.Source.Subscribe(ctx, group)
		if err != nil {
			cancel()
			for _, started := range streams {
				for range started {
				}
			}
			return fmt.Errorf("subscribe %s: %w", group, err)
		}
		streams = append(streams, ch)
	}

	var (
		mu   sync.Mutex
		last = make(map[deltaKey]string)
		wg   sync.WaitGroup
	)
	for _, ch := range streams {
		wg.Add(1)
		go func(ch <-chan services.Delta) {
			defer wg.Done()
			for delta := range ch {
				event, err := services.EncodeDeltaEvent(delta, b.Secret, now())
				if err != nil {
					b.Metrics.Inc("bridge_encode_failures_total")
					logger.Error("encode delta failed", "group", delta.Group, "kind", delta.Kind, "error", err)
					continue
				}

				key := deltaKey{group: delta.Group, kind: delta.Kind}
				mu.Lock()
				unchanged := last[key] == event.Content
				mu.Unlock()
				if unchanged {
					continue
				}

				if err := b.publish(ctx, pool, event, logger); err != nil {
					if ctx.Err() != nil {
						continue
					}
					b.Metrics.Inc("bridge_publish_failures_total")
					logger.Warn("publish delta failed", "group", delta.Group, "kind", delta.Kind, "error", err)
					continue
				}
				mu.Lock()
				last[key] = event.Content
				mu.Unlock()
				b.Metrics.Inc("bridge_published_total")
				logger.Debug("published delta", "group", delta.Group, "kind", delta.Kind, "event_id", event.ID)
			}
		}(ch)
	}

	wg.Wait()
	return nil
}

// publish sends event over the pooled connection. A dropped connection is
// re-dialled and the event is sent once more on the new one.
func (b *Bridge) publish(ctx context.Context, pool *nostr.SimplePool, event nostr.Event, logger *slog.Logger) error {
	relay, err := pool.EnsureRelay(b.RelayURL)
	if err != nil {
		return fmt.Errorf("connect push relay: %w", err)
	}
	err = relay.Publish(ctx, event)
	if err == nil || relay.IsConnected() || ctx.Err() != nil {
		return err
	}

	b.Metrics.Inc("bridge_reconnects_total")
	logger.Info("push relay connection lost, reconnecting", "relay", b.RelayURL, "error", err)
	relay, err = pool.EnsureRelay(b.RelayURL)
	if err != nil {
		return fmt.Errorf("reconnect push relay: %w", err)
	}
	return relay.Publish(ctx, event)
}
