package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fiatjaf/eventstore"
	"github.com/fiatjaf/eventstore/slicestore"
	"github.com/fiatjaf/khatru"
	"github.com/nbd-wtf/go-nostr"

	"socialconnect/src/lib"
	"socialconnect/src/services"
)

// Server is the push relay: it accepts signed delta events from the
// publisher and fans them out to subscribed clients.
type Server struct {
	cfg        lib.Config
	logger     *slog.Logger
	metrics    *lib.Metrics
	publisher  string
	relay      *khatru.Relay
	store      *slicestore.SliceStore
	httpServer *http.Server
}

func NewServer(cfg lib.Config, logger *slog.Logger, metrics *lib.Metrics) (*Server, error) {
	if logger == nil {
		logger = lib.NewLogger(cfg.LogLevel)
	}
	if metrics == nil {
		metrics = lib.NewMetrics()
	}

	publisher, err := publisherKey(cfg)
	if err != nil {
		return nil, err
	}

	store := &slicestore.SliceStore{}
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("init event store: %w", err)
	}

	khatruRelay := khatru.NewRelay()
	khatruRelay.Info.Name = "socialconnect push relay"
	khatruRelay.Info.Description = "group state deltas for SocialConnect clients"

	verifier := services.NewDeltaVerifier(publisher, cfg.PushMaxSkew)
	limiter := newRateLimiter(cfg.PushRateBurst, cfg.PushRatePerMinute)
	wireKhatruHooks(khatruRelay, store, verifier, limiter, metrics, logger)

	mux := khatruRelay.Router()
	RegisterDeltaRoutes(mux, DeltaRoutes{
		Store:     store,
		Publisher: publisher,
		Logger:    logger,
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.Snapshot())
	})

	httpServer := &http.Server{
		Addr:              cfg.PushRelayAddr,
		Handler:           khatruRelay,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		publisher:  publisher,
		relay:      khatruRelay,
		store:      store,
		httpServer: httpServer,
	}, nil
}

// Handler exposes the relay for in-process serving.
func (s *Server) Handler() http.Handler {
	return s.relay
}

func (s *Server) Publisher() string {
	return s.publisher
}

func (s *Server) Start() error {
	s.logger.Info("push relay starting", "addr", s.cfg.PushRelayAddr, "publisher", s.publisher)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.store.Close()
	return s.httpServer.Shutdown(ctx)
}

// publisherKey returns the configured publisher, deriving it from the secret
// when only the secret is set.
func publisherKey(cfg lib.Config) (string, error) {
	if cfg.PushPublisherSecret == "" {
		if cfg.PushPublisherPubKey == "" {
			return "", fmt.Errorf("PUSH_PUBLISHER_PUBKEY or PUSH_PUBLISHER_SECRET is required")
		}
		return cfg.PushPublisherPubKey, nil
	}

	derived, err := nostr.GetPublicKey(cfg.PushPublisherSecret)
	if err != nil {
		return "", fmt.Errorf("derive publisher key: %w", err)
	}
	if cfg.PushPublisherPubKey != "" && cfg.PushPublisherPubKey != derived {
		return "", fmt.Errorf("PUSH_PUBLISHER_PUBKEY does not match PUSH_PUBLISHER_SECRET")
	}
	return derived, nil
}

func wireKhatruHooks(
	relay *khatru.Relay,
	store *slicestore.SliceStore,
	verifier *services.DeltaVerifier,
	limiter *rateLimiter,
	metrics *lib.Metrics,
	logger *slog.Logger,
) {
	relay.RejectEvent = append(relay.RejectEvent, func(_ context.Context, event *nostr.Event) (bool, string) {
		now := time.Now()
		if err := verifier.Verify(event, now); err != nil {
			metrics.Inc("relay_events_rejected_total")
			logger.Warn("reject event", "event_id", event.ID, "error", err)
			return true, "blocked: " + err.Error()
		}
		if services.GroupTag(event.Tags) == "" {
			metrics.Inc("relay_events_rejected_total")
			return true, "invalid: missing group tag"
		}
		if !limiter.Allow(event.PubKey, now) {
			metrics.Inc("relay_events_rate_limited_total")
			return true, "rate-limited: slow down"
		}
		return false, ""
	})

	relay.RejectFilter = append(relay.RejectFilter, func(_ context.Context, filter nostr.Filter) (bool, string) {
		if len(filter.Tags["h"]) == 0 {
			return true, "restricted: subscriptions must name a group"
		}
		return false, ""
	})

	relay.StoreEvent = append(relay.StoreEvent, func(ctx context.Context, event *nostr.Event) error {
		if err := pruneSuperseded(ctx, store, event); err != nil {
			if errors.Is(err, errStaleSnapshot) {
				metrics.Inc("relay_events_stale_total")
			}
			return err
		}
		err := store.SaveEvent(ctx, event)
		if errors.Is(err, eventstore.ErrDupEvent) {
			metrics.Inc("relay_events_duplicate_total")
			return err
		}
		if err != nil {
			return err
		}
		metrics.Inc("relay_events_stored_total")
		return nil
	})

	relay.QueryEvents = append(relay.QueryEvents, store.QueryEvents)
	relay.DeleteEvent = append(relay.DeleteEvent, store.DeleteEvent)
}

// errStaleSnapshot wraps eventstore.ErrDupEvent so a late older snapshot is
// acknowledged like a duplicate and never stored.
var errStaleSnapshot = fmt.Errorf("newer snapshot already stored: %w", eventstore.ErrDupEvent)

// pruneSuperseded drops older snapshots of the same list so the store holds
// at most one event per (author, kind, group). It refuses event with
// errStaleSnapshot when a newer snapshot is already held.
func pruneSuperseded(ctx context.Context, store *slicestore.SliceStore, event *nostr.Event) error {
	ch, err := store.QueryEvents(ctx, nostr.Filter{
		Kinds:   []int{event.Kind},
		Authors: []string{event.PubKey},
		Tags:    nostr.TagMap{"h": []string{services.GroupTag(event.Tags)}},
	})
	if err != nil {
		return fmt.Errorf("query superseded events: %w", err)
	}

	stale := make([]*nostr.Event, 0)
	newer := false
	for old := range ch {
		switch {
		case old.ID == event.ID:
		case old.CreatedAt > event.CreatedAt:
			newer = true
		default:
			stale = append(stale, old)
		}
	}
	if newer {
		return errStaleSnapshot
	}
	for _, old := range stale {
		if err := store.DeleteEvent(ctx, old); err != nil {
			return fmt.Errorf("delete superseded event: %w", err)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
