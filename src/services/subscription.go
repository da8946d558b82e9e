package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"socialconnect/src/lib"
	"socialconnect/src/models"
)

// DeltaKind names the list a Delta replaces.
type DeltaKind string

const (
	DeltaChat         DeltaKind = "chat"
	DeltaJoinRequests DeltaKind = "join_requests"
	DeltaMembers      DeltaKind = "members"
)

// Delta carries a full replacement of one group list. Only the field that
// matches Kind is set.
type Delta struct {
	Kind         DeltaKind
	Group        string
	Chat         []models.ChatMessage
	JoinRequests []models.JoinRequest
	Members      []models.Member
}

// DeltaSource yields state deltas for a group until ctx is cancelled. The
// returned channel is closed once the source has released everything it
// holds for the subscription.
type DeltaSource interface {
	Subscribe(ctx context.Context, group string) (<-chan Delta, error)
}

// GroupFetcher is the read surface PollingSource needs.
type GroupFetcher interface {
	FetchGroupChat(ctx context.Context, group string) ([]models.ChatMessage, error)
	FetchGroupJoinRequests(ctx context.Context, group string) ([]models.JoinRequest, error)
	FetchGroupMembers(ctx context.Context, group string) ([]models.Member, error)
}

// PollingSource refreshes lists on fixed intervals. Each loop checks its
// gate on every tick, so a loop can idle while the viewer lacks access and
// resume without resubscribing. A zero interval disables that loop.
type PollingSource struct {
	Fetcher         GroupFetcher
	ChatInterval    time.Duration
	RequestInterval time.Duration
	MemberInterval  time.Duration
	ChatGate        func() bool
	RequestGate     func() bool
	Logger          *slog.Logger
	Metrics         *lib.Metrics
}

func (p *PollingSource) Subscribe(ctx context.Context, group string) (<-chan Delta, error) {
	if p.Fetcher == nil {
		return nil, fmt.Errorf("polling source has no fetcher")
	}
	if p.ChatInterval < 0 || p.RequestInterval < 0 || p.MemberInterval < 0 {
		return nil, fmt.Errorf("polling intervals must not be negative")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	out := make(chan Delta)
	var wg sync.WaitGroup
	start := func(kind DeltaKind, every time.Duration, gate func() bool, fetch func(context.Context) (Delta, error)) {
		if every == 0 {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx, logger, out, kind, every, gate, fetch)
		}()
	}

	start(DeltaChat, p.ChatInterval, p.ChatGate, func(ctx context.Context) (Delta, error) {
		chat, err := p.Fetcher.FetchGroupChat(ctx, group)
		return Delta{Kind: DeltaChat, Group: group, Chat: chat}, err
	})
	start(DeltaJoinRequests, p.RequestInterval, p.RequestGate, func(ctx context.Context) (Delta, error) {
		reqs, err := p.Fetcher.FetchGroupJoinRequests(ctx, group)
		return Delta{Kind: DeltaJoinRequests, Group: group, JoinRequests: reqs}, err
	})
	start(DeltaMembers, p.MemberInterval, nil, func(ctx context.Context) (Delta, error) {
		members, err := p.Fetcher.FetchGroupMembers(ctx, group)
		return Delta{Kind: DeltaMembers, Group: group, Members: members}, err
	})

	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (p *PollingSource) loop(
	ctx context.Context,
	logger *slog.Logger,
	out chan<- Delta,
	kind DeltaKind,
	every time.Duration,
	gate func() bool,
	fetch func(context.Context) (Delta, error),
) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if gate != nil && !gate() {
			continue
		}
		delta, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Metrics.Inc("poll_failures_total")
			logger.Warn("poll failed", "kind", kind, "group", delta.Group, "error", err)
			continue
		}

		select {
		case out <- delta:
		case <-ctx.Done():
			return
		}
	}
}

// MultiSource merges several sources into one stream.
type MultiSource []DeltaSource

func (m MultiSource) Subscribe(ctx context.Context, group string) (<-chan Delta, error) {
	ctx, cancel := context.WithCancel(ctx)
	channels := make([]<-chan Delta, 0, len(m))
	for _, source := range m {
		if source == nil {
			continue
		}
		ch, err := source.Subscribe(ctx, group)
		if err != nil {
			cancel()
			for _, started := range channels {
				for range started {
				}
			}
			return nil, err
		}
		channels = append(channels, ch)
	}

	out := make(chan Delta)
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch <-chan Delta) {
			defer wg.Done()
			for delta := range ch {
				select {
				case out <- delta:
				case <-ctx.Done():
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()
	return out, nil
}
