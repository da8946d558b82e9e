package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Delta event kinds published on the push relay. Each event carries one
// ["h", group] tag and the full replacement list as JSON content.
const (
	KindChatDelta         = 7010
	KindJoinRequestsDelta = 7011
	KindMembersDelta      = 7012
)

var (
	hex64  = regexp.MustCompile(`^[0-9a-f]{64}$`)
	hex128 = regexp.MustCompile(`^[0-9a-f]{128}$`)
)

var deltaKinds = map[DeltaKind]int{
	DeltaChat:         KindChatDelta,
	DeltaJoinRequests: KindJoinRequestsDelta,
	DeltaMembers:      KindMembersDelta,
}

// DeltaEventKinds lists every event kind a delta can be published as.
func DeltaEventKinds() []int {
	return []int{KindChatDelta, KindJoinRequestsDelta, KindMembersDelta}
}

func IsDeltaEventKind(kind int) bool {
	switch kind {
	case KindChatDelta, KindJoinRequestsDelta, KindMembersDelta:
		return true
	default:
		return false
	}
}

// EncodeDeltaEvent builds and signs the push event for delta.
func EncodeDeltaEvent(delta Delta, secret string, at time.Time) (nostr.Event, error) {
	kind, ok := deltaKinds[delta.Kind]
	if !ok {
		return nostr.Event{}, fmt.Errorf("unknown delta kind %q", delta.Kind)
	}
	if delta.Group == "" {
		return nostr.Event{}, fmt.Errorf("delta group is required")
	}

	var payload any
	switch delta.Kind {
	case DeltaChat:
		payload = nonNil(delta.Chat)
	case DeltaJoinRequests:
		payload = nonNil(delta.JoinRequests)
	case DeltaMembers:
		payload = nonNil(delta.Members)
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("marshal delta content: %w", err)
	}

	pubKey, err := nostr.GetPublicKey(secret)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("derive publisher key: %w", err)
	}
	event := nostr.Event{
		PubKey:    pubKey,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Kind:      kind,
		Tags:      nostr.Tags{nostr.Tag{"h", delta.Group}},
		Content:   string(content),
	}
	if err := event.Sign(secret); err != nil {
		return nostr.Event{}, fmt.Errorf("sign delta event: %w", err)
	}
	return event, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// DeltaVerifier accepts only well-formed delta events signed by the
// configured publisher within the allowed clock skew.
type DeltaVerifier struct {
	publisher string
	maxSkew   time.Duration
}

func NewDeltaVerifier(publisher string, maxSkew time.Duration) *DeltaVerifier {
	return &DeltaVerifier{publisher: strings.ToLower(publisher), maxSkew: maxSkew}
}

func (v *DeltaVerifier) Publisher() string {
	return v.publisher
}

func (v *DeltaVerifier) Verify(event *nostr.Event, now time.Time) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if !hex64.MatchString(event.ID) {
		return fmt.Errorf("invalid event id")
	}
	if !hex64.MatchString(event.PubKey) {
		return fmt.Errorf("invalid event pubkey")
	}
	if !hex128.MatchString(event.Sig) {
		return fmt.Errorf("invalid event signature format")
	}
	if event.PubKey != v.publisher {
		return fmt.Errorf("event author %s is not the publisher", event.PubKey)
	}
	if !IsDeltaEventKind(event.Kind) {
		return fmt.Errorf("event kind %d is not a delta kind", event.Kind)
	}
	if v.maxSkew > 0 {
		skew := now.Sub(event.CreatedAt.Time())
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return fmt.Errorf("event created_at out of allowed skew")
		}
	}
	for i, tag := range event.Tags {
		if len(tag) == 0 || strings.TrimSpace(tag[0]) == "" {
			return fmt.Errorf("tag[%d] has empty name", i)
		}
	}

	ok, err := event.CheckSignature()
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	if !ok {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// Decode verifies event and unpacks it as a delta for group.
func (v *DeltaVerifier) Decode(event *nostr.Event, group string, now time.Time) (Delta, error) {
	if err := v.Verify(event, now); err != nil {
		return Delta{}, err
	}
	if got := GroupTag(event.Tags); got != group {
		return Delta{}, fmt.Errorf("event is for group %q, want %q", got, group)
	}

	delta := Delta{Group: group}
	var err error
	switch event.Kind {
	case KindChatDelta:
		delta.Kind = DeltaChat
		err = json.Unmarshal([]byte(event.Content), &delta.Chat)
	case KindJoinRequestsDelta:
		delta.Kind = DeltaJoinRequests
		err = json.Unmarshal([]byte(event.Content), &delta.JoinRequests)
	case KindMembersDelta:
		delta.Kind = DeltaMembers
		err = json.Unmarshal([]byte(event.Content), &delta.Members)
	}
	if err != nil {
		return Delta{}, fmt.Errorf("decode %s delta: %w", delta.Kind, err)
	}
	return delta, nil
}

// GroupTag returns the value of the first "h" tag.
func GroupTag(tags nostr.Tags) string {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == "h" {
			return tag[1]
		}
	}
	return ""
}
