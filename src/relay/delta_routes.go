package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/fiatjaf/eventstore/slicestore"
	"github.com/nbd-wtf/go-nostr"

	"socialconnect/src/services"
)

type DeltaRoutes struct {
	Store     *slicestore.SliceStore
	Publisher string
	Logger    *slog.Logger
}

// DeltaSnapshot is the latest stored state of one group list.
type DeltaSnapshot struct {
	Kind      services.DeltaKind `json:"kind"`
	Group     string             `json:"group"`
	EventID   string             `json:"event_id"`
	CreatedAt int64              `json:"created_at"`
	Content   json.RawMessage    `json:"content"`
}

type deltaQuery struct {
	Group string
	Kinds []int
}

var deltaKindNames = map[int]services.DeltaKind{
	services.KindChatDelta:         services.DeltaChat,
	services.KindJoinRequestsDelta: services.DeltaJoinRequests,
	services.KindMembersDelta:      services.DeltaMembers,
}

func RegisterDeltaRoutes(mux *http.ServeMux, routes DeltaRoutes) {
	mux.HandleFunc("/deltas", routes.handleDeltas)
}

func (r DeltaRoutes) handleDeltas(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query, err := parseDeltaQuery(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	snapshots, err := r.latest(req.Context(), query)
	if err != nil {
		r.Logger.Error("query deltas failed", "group", query.Group, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (r DeltaRoutes) latest(ctx context.Context, query deltaQuery) ([]DeltaSnapshot, error) {
	ch, err := r.Store.QueryEvents(ctx, nostr.Filter{
		Kinds:   query.Kinds,
		Authors: []string{r.Publisher},
		Tags:    nostr.TagMap{"h": []string{query.Group}},
	})
	if err != nil {
		return nil, err
	}

	newest := make(map[int]*nostr.Event)
	for event := range ch {
		if current, ok := newest[event.Kind]; !ok || event.CreatedAt > current.CreatedAt {
			newest[event.Kind] = event
		}
	}

	snapshots := make([]DeltaSnapshot, 0, len(newest))
	for kind, event := range newest {
		snapshots = append(snapshots, DeltaSnapshot{
			Kind:      deltaKindNames[kind],
			Group:     query.Group,
			EventID:   event.ID,
			CreatedAt: int64(event.CreatedAt),
			Content:   json.RawMessage(event.Content),
		})
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Kind < snapshots[j].Kind })
	return snapshots, nil
}

func parseDeltaQuery(req *http.Request) (deltaQuery, error) {
	q := req.URL.Query()
	group := strings.TrimSpace(q.Get("group"))
	if group == "" {
		return deltaQuery{}, fmt.Errorf("group is required")
	}

	query := deltaQuery{Group: group, Kinds: services.DeltaEventKinds()}
	if raw := strings.TrimSpace(q.Get("kind")); raw != "" {
		kind, ok := deltaKindByName(services.DeltaKind(raw))
		if !ok {
			return deltaQuery{}, fmt.Errorf("unknown delta kind %q", raw)
		}
		query.Kinds = []int{kind}
	}
	return query, nil
}

func deltaKindByName(name services.DeltaKind) (int, bool) {
	for kind, candidate := range deltaKindNames {
		if candidate == name {
			return kind, true
		}
	}
	return 0, false
}
