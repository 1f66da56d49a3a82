package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"opschat/internal/events"
	"opschat/internal/services"
	"opschat/pkg/logger"
)

// Fetcher loads the authoritative conversation list, normally via the REST
// API.
type Fetcher interface {
	FetchSummaries(ctx context.Context) ([]services.Summary, error)
}

// ConversationList keeps a local copy of the caller's conversation list in
// sync. Events do not carry enough to patch the list in place, so every
// relevant event invalidates it and triggers a refetch; bursts coalesce into
// one fetch.
type ConversationList struct {
	conn    *Conn
	fetcher Fetcher
	log     *logger.Logger

	mu        sync.RWMutex
	summaries []services.Summary

	refresh chan struct{}
	cancel  context.CancelFunc
	subs    []subscription
}

type subscription struct {
	event events.EventType
	id    int
}

func NewConversationList(conn *Conn, fetcher Fetcher, log *logger.Logger) *ConversationList {
	return &ConversationList{
		conn:    conn,
		fetcher: fetcher,
		log:     log,
		refresh: make(chan struct{}, 1),
	}
}

// Start performs the initial fetch and begins listening for changes.
func (l *ConversationList) Start(ctx context.Context) error {
	summaries, err := l.fetcher.FetchSummaries(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.summaries = SortSummaries(summaries)
	l.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	invalidate := func(json.RawMessage) {
		select {
		case l.refresh <- struct{}{}:
		default:
		}
	}
	for _, event := range []events.EventType{
		events.EventNewMessage,
		events.EventMessageStatusUpdate,
		events.EventConversationRead,
	} {
		l.subs = append(l.subs, subscription{event: event, id: l.conn.On(event, invalidate)})
	}

	go l.loop(loopCtx)
	return nil
}

// Stop detaches from the connection and halts refreshes.
func (l *ConversationList) Stop() {
	for _, s := range l.subs {
		l.conn.Off(s.event, s.id)
	}
	l.subs = nil
	if l.cancel != nil {
		l.cancel()
	}
}

// Summaries returns the current list, pinned first, most recent next.
func (l *ConversationList) Summaries() []services.Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]services.Summary, len(l.summaries))
	copy(out, l.summaries)
	return out
}

func (l *ConversationList) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.refresh:
			summaries, err := l.fetcher.FetchSummaries(ctx)
			if err != nil {
				if l.log != nil {
					l.log.Errorf("conversation list refresh: %v", err)
				}
				continue
			}
			l.mu.Lock()
			l.summaries = SortSummaries(summaries)
			l.mu.Unlock()
		}
	}
}

// SortSummaries orders pinned conversations first, then by last activity,
// newest first. Conversations without any message sort last.
func SortSummaries(in []services.Summary) []services.Summary {
	out := make([]services.Summary, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		switch {
		case out[i].LastMessageAt == nil && out[j].LastMessageAt == nil:
			return false
		case out[i].LastMessageAt == nil:
			return false
		case out[j].LastMessageAt == nil:
			return true
		}
		return out[i].LastMessageAt.After(*out[j].LastMessageAt)
	})
	return out
}

// SummaryFilter selects a conversation kind.
type SummaryFilter string

const (
	FilterAll    SummaryFilter = "all"
	FilterDirect SummaryFilter = "direct"
	FilterGroup  SummaryFilter = "group"
)

// FilterSummaries keeps only conversations of the requested kind.
func FilterSummaries(in []services.Summary, filter SummaryFilter) []services.Summary {
	if filter == FilterAll || filter == "" {
		return in
	}
	return keepSummaries(in, func(s services.Summary) bool {
		if filter == FilterGroup {
			return s.IsGroup
		}
		return !s.IsGroup
	})
}

// SearchSummaries does a case-insensitive substring match across the display
// name, the last-message preview and member names.
func SearchSummaries(in []services.Summary, query string) []services.Summary {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return in
	}
	return keepSummaries(in, func(s services.Summary) bool {
		if strings.Contains(strings.ToLower(s.Name), query) ||
			strings.Contains(strings.ToLower(s.LastMessagePreview), query) {
			return true
		}
		for _, m := range s.Members {
			if strings.Contains(strings.ToLower(m.DisplayName), query) {
				return true
			}
		}
		return false
	})
}

func keepSummaries(in []services.Summary, keep func(services.Summary) bool) []services.Summary {
	out := make([]services.Summary, 0, len(in))
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
