package auditlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemAuditLog struct {
	lk      sync.RWMutex
	nextID  uint64
	entries map[int64][]Entry
}

var _ AuditLog = (*MemAuditLog)(nil)

func NewMemAuditLog() *MemAuditLog {
	return &MemAuditLog{entries: make(map[int64][]Entry)}
}

func (l *MemAuditLog) Append(ctx context.Context, e Entry) error {
	l.lk.Lock()
	defer l.lk.Unlock()
	l.nextID++
	e.ID = l.nextID
	l.entries[e.ChatID] = append(l.entries[e.ChatID], e)
	return nil
}

func (l *MemAuditLog) Summarize(ctx context.Context, chatID int64) (map[SummaryKey]int, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	out := make(map[SummaryKey]int)
	for _, e := range l.entries[chatID] {
		out[SummaryKey{ActorID: e.ActorID, ActionType: e.ActionType}]++
	}
	return out, nil
}

func (l *MemAuditLog) ListActors(ctx context.Context, chatID int64) ([]int64, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, e := range l.entries[chatID] {
		if !seen[e.ActorID] {
			seen[e.ActorID] = true
			out = append(out, e.ActorID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (l *MemAuditLog) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	all := l.entries[chatID]
	var out []Entry
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (l *MemAuditLog) PurgeBefore(ctx context.Context, chatID int64, cutoff time.Time) (int64, error) {
	l.lk.Lock()
	defer l.lk.Unlock()
	var kept []Entry
	var removed int64
	for _, e := range l.entries[chatID] {
		if e.At.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries[chatID] = kept
	return removed, nil
}

func (l *MemAuditLog) Chats(ctx context.Context) ([]int64, error) {
	l.lk.RLock()
	defer l.lk.RUnlock()
	var out []int64
	for chatID, entries := range l.entries {
		if len(entries) > 0 {
			out = append(out, chatID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
