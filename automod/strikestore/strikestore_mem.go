package strikestore

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

type memKey struct {
	chatID int64
	userID int64
}

type memEntry struct {
	lk     sync.Mutex
	count  int
	reason string
}

type MemStrikeStore struct {
	entries *xsync.Map[memKey, *memEntry]
}

var _ StrikeStore = (*MemStrikeStore)(nil)

func NewMemStrikeStore() *MemStrikeStore {
	return &MemStrikeStore{
		entries: xsync.NewMap[memKey, *memEntry](),
	}
}

func (s *MemStrikeStore) entry(chatID, userID int64) *memEntry {
	e, _ := s.entries.LoadOrCompute(memKey{chatID, userID}, func() (*memEntry, bool) {
		return &memEntry{}, false
	})
	return e
}

func (s *MemStrikeStore) RecordStrike(ctx context.Context, chatID, userID int64, reason string) (int, error) {
	e := s.entry(chatID, userID)
	e.lk.Lock()
	defer e.lk.Unlock()
	e.count++
	if reason != "" {
		e.reason = reason
	}
	return e.count, nil
}

func (s *MemStrikeStore) ResetStrikes(ctx context.Context, chatID, userID int64) error {
	e, ok := s.entries.Load(memKey{chatID, userID})
	if !ok {
		return nil
	}
	e.lk.Lock()
	defer e.lk.Unlock()
	e.count = 0
	return nil
}

func (s *MemStrikeStore) GetStrikes(ctx context.Context, chatID, userID int64) (int, error) {
	rec, err := s.GetRecord(ctx, chatID, userID)
	return rec.Count, err
}

func (s *MemStrikeStore) GetRecord(ctx context.Context, chatID, userID int64) (Record, error) {
	rec := Record{ChatID: chatID, UserID: userID}
	e, ok := s.entries.Load(memKey{chatID, userID})
	if !ok {
		return rec, nil
	}
	e.lk.Lock()
	defer e.lk.Unlock()
	rec.Count = e.count
	rec.LastReason = e.reason
	return rec, nil
}
