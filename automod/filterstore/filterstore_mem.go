package filterstore

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	lk     sync.RWMutex
	nextID uint64
	chats  map[int64][]Filter
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		chats: make(map[int64][]Filter),
	}
}

func (s *MemStore) Add(ctx context.Context, f Filter) (Filter, error) {
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	s.nextID++
	f.ID = s.nextID
	s.chats[f.ChatID] = append(s.chats[f.ChatID], f)
	return f, nil
}

func (s *MemStore) Remove(ctx context.Context, chatID int64, kind Kind, pattern string) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	var kept []Filter
	removed := 0
	for _, f := range s.chats[chatID] {
		if f.Kind == kind && f.Pattern == pattern {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	s.chats[chatID] = kept
	return removed, nil
}

func (s *MemStore) List(ctx context.Context, chatID int64) ([]Filter, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return append([]Filter(nil), s.chats[chatID]...), nil
}

func (s *MemStore) ListActive(ctx context.Context, chatID int64, now time.Time) ([]Filter, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return activeOnly(s.chats[chatID], now), nil
}

func (s *MemStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	removed := 0
	for chatID, filters := range s.chats {
		kept := activeOnly(filters, now)
		removed += len(filters) - len(kept)
		s.chats[chatID] = kept
	}
	return removed, nil
}
