package restriction

import (
	"context"
	"sync"
)

type memKey struct {
	chatID int64
	userID int64
}

type MemStore struct {
	lk   sync.RWMutex
	rows map[memKey]Restriction
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[memKey]Restriction)}
}

func (s *MemStore) Get(ctx context.Context, chatID, userID int64) (Restriction, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	r, ok := s.rows[memKey{chatID, userID}]
	if !ok {
		return Restriction{ChatID: chatID, UserID: userID}, nil
	}
	return r, nil
}

func (s *MemStore) Put(ctx context.Context, r Restriction) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.rows[memKey{r.ChatID, r.UserID}] = r
	return nil
}

func (s *MemStore) ListActive(ctx context.Context) ([]Restriction, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	var out []Restriction
	for _, r := range s.rows {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}
