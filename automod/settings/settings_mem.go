package settings

import (
	"context"
	"sync"

	"github.com/iris-chat/warden/automod/policy"
)

type MemPolicyStore struct {
	lk       sync.RWMutex
	policies map[int64]policy.ChatPolicy
}

var _ PolicyStore = (*MemPolicyStore)(nil)

func NewMemPolicyStore() *MemPolicyStore {
	return &MemPolicyStore{policies: make(map[int64]policy.ChatPolicy)}
}

func (s *MemPolicyStore) Get(ctx context.Context, chatID int64) (policy.ChatPolicy, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	p, ok := s.policies[chatID]
	if !ok {
		return policy.Default(), nil
	}
	return p, nil
}

func (s *MemPolicyStore) Put(ctx context.Context, chatID int64, p policy.ChatPolicy) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.policies[chatID] = p
	return nil
}
