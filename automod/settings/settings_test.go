package settings

import (
	"context"
	"testing"
	"time"

	"github.com/iris-chat/warden/automod/cachestore"
	"github.com/iris-chat/warden/automod/policy"
	"github.com/iris-chat/warden/util/cliutil"

	"github.com/stretchr/testify/assert"
)

func testPolicyStore(t *testing.T, s PolicyStore) {
	assert := assert.New(t)
	ctx := context.Background()

	p, err := s.Get(ctx, -1)
	assert.NoError(err)
	assert.Equal(policy.Default(), p)

	p.StrikeLimit = 5
	p.EscalationAction = policy.ActionMute
	p.EscalationMuteMinutes = 60
	p.FloodEnabled = false
	p.PrivacyMode = true
	assert.NoError(s.Put(ctx, -1, p))

	got, err := s.Get(ctx, -1)
	assert.NoError(err)
	assert.Equal(p, got)

	// overwrite
	p.StrikeLimit = 2
	assert.NoError(s.Put(ctx, -1, p))
	got, err = s.Get(ctx, -1)
	assert.NoError(err)
	assert.Equal(2, got.StrikeLimit)

	// other chats still default
	got, err = s.Get(ctx, -2)
	assert.NoError(err)
	assert.Equal(policy.Default(), got)
}

func TestMemPolicyStore(t *testing.T) {
	testPolicyStore(t, NewMemPolicyStore())
}

func TestGormPolicyStore(t *testing.T) {
	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewGormPolicyStore(db)
	if err != nil {
		t.Fatal(err)
	}
	testPolicyStore(t, s)
}

func TestCachedPolicyStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := NewMemPolicyStore()
	cache := cachestore.NewMemCacheStore(100, time.Hour)
	s := &CachedPolicyStore{Inner: inner, Cache: cache}
	testPolicyStore(t, s)

	// a write that bypasses the cache is not visible until the entry is purged
	p, err := s.Get(ctx, -3)
	assert.NoError(err)
	p.StrikeLimit = 9
	assert.NoError(inner.Put(ctx, -3, p))
	got, err := s.Get(ctx, -3)
	assert.NoError(err)
	assert.Equal(3, got.StrikeLimit)

	assert.NoError(cache.Purge(ctx, policyCacheNamespace, -3))
	got, err = s.Get(ctx, -3)
	assert.NoError(err)
	assert.Equal(9, got.StrikeLimit)
}
