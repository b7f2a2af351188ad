package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type cachedThing struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

func testCacheStore(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	v, err := GetJSON[cachedThing](ctx, cs, "policy", -100)
	assert.NoError(err)
	assert.Nil(v)

	assert.NoError(SetJSON(ctx, cs, "policy", -100, cachedThing{Name: "one", Limit: 3}))
	v, err = GetJSON[cachedThing](ctx, cs, "policy", -100)
	assert.NoError(err)
	if assert.NotNil(v) {
		assert.Equal("one", v.Name)
		assert.Equal(3, v.Limit)
	}

	// other namespace and chat are independent
	_, ok, err := cs.Get(ctx, "other", -100)
	assert.NoError(err)
	assert.False(ok)
	_, ok, err = cs.Get(ctx, "policy", -200)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(cs.Purge(ctx, "policy", -100))
	assert.NoError(cs.Purge(ctx, "policy", -100))
	_, ok, err = cs.Get(ctx, "policy", -100)
	assert.NoError(err)
	assert.False(ok)
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Minute))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(100, 20*time.Millisecond)
	assert.NoError(cs.Set(ctx, "policy", 1, []byte("{}")))
	time.Sleep(60 * time.Millisecond)
	_, ok, err := cs.Get(ctx, "policy", 1)
	assert.NoError(err)
	assert.False(ok)
}

func TestRedisCacheStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	testCacheStore(t, NewRedisCacheStore(rdb, time.Minute))
}
