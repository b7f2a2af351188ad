package strikestore

import (
	"context"
	"sync"
	"testing"

	"github.com/iris-chat/warden/util/cliutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func testStrikeStoreBasics(t *testing.T, ss StrikeStore) {
	assert := assert.New(t)
	ctx := context.Background()

	c, err := ss.GetStrikes(ctx, -100, 42)
	assert.NoError(err)
	assert.Equal(0, c)
	rec, err := ss.GetRecord(ctx, -100, 42)
	assert.NoError(err)
	assert.Equal(Record{ChatID: -100, UserID: 42}, rec)

	// reset of an unknown key is a no-op
	assert.NoError(ss.ResetStrikes(ctx, -100, 42))

	for i := 1; i <= 3; i++ {
		c, err = ss.RecordStrike(ctx, -100, 42, "spam")
		assert.NoError(err)
		assert.Equal(i, c)
	}

	// empty reason keeps the previous one
	c, err = ss.RecordStrike(ctx, -100, 42, "")
	assert.NoError(err)
	assert.Equal(4, c)
	rec, err = ss.GetRecord(ctx, -100, 42)
	assert.NoError(err)
	assert.Equal(4, rec.Count)
	assert.Equal("spam", rec.LastReason)

	c, err = ss.RecordStrike(ctx, -100, 42, "nsfw")
	assert.NoError(err)
	assert.Equal(5, c)

	// other chat and user are independent
	c, err = ss.GetStrikes(ctx, -200, 42)
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = ss.GetStrikes(ctx, -100, 43)
	assert.NoError(err)
	assert.Equal(0, c)

	assert.NoError(ss.ResetStrikes(ctx, -100, 42))
	rec, err = ss.GetRecord(ctx, -100, 42)
	assert.NoError(err)
	assert.Equal(0, rec.Count)
	assert.Equal("nsfw", rec.LastReason)

	c, err = ss.RecordStrike(ctx, -100, 42, "again")
	assert.NoError(err)
	assert.Equal(1, c)
}

func testStrikeStoreConcurrent(t *testing.T, ss StrikeStore) {
	assert := assert.New(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	seen := make(chan int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := ss.RecordStrike(ctx, -1, 7, "flood")
			assert.NoError(err)
			seen <- c
		}()
	}
	wg.Wait()
	close(seen)

	// every increment returned a distinct count
	counts := make(map[int]bool)
	for c := range seen {
		counts[c] = true
	}
	assert.Equal(50, len(counts))
	c, err := ss.GetStrikes(ctx, -1, 7)
	assert.NoError(err)
	assert.Equal(50, c)
}

func TestMemStrikeStore(t *testing.T) {
	testStrikeStoreBasics(t, NewMemStrikeStore())
	testStrikeStoreConcurrent(t, NewMemStrikeStore())
}

func TestRedisStrikeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	testStrikeStoreBasics(t, NewRedisStrikeStore(rdb))
	mr.FlushAll()
	testStrikeStoreConcurrent(t, NewRedisStrikeStore(rdb))
}

func TestGormStrikeStore(t *testing.T) {
	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatal(err)
	}
	ss, err := NewGormStrikeStore(db)
	if err != nil {
		t.Fatal(err)
	}
	testStrikeStoreBasics(t, ss)
	testStrikeStoreConcurrent(t, ss)
}
