package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	lists   map[string][]string
	pushErr error
	closed  bool
}

func newFakeRedis() *fakeRedis { return &fakeRedis{lists: map[string][]string{}} }

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			f.lists[key] = append(f.lists[key], string(b))
		case string:
			f.lists[key] = append(f.lists[key], b)
		}
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(append([]string(nil), f.lists[key]...), nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	fake := newFakeRedis()
	s := newRedisStore(fake, "")
	seed(t, s)
	runQueries(t, s)
	assert.Len(t, fake.lists[DefaultRedisKey], 3)

	fake.lists[DefaultRedisKey] = append(fake.lists[DefaultRedisKey], "garbage")
	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 3)

	require.NoError(t, s.Close())
	assert.True(t, fake.closed)
}

func TestRedisStore_AppendError(t *testing.T) {
	fake := newFakeRedis()
	fake.pushErr = errors.New("READONLY")
	s := newRedisStore(fake, "runs")
	err := s.Append(context.Background(), record("r", 0, "Gas", false))
	assert.EqualError(t, err, "READONLY")
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("http://not-redis", "")
	assert.Error(t, err)
	_, err = Open(Config{Backend: BackendRedis})
	assert.Error(t, err)
}
