package infra

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/middleware/ratelimit/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSlidingWindow_AllowsUpToLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newFakeClock()
	w := NewRedisSlidingWindow(rdb, domain.TierPayment, WithSlidingClock(clock.Now))
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		out := w.Limit(ctx, "1.2.3.4")
		require.True(t, out.Available(), "unexpected error: %v", out.Err)
		require.True(t, out.Success)
		assert.Equal(t, want, out.Remaining)
		clock.Advance(time.Second)
	}

	out := w.Limit(ctx, "1.2.3.4")
	require.True(t, out.Available())
	assert.False(t, out.Success)
	assert.Equal(t, 0, out.Remaining)
}

func TestRedisSlidingWindow_SlidesOldEntriesOut(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newFakeClock()
	w := NewRedisSlidingWindow(rdb, domain.TierAuth, WithSlidingClock(clock.Now))
	ctx := context.Background()

	// 5 requisições espalhadas: uma a cada minuto, de t=0 a t=4min
	for i := 0; i < 5; i++ {
		if i > 0 {
			clock.Advance(time.Minute)
		}
		require.True(t, w.Limit(ctx, "k").Success)
	}
	// t=5min-1ms: a primeira (t=0) ainda está dentro da janela de 300s
	clock.Advance(time.Minute - time.Millisecond)
	require.False(t, w.Limit(ctx, "k").Success)

	// t=5min: a primeira saiu da janela, abre exatamente uma vaga
	clock.Advance(time.Millisecond)
	out := w.Limit(ctx, "k")
	assert.True(t, out.Success)
	assert.Equal(t, 0, out.Remaining)
	assert.False(t, w.Limit(ctx, "k").Success)
}

func TestRedisSlidingWindow_TierNamespaces(t *testing.T) {
	mr, rdb := newTestRedis(t)
	limiters := NewDistributedLimiters(rdb)
	ctx := context.Background()

	require.Len(t, limiters, 3)

	for i := 0; i < 3; i++ {
		require.True(t, limiters[domain.TierPayment].Limit(ctx, "9.9.9.9").Success)
	}
	require.False(t, limiters[domain.TierPayment].Limit(ctx, "9.9.9.9").Success)

	// mesmo identificador em outro tier não colide
	assert.True(t, limiters[domain.TierAPI].Limit(ctx, "9.9.9.9").Success)

	assert.True(t, mr.Exists("rl:payment:9.9.9.9"))
	assert.True(t, mr.Exists("rl:api:9.9.9.9"))
	assert.False(t, mr.Exists("rl:auth:9.9.9.9"))
}

func TestRedisSlidingWindow_SetsExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	w := NewRedisSlidingWindow(rdb, domain.TierAPI, WithKeyPrefix("gw:"))

	require.True(t, w.Limit(context.Background(), "k").Success)

	assert.True(t, mr.Exists("gw:api:k"))
	assert.Equal(t, 60*time.Second, mr.TTL("gw:api:k"))
}

func TestRedisSlidingWindow_UnavailableWhenServerDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	w := NewRedisSlidingWindow(rdb, domain.TierAPI)
	mr.Close()

	out := w.Limit(context.Background(), "k")
	require.False(t, out.Available())
	assert.ErrorIs(t, out.Err, domain.ErrDistributedUnavailable)
}

type fakeScripter struct {
	reply any
	err   error
}

func (f fakeScripter) cmd() *redis.Cmd { return redis.NewCmdResult(f.reply, f.err) }

func (f fakeScripter) Eval(context.Context, string, []string, ...any) *redis.Cmd      { return f.cmd() }
func (f fakeScripter) EvalSha(context.Context, string, []string, ...any) *redis.Cmd   { return f.cmd() }
func (f fakeScripter) EvalRO(context.Context, string, []string, ...any) *redis.Cmd    { return f.cmd() }
func (f fakeScripter) EvalShaRO(context.Context, string, []string, ...any) *redis.Cmd { return f.cmd() }

func (f fakeScripter) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(nil, nil)
}

func (f fakeScripter) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisSlidingWindow_UnavailableOnMalformedReply(t *testing.T) {
	replies := []any{
		"OK",
		[]any{int64(1)},
		[]any{int64(1), int64(2), int64(3)},
	}

	for _, reply := range replies {
		w := NewRedisSlidingWindow(fakeScripter{reply: reply}, domain.TierAPI)
		out := w.Limit(context.Background(), "k")
		assert.ErrorIs(t, out.Err, domain.ErrDistributedUnavailable, "reply %#v", reply)
	}
}

func TestRedisSlidingWindow_NilClientIsUnavailable(t *testing.T) {
	var w *RedisSlidingWindow
	assert.False(t, w.Limit(context.Background(), "k").Available())
}

func TestDistributedConfig_Enabled(t *testing.T) {
	assert.False(t, DistributedConfig{}.Enabled())
	assert.False(t, DistributedConfig{URL: "redis://localhost:6379"}.Enabled())
	assert.False(t, DistributedConfig{Token: "secret"}.Enabled())
	assert.False(t, DistributedConfig{URL: " ", Token: "secret"}.Enabled())
	assert.True(t, DistributedConfig{URL: "redis://localhost:6379", Token: "secret"}.Enabled())
}

func TestNewDistributedClient(t *testing.T) {
	_, err := NewDistributedClient(DistributedConfig{})
	require.Error(t, err)

	_, err = NewDistributedClient(DistributedConfig{URL: "http://not-redis", Token: "x"})
	require.Error(t, err)

	rdb, err := NewDistributedClient(DistributedConfig{
		URL:     "rediss://default@cache.example.com:6380",
		Token:   "secret",
		Timeout: 750 * time.Millisecond,
	})
	require.NoError(t, err)
	defer rdb.Close()

	opts := rdb.Options()
	assert.Equal(t, "cache.example.com:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	// -1 vira 0 dentro do NewClient: nenhum retry de comando.
	assert.Equal(t, 0, opts.MaxRetries)
	assert.Equal(t, 1, opts.DialerRetries)
	assert.Equal(t, 750*time.Millisecond, opts.ReadTimeout)
	assert.NotNil(t, opts.TLSConfig)
}

func TestRedisSlidingWindow_SingleDialWhenUnreachable(t *testing.T) {
	opts, err := distributedOptions(DistributedConfig{URL: "redis://127.0.0.1:6379", Token: "secret"})
	require.NoError(t, err)

	var dials atomic.Int32
	opts.Dialer = func(context.Context, string, string) (net.Conn, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	w := NewRedisSlidingWindow(rdb, domain.TierAPI)
	start := time.Now()
	out := w.Limit(context.Background(), "1.2.3.4")

	require.False(t, out.Available())
	assert.ErrorIs(t, out.Err, domain.ErrDistributedUnavailable)
	assert.Equal(t, int32(1), dials.Load())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
