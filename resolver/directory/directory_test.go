package directory

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb, "")
}

func TestPutAndResolve(t *testing.T) {
	mr, s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "Acme.Example", Entry{
		Address:       "0x52908400098527886E0F7030069857D2E4169EE7",
		Authenticator: "https://wallets.acme.example/lwn/{}",
	}, 0))
	assert.True(t, mr.Exists("lwn:dir:acme.example"))

	addr, err := s.ResolveName(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", addr)

	src, err := s.ResolveAuthenticator(ctx, "acme.example")
	require.NoError(t, err)
	assert.Equal(t, authdoc.SourceURL, src.Kind)
}

func TestPartialEntry(t *testing.T) {
	_, s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "only-address.example", Entry{Address: "0xabc"}, 0))

	_, err := s.ResolveAuthenticator(ctx, "only-address.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)

	_, err = s.ResolveName(ctx, "missing.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestPutReplacesAndExpires(t *testing.T) {
	mr, s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "x.example", Entry{Address: "0x1", Authenticator: "https://a.example/{}"}, 0))
	require.NoError(t, s.Put(ctx, "x.example", Entry{Address: "0x2"}, time.Minute))

	_, err := s.ResolveAuthenticator(ctx, "x.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)

	mr.FastForward(2 * time.Minute)
	_, err = s.ResolveName(ctx, "x.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestPutRejectsBadAuthenticator(t *testing.T) {
	_, s := newStore(t)
	err := s.Put(context.Background(), "x.example", Entry{Authenticator: "ftp://nope/{}"}, 0)
	assert.ErrorIs(t, err, authdoc.ErrInvalidSource)
}

func TestDelete(t *testing.T) {
	_, s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "x.example", Entry{Address: "0x1"}, 0))
	require.NoError(t, s.Delete(ctx, "x.example"))

	_, err := s.ResolveName(ctx, "x.example")
	assert.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestRedisDownIsAnError(t *testing.T) {
	mr, s := newStore(t)
	mr.Close()

	_, err := s.ResolveName(context.Background(), "x.example")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
