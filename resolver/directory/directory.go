// Package directory resolves names from a proprietary domain-to-wallet
// directory kept in Redis.
//
// Each name is one hash under "<prefix>:<normalised name>" with the optional
// fields "address" and "authenticator". The authenticator field holds the same
// text a naming-system record would: a URL template or an inline document.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/redis/go-redis/v9"
)

const (
	fieldAddress       = "address"
	fieldAuthenticator = "authenticator"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("directory redis unavailable")

// Entry is one directory row.
type Entry struct {
	Address       string
	Authenticator string
}

// Store reads and writes directory entries.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store. An empty prefix defaults to "lwn:dir".
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "lwn:dir"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) Name() string { return "directory" }

func (s *Store) key(name string) (string, error) {
	norm, err := resolver.Normalize(name)
	if err != nil {
		return "", err
	}
	return s.prefix + ":" + norm, nil
}

// Put writes e for name. Empty fields are removed. A positive ttl expires the
// whole entry.
func (s *Store) Put(ctx context.Context, name string, e Entry, ttl time.Duration) error {
	if e.Authenticator != "" {
		if _, err := authdoc.ParseSource(e.Authenticator); err != nil {
			return err
		}
	}
	key, err := s.key(name)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		fields := make(map[string]any, 2)
		if e.Address != "" {
			fields[fieldAddress] = e.Address
		}
		if e.Authenticator != "" {
			fields[fieldAuthenticator] = e.Authenticator
		}
		if len(fields) == 0 {
			return nil
		}
		p.HSet(ctx, key, fields)
		if ttl > 0 {
			p.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes the entry for name.
func (s *Store) Delete(ctx context.Context, name string) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) ResolveName(ctx context.Context, name string) (string, error) {
	return s.field(ctx, name, fieldAddress)
}

func (s *Store) ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	record, err := s.field(ctx, name, fieldAuthenticator)
	if err != nil {
		return authdoc.Source{}, err
	}
	return authdoc.ParseSource(record)
}

func (s *Store) field(ctx context.Context, name, field string) (string, error) {
	key, err := s.key(name)
	if err != nil {
		return "", err
	}
	v, err := s.redis.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", resolver.ErrNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if v == "" {
		return "", resolver.ErrNotFound
	}
	return v, nil
}
