// Package redis implements the session store on a Redis instance, the
// production backend. Record values are JSON, record TTLs are managed by
// Redis itself, and the per-user index is a SET whose TTL is pushed out to
// the refresh TTL on every issuance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gatekit/gatekit/internal/admin/session"
	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds every store call so a wedged Redis surfaces as a
// timely infrastructure error instead of a hung request.
const DefaultOpTimeout = 3 * time.Second

// Config holds connection parameters for the Redis session store.
type Config struct {
	Addr     string
	Password string
	DB       int

	// OpTimeout is the per-operation timeout. Zero means DefaultOpTimeout.
	OpTimeout time.Duration
}

type Store struct {
	rdb       *redis.Client
	opTimeout time.Duration
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis session store: %w", err)
	}

	return &Store{rdb: rdb, opTimeout: opTimeout}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) PutPair(ctx context.Context, access, refresh session.Record, accessTTL, refreshTTL time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	accessVal, err := json.Marshal(access)
	if err != nil {
		return err
	}
	refreshVal, err := json.Marshal(refresh)
	if err != nil {
		return err
	}

	accessKey := session.Key(session.ClassAccess, access.UserID, access.Token)
	refreshKey := session.Key(session.ClassRefresh, refresh.UserID, refresh.Token)
	indexKey := session.IndexKey(access.UserID)

	// A MULTI/EXEC pipeline: both records and the index update land
	// together or not at all.
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, accessKey, accessVal, accessTTL)
		p.Set(ctx, refreshKey, refreshVal, refreshTTL)
		p.SAdd(ctx, indexKey, accessKey, refreshKey)
		p.Expire(ctx, indexKey, refreshTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session store: put pair: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, class, userID, token string) (session.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.rdb.Get(ctx, session.Key(class, userID, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("redis session store: get: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return session.Record{}, fmt.Errorf("redis session store: corrupt record: %w", err)
	}
	return rec, nil
}

func (s *Store) Lookup(ctx context.Context, class, token string) (session.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	iter := s.rdb.Scan(ctx, 0, session.Pattern(class, token), 64).Iterator()
	for iter.Next(ctx) {
		val, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return session.Record{}, fmt.Errorf("redis session store: lookup: %w", err)
		}

		var rec session.Record
		if err := json.Unmarshal(val, &rec); err != nil {
			return session.Record{}, fmt.Errorf("redis session store: corrupt record: %w", err)
		}
		return rec, nil
	}
	if err := iter.Err(); err != nil {
		return session.Record{}, fmt.Errorf("redis session store: lookup scan: %w", err)
	}
	return session.Record{}, session.ErrNotFound
}

func (s *Store) Exists(ctx context.Context, class, userID, token string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.rdb.Exists(ctx, session.Key(class, userID, token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis session store: exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, class, userID, token string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := session.Key(class, userID, token)
	indexKey := session.IndexKey(userID)

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, indexKey, key)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session store: delete: %w", err)
	}
	return nil
}

func (s *Store) Members(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	members, err := s.rdb.SMembers(ctx, session.IndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis session store: members: %w", err)
	}
	return members, nil
}

func (s *Store) DeleteAll(ctx context.Context, userID string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	indexKey := session.IndexKey(userID)

	members, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis session store: revoke all: %w", err)
	}
	if len(members) == 0 {
		// Revoking an already-clean user is a no-op success.
		if err := s.rdb.Del(ctx, indexKey).Err(); err != nil {
			return 0, fmt.Errorf("redis session store: revoke all: %w", err)
		}
		return 0, nil
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, members...)
		p.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis session store: revoke all: %w", err)
	}
	return len(members), nil
}

func (s *Store) Rotate(ctx context.Context, oldRefreshUserID, oldRefreshToken string, access, refresh session.Record, accessTTL, refreshTTL time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	oldKey := session.Key(session.ClassRefresh, oldRefreshUserID, oldRefreshToken)
	oldIndexKey := session.IndexKey(oldRefreshUserID)

	accessVal, err := json.Marshal(access)
	if err != nil {
		return err
	}
	refreshVal, err := json.Marshal(refresh)
	if err != nil {
		return err
	}

	accessKey := session.Key(session.ClassAccess, access.UserID, access.Token)
	refreshKey := session.Key(session.ClassRefresh, refresh.UserID, refresh.Token)
	indexKey := session.IndexKey(access.UserID)

	// WATCH the old refresh key: if a concurrent rotation or revoke-all
	// touches it between the existence check and EXEC, the transaction
	// aborts and the caller sees the token as already consumed. This is
	// what guarantees a single-use refresh token has at most one winner.
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, oldKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return session.ErrNotFound
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, oldKey)
			p.SRem(ctx, oldIndexKey, oldKey)
			p.Set(ctx, accessKey, accessVal, accessTTL)
			p.Set(ctx, refreshKey, refreshVal, refreshTTL)
			p.SAdd(ctx, indexKey, accessKey, refreshKey)
			p.Expire(ctx, indexKey, refreshTTL)
			return nil
		})
		return err
	}, oldKey)

	switch {
	case errors.Is(err, session.ErrNotFound):
		return session.ErrNotFound
	case errors.Is(err, redis.TxFailedErr):
		// Lost the race: the old session changed under us.
		return session.ErrNotFound
	case err != nil:
		return fmt.Errorf("redis session store: rotate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
