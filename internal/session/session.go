// Package session keeps per-visitor checkout state in Redis.
//
// Each session is one Redis hash keyed by the session id. The hash holds the
// cart, the checkout choices made so far and the payment in progress. Every
// write refreshes the hash TTL.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hash fields.
const (
	FieldCart           = "cart"
	FieldDelivery       = "delivery"
	FieldCity           = "city"
	FieldAddress        = "address"
	FieldPayment        = "payment"
	FieldPaymentTx      = "payment_tx"
	FieldPaymentStarted = "payment_started"
	FieldPaymentMessage = "payment_message"
)

const keyPrefix = "session:"

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like a session id issued by NewID.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// Store reads and writes session hashes.
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewStore creates a Store whose sessions expire after ttl without writes.
func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

// Get returns a single field. Missing fields and sessions yield "".
func (s *Store) Get(ctx context.Context, id, field string) (string, error) {
	v, err := s.rdb.HGet(ctx, key(id), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errors.Wrapf(err, "get session field %s", field)
	}
	return v, nil
}

// All returns every field of the session.
func (s *Store) All(ctx context.Context, id string) (map[string]string, error) {
	v, err := s.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	return v, nil
}

// Set writes fields given as alternating names and values.
func (s *Store) Set(ctx context.Context, id string, pairs ...string) error {
	if len(pairs)%2 != 0 {
		return errors.New("session set: odd number of arguments")
	}
	values := make([]any, len(pairs))
	for i, p := range pairs {
		values[i] = p
	}

	k := key(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, values...)
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "set session")
	}
	return nil
}

// SetOnce writes field only if it is not set yet and reports whether it did.
func (s *Store) SetOnce(ctx context.Context, id, field, value string) (bool, error) {
	k := key(id)
	var set *redis.BoolCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.HSetNX(ctx, k, field, value)
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "set session field %s", field)
	}
	return set.Val(), nil
}

// Delete removes fields from the session.
func (s *Store) Delete(ctx context.Context, id string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, key(id), fields...).Err(); err != nil {
		return errors.Wrap(err, "delete session fields")
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
