package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const minRedisTTL = time.Second

// RedisStore implements Store on Redis.
//
// Layout:
//
//	<prefix>rt:<hash>          JSON record, PX set to its lifetime
//	<prefix>rt-owner:<owner>   set of hashes owned by <owner>
//
// Consume is GETDEL, which Redis executes atomically.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

type redisRecord struct {
	OwnerID   string `json:"o"`
	ExpiresAt int64  `json:"e"`
	CreatedAt int64  `json:"c"`
}

const putScript = `
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  redis.call("SADD", KEYS[2], ARGV[3])
  return 1
end
return 0
`

var putLua = redis.NewScript(putScript)

const deleteOwnerScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, h in ipairs(members) do
  n = n + redis.call("DEL", ARGV[1] .. h)
end
redis.call("DEL", KEYS[1])
return n
`

var deleteOwnerLua = redis.NewScript(deleteOwnerScript)

// NewRedisStore returns a store using keys under prefix (default "rsvp:").
func NewRedisStore(rdb redis.UniversalClient, prefix string) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("session: nil redis client")
	}
	if prefix == "" {
		prefix = "rsvp:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) recordKey(hash string) string { return s.prefix + "rt:" + hash }
func (s *RedisStore) ownerKey(owner string) string { return s.prefix + "rt-owner:" + owner }

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	blob, err := json.Marshal(redisRecord{
		OwnerID:   rec.OwnerID,
		ExpiresAt: rec.ExpiresAt.UnixMilli(),
		CreatedAt: rec.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	ttl := max(rec.ExpiresAt.Sub(rec.CreatedAt), minRedisTTL)

	ok, err := putLua.Run(ctx, s.rdb,
		[]string{s.recordKey(rec.Hash), s.ownerKey(rec.OwnerID)},
		string(blob), ttl.Milliseconds(), rec.Hash,
	).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrConflict
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, hash string) (Record, error) {
	raw, err := s.rdb.GetDel(ctx, s.recordKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec, err := decodeRedisRecord(hash, raw)
	if err != nil {
		return Record{}, err
	}
	// Index cleanup is best-effort; SweepExpired prunes dangling members.
	_ = s.rdb.SRem(ctx, s.ownerKey(rec.OwnerID), hash).Err()
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, hash string) error {
	_, err := s.Consume(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *RedisStore) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteOwnerLua.Run(ctx, s.rdb, []string{s.ownerKey(ownerID)}, s.recordKey("")).Int64()
}

// SweepExpired walks the owner indexes. Redis already evicts records whose
// PX elapsed; this removes records whose logical expiry passed first and
// prunes index entries that point at evicted records.
func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var (
		n      int64
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.ownerKey("*"), 100).Result()
		if err != nil {
			return n, err
		}
		for _, ownerKey := range keys {
			removed, err := s.sweepOwner(ctx, ownerKey, now)
			n += removed
			if err != nil {
				return n, err
			}
		}
		cursor = next
		if cursor == 0 {
			return n, nil
		}
	}
}

func (s *RedisStore) sweepOwner(ctx context.Context, ownerKey string, now time.Time) (int64, error) {
	hashes, err := s.rdb.SMembers(ctx, ownerKey).Result()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, h := range hashes {
		raw, err := s.rdb.Get(ctx, s.recordKey(h)).Bytes()
		if errors.Is(err, redis.Nil) {
			if err := s.rdb.SRem(ctx, ownerKey, h).Err(); err != nil {
				return n, err
			}
			continue
		}
		if err != nil {
			return n, err
		}
		rec, err := decodeRedisRecord(h, raw)
		if err != nil || !rec.Expired(now) {
			continue
		}
		deleted, err := s.rdb.Del(ctx, s.recordKey(h)).Result()
		if err != nil {
			return n, err
		}
		n += deleted
		if err := s.rdb.SRem(ctx, ownerKey, h).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func decodeRedisRecord(hash string, raw []byte) (Record, error) {
	var rr redisRecord
	if err := json.Unmarshal(raw, &rr); err != nil {
		return Record{}, fmt.Errorf("session: corrupt redis record: %w", err)
	}
	return Record{
		Hash:      hash,
		OwnerID:   rr.OwnerID,
		ExpiresAt: time.UnixMilli(rr.ExpiresAt).UTC(),
		CreatedAt: time.UnixMilli(rr.CreatedAt).UTC(),
	}, nil
}
