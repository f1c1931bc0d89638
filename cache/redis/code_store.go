package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/redis/go-redis/v9"
)

// Each record is a hash under {prefix:kind}:code:{subject}. A sorted set
// {prefix:kind}:expiry scores subjects by expires_at so the sweep does not
// have to scan the keyspace. The braces are a cluster hash tag: every key of
// one kind lives in the same slot, so transactions and scripts spanning the
// record and the index work on Redis Cluster too.

const (
	fieldEmail     = "email"
	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
	fieldIsUsed    = "is_used"
	fieldUsedAt    = "used_at"
)

var incrementAttemptsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
if attempts >= tonumber(ARGV[1]) then return -2 end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

var markUsedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'is_used') == '1' then return -2 end
redis.call('HSET', KEYS[1], 'is_used', '1', 'used_at', ARGV[1])
return 1
`)

// KEYS[1] is the expiry index, KEYS[i] (i > 1) the record of subject ARGV[i].
// The score is re-read so a subject re-issued after the range query survives.
var deleteExpiredScript = redis.NewScript(`
local deleted = 0
for i = 2, #KEYS do
  local score = redis.call('ZSCORE', KEYS[1], ARGV[i])
  if score and tonumber(score) < tonumber(ARGV[1]) then
    deleted = deleted + redis.call('DEL', KEYS[i])
    redis.call('ZREM', KEYS[1], ARGV[i])
  end
end
return deleted
`)

// sweepBatch bounds the keys handed to one script call.
const sweepBatch = 500

// CodeStore implements domain.CodeRepository on Redis for one code kind.
type CodeStore struct {
	client    redis.UniversalClient
	prefix    string
	kind      domain.CodeKind
	retention time.Duration
}

// NewCodeStore creates a new [CodeStore]. retention is how long a record
// outlives its expiry before Redis drops the key on its own.
func NewCodeStore(client redis.UniversalClient, prefix string, kind domain.CodeKind, retention time.Duration) *CodeStore {
	return &CodeStore{
		client:    client,
		prefix:    prefix,
		kind:      kind,
		retention: retention,
	}
}

var _ domain.CodeRepository = (*CodeStore)(nil)

func (s *CodeStore) slot() string {
	return fmt.Sprintf("{%s:%s}", s.prefix, s.kind)
}

func (s *CodeStore) keyPrefix() string {
	return s.slot() + ":code:"
}

func (s *CodeStore) recordKey(subjectID string) string {
	return s.keyPrefix() + subjectID
}

func (s *CodeStore) expiryKey() string {
	return s.slot() + ":expiry"
}

// Put replaces the hash and its expiry index entry in one transaction.
func (s *CodeStore) Put(ctx context.Context, rec *domain.CodeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	key := s.recordKey(rec.SubjectID)
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt) + s.retention

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			fieldEmail:     rec.Email,
			fieldCode:      rec.Code,
			fieldCreatedAt: rec.CreatedAt.UnixMilli(),
			fieldExpiresAt: rec.ExpiresAt.UnixMilli(),
			fieldAttempts:  rec.Attempts,
			fieldIsUsed:    boolField(rec.IsUsed),
		})
		pipe.PExpire(ctx, key, ttl)
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{Score: float64(rec.ExpiresAt.UnixMilli()), Member: rec.SubjectID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put %s code in Redis: %w", s.kind, err)
	}
	return nil
}

// Get retrieves and validates the subject's record.
func (s *CodeStore) Get(ctx context.Context, subjectID string) (*domain.CodeRecord, error) {
	res, err := s.client.HGetAll(ctx, s.recordKey(subjectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s code from Redis: %w", s.kind, err)
	}
	if len(res) == 0 {
		return nil, domain.ErrCodeNotFound
	}

	rec, err := decodeRecord(subjectID, res)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// IncrementAttempts runs the conditional increment as a Lua script.
func (s *CodeStore) IncrementAttempts(ctx context.Context, subjectID string, limit int) (int, error) {
	n, err := incrementAttemptsScript.Run(ctx, s.client, []string{s.recordKey(subjectID)}, limit).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s attempts in Redis: %w", s.kind, err)
	}
	switch n {
	case -1:
		return 0, domain.ErrCodeNotFound
	case -2:
		return limit, domain.ErrTooManyAttempts
	}
	return n, nil
}

// MarkUsed flips is_used unless another caller already did.
func (s *CodeStore) MarkUsed(ctx context.Context, subjectID string, at time.Time) error {
	usedAt := at.UTC().Truncate(time.Millisecond).UnixMilli()
	n, err := markUsedScript.Run(ctx, s.client, []string{s.recordKey(subjectID)}, usedAt).Int()
	if err != nil {
		return fmt.Errorf("failed to mark %s code used in Redis: %w", s.kind, err)
	}
	switch n {
	case -1:
		return domain.ErrCodeNotFound
	case -2:
		return domain.ErrCodeAlreadyUsed
	}
	return nil
}

// DeleteExpiredBefore drops every subject whose expiry score is below now.
// Candidates come from the index; the script deletes them with every key
// declared.
func (s *CodeStore) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UnixMilli()
	subjects, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired %s codes in Redis: %w", s.kind, err)
	}

	var deleted int64
	for start := 0; start < len(subjects); start += sweepBatch {
		batch := subjects[start:min(start+sweepBatch, len(subjects))]
		keys := make([]string, 0, len(batch)+1)
		args := make([]interface{}, 0, len(batch)+1)
		keys = append(keys, s.expiryKey())
		args = append(args, cutoff)
		for _, subject := range batch {
			keys = append(keys, s.recordKey(subject))
			args = append(args, subject)
		}
		n, err := deleteExpiredScript.Run(ctx, s.client, keys, args...).Int64()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete expired %s codes in Redis: %w", s.kind, err)
		}
		deleted += n
	}
	return deleted, nil
}

func decodeRecord(subjectID string, fields map[string]string) (*domain.CodeRecord, error) {
	rec := &domain.CodeRecord{
		SubjectID: subjectID,
		Email:     fields[fieldEmail],
		Code:      fields[fieldCode],
		IsUsed:    fields[fieldIsUsed] == "1",
	}

	var err error
	if rec.CreatedAt, err = parseMillis(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", domain.ErrMalformedRecord, err)
	}
	if rec.ExpiresAt, err = parseMillis(fields[fieldExpiresAt]); err != nil {
		return nil, fmt.Errorf("%w: expires_at: %v", domain.ErrMalformedRecord, err)
	}
	if rec.Attempts, err = strconv.Atoi(fields[fieldAttempts]); err != nil {
		return nil, fmt.Errorf("%w: attempts: %v", domain.ErrMalformedRecord, err)
	}
	if raw, ok := fields[fieldUsedAt]; ok && raw != "" {
		usedAt, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: used_at: %v", domain.ErrMalformedRecord, err)
		}
		rec.UsedAt = &usedAt
	}
	return rec, nil
}

func parseMillis(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing")
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Provider serves a CodeStore per kind from one Redis client.
type Provider struct {
	client redis.UniversalClient
	stores map[domain.CodeKind]*CodeStore
}

// NewProvider wires a store for every code kind.
func NewProvider(client redis.UniversalClient, prefix string, retention time.Duration) *Provider {
	p := &Provider{client: client, stores: make(map[domain.CodeKind]*CodeStore)}
	for _, kind := range domain.CodeKinds() {
		p.stores[kind] = NewCodeStore(client, prefix, kind, retention)
	}
	return p
}

var _ domain.CodeStoreProvider = (*Provider)(nil)

func (p *Provider) CodeRepository(kind domain.CodeKind) domain.CodeRepository {
	return p.stores[kind]
}

func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Provider) Close(context.Context) error {
	return p.client.Close()
}
