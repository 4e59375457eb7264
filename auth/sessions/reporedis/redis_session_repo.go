package reporedis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-login-server/auth/sessions"
	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "login:session:"

// Hash fields. The token, activity time and validity flag live beside the
// encoded record so scripts can read and update them without decoding JSON.
const (
	fieldData  = "data"
	fieldCSRF  = "csrf"
	fieldSeen  = "seen"
	fieldValid = "valid"
)

// RedisSessionRepo stores each session as a hash that expires with the session.
type RedisSessionRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

var _ sessions.Repo = (*RedisSessionRepo)(nil)

type Option func(*RedisSessionRepo)

// WithKeyPrefix namespaces every key written by the repo.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisSessionRepo) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// WithNowTime sets the clock used to derive key TTLs from ExpiresAt.
func WithNowTime(now func() time.Time) Option {
	return func(r *RedisSessionRepo) {
		r.now = now
	}
}

func New(client redis.UniversalClient, opts ...Option) *RedisSessionRepo {
	r := &RedisSessionRepo{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisSessionRepo) key(sessionID string) string { return r.keyPrefix + sessionID }

// Returns 0 when the key already exists.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'csrf', ARGV[2], 'seen', ARGV[3], 'valid', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Returns 0 when the key is missing.
var setFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Returns 0 when the old key is missing, -1 on a token or validity mismatch
// and -2 when the new key is taken.
var rotateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local current = redis.call('HMGET', KEYS[1], 'csrf', 'valid')
if current[2] ~= '1' or current[1] ~= ARGV[1] then
  return -1
end
if KEYS[1] ~= KEYS[2] and redis.call('EXISTS', KEYS[2]) == 1 then
  return -2
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[2], 'data', ARGV[2], 'csrf', ARGV[3], 'seen', ARGV[4], 'valid', ARGV[5])
redis.call('PEXPIRE', KEYS[2], ARGV[6])
return 1
`)

type encoded struct {
	data  string
	csrf  string
	seen  string
	valid string
	ttl   int64
}

func (r *RedisSessionRepo) encode(s *sessions.Session) (encoded, error) {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return encoded{}, fmt.Errorf("%w: expires_at must be in the future", errors.ErrSessionExpired)
	}
	record := s.Clone()
	record.CSRFToken = ""
	record.LastSeenAt = time.Time{}
	data, err := json.Marshal(record)
	if err != nil {
		return encoded{}, fmt.Errorf("failed to marshal session: %w", err)
	}
	valid := "0"
	if s.Valid {
		valid = "1"
	}
	return encoded{
		data:  string(data),
		csrf:  s.CSRFToken,
		seen:  formatTime(s.LastSeenAt),
		valid: valid,
		ttl:   ttl.Milliseconds(),
	}, nil
}

func (r *RedisSessionRepo) Create(ctx context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("[RedisSessionRepo.Create] session id is required")
	}
	enc, err := r.encode(session)
	if err != nil {
		return fmt.Errorf("[RedisSessionRepo.Create] %w", err)
	}
	res, err := createScript.Run(ctx, r.client, []string{r.key(session.ID)},
		enc.data, enc.csrf, enc.seen, enc.valid, enc.ttl).Int()
	if err != nil {
		return fmt.Errorf("[RedisSessionRepo.Create] %w", err)
	}
	if res == 0 {
		return fmt.Errorf("[RedisSessionRepo.Create] %w", errors.ErrSessionExists)
	}
	return nil
}

func (r *RedisSessionRepo) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	vals, err := r.client.HMGet(ctx, r.key(sessionID), fieldData, fieldCSRF, fieldSeen, fieldValid).Result()
	if err != nil {
		return nil, fmt.Errorf("[RedisSessionRepo.Get] %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	var s sessions.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("[RedisSessionRepo.Get] failed to unmarshal session: %w", err)
	}
	s.CSRFToken, _ = vals[1].(string)
	if seen, ok := vals[2].(string); ok {
		s.LastSeenAt = parseTime(seen)
	}
	valid, _ := vals[3].(string)
	s.Valid = valid == "1"
	return &s, nil
}

func (r *RedisSessionRepo) setField(ctx context.Context, sessionID, field, value string) error {
	res, err := setFieldScript.Run(ctx, r.client, []string{r.key(sessionID)}, field, value).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (r *RedisSessionRepo) SetCSRFToken(ctx context.Context, sessionID, csrfToken string) error {
	if err := r.setField(ctx, sessionID, fieldCSRF, csrfToken); err != nil {
		return fmt.Errorf("[RedisSessionRepo.SetCSRFToken] %w", err)
	}
	return nil
}

func (r *RedisSessionRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	if err := r.setField(ctx, sessionID, fieldSeen, formatTime(at)); err != nil {
		return fmt.Errorf("[RedisSessionRepo.Touch] %w", err)
	}
	return nil
}

func (r *RedisSessionRepo) Rotate(ctx context.Context, oldID, expectedToken string, next *sessions.Session) error {
	if next == nil || next.ID == "" {
		return fmt.Errorf("[RedisSessionRepo.Rotate] next session id is required")
	}
	enc, err := r.encode(next)
	if err != nil {
		return fmt.Errorf("[RedisSessionRepo.Rotate] %w", err)
	}
	keys := []string{r.key(oldID), r.key(next.ID)}
	res, err := rotateScript.Run(ctx, r.client, keys,
		expectedToken, enc.data, enc.csrf, enc.seen, enc.valid, enc.ttl).Int()
	if err != nil {
		return fmt.Errorf("[RedisSessionRepo.Rotate] %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return errors.ErrSessionNotFound
	case -1:
		return errors.ErrRotationConflict
	default:
		return fmt.Errorf("[RedisSessionRepo.Rotate] %w", errors.ErrSessionExists)
	}
}

func (r *RedisSessionRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("[RedisSessionRepo.Delete] %w", err)
	}
	return nil
}

// DeleteExpired removes records whose ExpiresAt has passed by the caller's
// clock. Redis reclaims keys on its own once their TTL runs out, so this only
// catches records written under a skewed clock.
func (r *RedisSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.keyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("[RedisSessionRepo.DeleteExpired] %w", err)
		}
		for _, key := range keys {
			s, err := r.Get(ctx, strings.TrimPrefix(key, r.keyPrefix))
			if errors.Is(err, errors.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return removed, err
			}
			if s.Expired(now) || !s.Valid {
				n, err := r.client.Del(ctx, key).Result()
				if err != nil {
					return removed, fmt.Errorf("[RedisSessionRepo.DeleteExpired] %w", err)
				}
				removed += int(n)
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
