package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoCode is returned when no live code exists for a phone number.
var ErrNoCode = errors.New("otp: no active code")

// Entry is a stored code hash and the number of failed attempts against it.
type Entry struct {
	Hash     string
	Attempts int
}

// Store persists hashed codes keyed by phone number.
type Store interface {
	Save(ctx context.Context, phone, hash string, ttl time.Duration) error
	Get(ctx context.Context, phone string) (*Entry, error)
	IncrAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
}

// RedisStore keeps codes in Redis with native key expiry.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "otp:"}
}

func (s *RedisStore) codeKey(phone string) string     { return s.prefix + phone }
func (s *RedisStore) attemptsKey(phone string) string { return s.prefix + phone + ":attempts" }

func (s *RedisStore) Save(ctx context.Context, phone, hash string, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.codeKey(phone), hash, ttl)
	pipe.Set(ctx, s.attemptsKey(phone), 0, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, phone string) (*Entry, error) {
	hash, err := s.rdb.Get(ctx, s.codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCode
	}
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	attempts, err := s.rdb.Get(ctx, s.attemptsKey(phone)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get otp attempts: %w", err)
	}
	return &Entry{Hash: hash, Attempts: attempts}, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, phone string) (int, error) {
	n, err := s.rdb.Incr(ctx, s.attemptsKey(phone)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr otp attempts: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.rdb.Del(ctx, s.codeKey(phone), s.attemptsKey(phone)).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

type memEntry struct {
	Entry
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, phone, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = &memEntry{Entry: Entry{Hash: hash}, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) live(phone string) *memEntry {
	e, ok := s.entries[phone]
	if !ok {
		return nil
	}
	if s.now().After(e.expires) {
		delete(s.entries, phone)
		return nil
	}
	return e
}

func (s *MemoryStore) Get(_ context.Context, phone string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(phone)
	if e == nil {
		return nil, ErrNoCode
	}
	cp := e.Entry
	return &cp, nil
}

func (s *MemoryStore) IncrAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(phone)
	if e == nil {
		return 0, ErrNoCode
	}
	e.Attempts++
	return e.Attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}
