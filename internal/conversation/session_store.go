package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultSessionTTL = 24 * time.Hour

// SessionStore keeps one Session per key. Get returns nil, nil when no
// session exists or it has expired.
type SessionStore interface {
	Get(ctx context.Context, key string) (*Session, error)
	Put(ctx context.Context, key string, session *Session, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisSessionStore stores sessions as JSON strings with a TTL.
type RedisSessionStore struct {
	redis  redis.Cmdable
	tracer trace.Tracer
}

func NewRedisSessionStore(client redis.Cmdable) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisSessionStore{
		redis:  client,
		tracer: otel.Tracer("clinicbook.internal.conversation"),
	}
}

func (s *RedisSessionStore) Get(ctx context.Context, key string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.session.get", trace.WithAttributes(attribute.String("session_key", key)))
	defer span.End()

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, key string, session *Session, ttl time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "conversation.session.put", trace.WithAttributes(attribute.String("session_key", key)))
	defer span.End()

	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to encode session: %w", err)
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.session.delete", trace.WithAttributes(attribute.String("session_key", key)))
	defer span.End()

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete session: %w", err)
	}
	return nil
}

// MemorySessionStore is a process-local SessionStore for tests and local runs.
type MemorySessionStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memorySession
}

type memorySession struct {
	data      []byte
	expiresAt time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{now: time.Now, entries: make(map[string]memorySession)}
}

func (s *MemorySessionStore) Get(_ context.Context, key string) (*Session, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *MemorySessionStore) Put(_ context.Context, key string, session *Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	// Stored encoded so callers never share mutable state with the store.
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("conversation: failed to encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memorySession{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
