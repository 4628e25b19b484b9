package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultSessionTTL = 30 * time.Minute

// RedisStore keeps sessions as JSON values with a sliding TTL, so abandoned
// dialogs expire on their own and survive process restarts.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("clinicbot.internal.conversation.sessions")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

// Load returns the stored session or an idle one.
func (s *RedisStore) Load(ctx context.Context, userID string) (Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession(userID), nil
	}
	if err != nil {
		span.RecordError(err)
		return Session{}, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return Session{}, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	if session.UserID == "" {
		session.UserID = userID
	}
	return session, nil
}

// Save persists the session and refreshes its TTL. Idle sessions are deleted.
func (s *RedisStore) Save(ctx context.Context, session Session) error {
	if session.UserID == "" {
		return ErrMissingUser
	}
	if session.State.IsIdle() {
		return s.Clear(ctx, session.UserID)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.save_session", trace.WithAttributes(
		attribute.String("user_id", session.UserID),
		attribute.String("state", session.State.String()),
	))
	defer span.End()

	session.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

// Clear deletes the user's session.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.clear_session", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to clear session: %w", err)
	}
	return nil
}

func sessionKey(userID string) string {
	return fmt.Sprintf("session:%s", userID)
}
