package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session keys written by the quote service.
const (
	KeyModel            = "avalara_model"
	KeyModelKey         = "avalara_model_key"
	KeyTaxes            = "avalara_taxes"
	KeyTaxesTransformed = "avalara_taxes_transformed"
)

// Store keeps per-session JSON values in Redis. In headless mode, or without a
// client, reads always miss and writes are dropped.
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	headless bool
	prefix   string
}

// NewStore constructs a session store.
func NewStore(client *redis.Client, ttl time.Duration, headless bool) *Store {
	return &Store{client: client, ttl: ttl, headless: headless, prefix: "taxbridge:session:"}
}

// Headless reports whether persistence is disabled.
func (s *Store) Headless() bool {
	return s == nil || s.headless || s.client == nil
}

func (s *Store) key(sessionID, name string) string {
	return s.prefix + sessionID + ":" + name
}

// Get decodes the value stored under name into dst and reports whether it
// existed.
func (s *Store) Get(ctx context.Context, sessionID, name string, dst any) (bool, error) {
	if s.Headless() || sessionID == "" {
		return false, nil
	}
	data, err := s.client.Get(ctx, s.key(sessionID, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session get %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("session decode %s: %w", name, err)
	}
	return true, nil
}

// Set stores v under name.
func (s *Store) Set(ctx context.Context, sessionID, name string, v any) error {
	if s.Headless() || sessionID == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", name, err)
	}
	if err := s.client.Set(ctx, s.key(sessionID, name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set %s: %w", name, err)
	}
	return nil
}

// Clear removes every quote key of a session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if s.Headless() || sessionID == "" {
		return nil
	}
	keys := []string{
		s.key(sessionID, KeyModel),
		s.key(sessionID, KeyModelKey),
		s.key(sessionID, KeyTaxes),
		s.key(sessionID, KeyTaxesTransformed),
	}
	return s.client.Del(ctx, keys...).Err()
}
