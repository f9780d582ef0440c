package enrollment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	redisclient "github.com/guidely/guidely-backend/pkg/redis"
)

// IntentKind discriminates the stashed enrollment intent.
type IntentKind string

const (
	KindInvitation IntentKind = "invitation"
	KindActivity   IntentKind = "activity"
)

// Intent is the deferred enrollment a visitor started before authenticating.
// Exactly one of Token or ActivityID is set, per Kind.
type Intent struct {
	Kind       IntentKind `json:"kind"`
	Token      string     `json:"token,omitempty"`
	ActivityID *uuid.UUID `json:"activity_id,omitempty"`
}

// Validate checks the kind/payload pairing.
func (i Intent) Validate() error {
	switch i.Kind {
	case KindInvitation:
		if strings.TrimSpace(i.Token) == "" {
			return fmt.Errorf("invitation intent requires a token")
		}
	case KindActivity:
		if i.ActivityID == nil || *i.ActivityID == uuid.Nil {
			return fmt.Errorf("activity intent requires an activity id")
		}
	default:
		return fmt.Errorf("unknown intent kind %q", i.Kind)
	}
	return nil
}

type intentStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type intentKeyer interface {
	PendingIntentKey(sessionID string) string
}

// IntentStore stashes at most one pending enrollment intent per anonymous
// session. Recording a new intent overwrites the previous one, so the most
// recent decision wins. Entries share the refresh-session TTL horizon.
type IntentStore struct {
	store intentStore
	keyer intentKeyer
	ttl   time.Duration
}

// NewIntentStore constructs the Redis-backed intent store.
func NewIntentStore(client *redisclient.Client, ttl time.Duration) (*IntentStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("intent ttl must be positive")
	}
	return &IntentStore{store: client, keyer: client, ttl: ttl}, nil
}

// Record stashes the intent against the session, replacing any earlier one.
func (s *IntentStore) Record(ctx context.Context, sessionID string, intent Intent) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := intent.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid intent")
	}
	raw, err := json.Marshal(intent)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode intent")
	}
	if err := s.store.Set(ctx, s.keyer.PendingIntentKey(sessionID), string(raw), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store intent")
	}
	return nil
}

// Peek returns the stashed intent without consuming it, or nil when the
// session has none (expired entries included).
func (s *IntentStore) Peek(ctx context.Context, sessionID string) (*Intent, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	raw, err := s.store.Get(ctx, s.keyer.PendingIntentKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent")
	}
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode intent")
	}
	return &intent, nil
}

// Clear removes the session's intent. Clearing an absent key is a no-op.
func (s *IntentStore) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.store.Del(ctx, s.keyer.PendingIntentKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear intent")
	}
	return nil
}
