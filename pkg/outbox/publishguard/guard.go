// Package publishguard keeps a short-lived ledger of outbox events the broker
// has acknowledged, keyed by topic and event id.
//
// The outbox publisher marks a row published in the same transaction that
// locked its batch. If that transaction rolls back after Pub/Sub accepted the
// message, the row comes back on the next poll; the ledger lets the publisher
// settle it without sending a second copy.
package publishguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sportsarena/membership-backend/pkg/redis"
)

// Receipt is what the ledger keeps for one acknowledged publish.
type Receipt struct {
	MessageID   string    `json:"message_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Guard reads and writes the acknowledgement ledger.
type Guard struct {
	store redis.PublishLedger
	ttl   time.Duration
	now   func() time.Time
}

// New returns a guard whose entries expire after ttl. The ttl must outlive
// the longest stretch a row can stay pending after a rollback.
func New(store redis.PublishLedger, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("publish ledger store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}, nil
}

// Published returns the receipt recorded for eventID on topic, if any.
func (g *Guard) Published(ctx context.Context, topic string, eventID uuid.UUID) (*Receipt, error) {
	key, err := g.key(topic, eventID)
	if err != nil {
		return nil, err
	}
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := json.Unmarshal([]byte(raw), &receipt); err != nil {
		return nil, fmt.Errorf("decode publish receipt %s: %w", key, err)
	}
	return &receipt, nil
}

// Record stores the broker's message id once Pub/Sub acknowledged the
// publish. The first receipt for an event is kept; later ones are ignored.
func (g *Guard) Record(ctx context.Context, topic string, eventID uuid.UUID, messageID string) error {
	key, err := g.key(topic, eventID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Receipt{MessageID: messageID, PublishedAt: g.now().UTC()})
	if err != nil {
		return err
	}
	_, err = g.store.SetNX(ctx, key, raw, g.ttl)
	return err
}

func (g *Guard) key(topic string, eventID uuid.UUID) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", errors.New("topic is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.PublishedKey(topic, eventID.String()), nil
}
