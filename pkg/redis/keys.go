package redis

import "strings"

const keyNamespace = "arena"

// Key kinds.
const (
	kindIdempotency = "idempotency"
	kindRateLimit   = "rate_limit"
	kindLock        = "lock"
	kindPublished   = "outbox_published"
)

// IdempotencyKey is where a replayable response for (scope, id) lives.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(kindIdempotency, scope, id)
}

// RateLimitKey holds the counter for one fixed window scope.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey(kindRateLimit, scope)
}

// PublishedKey holds the broker receipt for one event on one topic.
func (c *Client) PublishedKey(topic, eventID string) string {
	return buildKey(kindPublished, topic, eventID)
}

func (c *Client) LockKey(name string) string {
	return buildKey(kindLock, name)
}

// buildKey joins non-blank parts under the arena namespace.
func buildKey(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
