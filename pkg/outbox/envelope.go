package outbox

import (
	"encoding/json"
	"time"
)

// EnvelopeVersion is the newest envelope layout writers produce and readers accept.
const EnvelopeVersion = 1

// ActorRef identifies the staff member whose action produced the event.
type ActorRef struct {
	StaffID string `json:"staffId"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
