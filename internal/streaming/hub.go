package streaming

import (
	"context"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

// Envelope pairs a progress event with the execution it belongs to.
type Envelope struct {
	ExecutionID string               `json:"execution_id"`
	Event       schema.ProgressEvent `json:"event"`
}

// Filter specifies which events a subscriber wants to receive.
type Filter struct {
	ExecutionID string   `json:"execution_id,omitempty"`
	EventTypes  []string `json:"event_types,omitempty"`
}

// Hub provides pub/sub for live execution progress. Delivery is
// at-most-once: subscribers that cannot keep up lose events rather than
// stalling the publisher.
type Hub interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, filter Filter) (<-chan Envelope, func(), error)
}
