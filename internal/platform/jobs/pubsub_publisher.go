package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/comandas/api/internal/services"
)

// PubSubEventPublisher publishes domain events to a Pub/Sub topic for
// out-of-process consumers (ticket printing, reporting).
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed domain event publisher.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// eventEnvelope is the wire form of a domain event.
type eventEnvelope struct {
	Type       string         `json:"type"`
	LocalID    string         `json:"localId"`
	Subject    string         `json:"subject"`
	OccurredAt time.Time      `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Publish enqueues the event on the configured topic. The event type and
// tenant travel as attributes so subscribers can filter without decoding.
func (p *PubSubEventPublisher) Publish(ctx context.Context, event services.DomainEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(eventEnvelope{
		Type:       event.Type,
		LocalID:    event.LocalID,
		Subject:    event.Subject,
		OccurredAt: event.OccurredAt,
		Metadata:   event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal domain event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "localId", event.LocalID)
	setAttr(attrs, "subject", event.Subject)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish domain event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
