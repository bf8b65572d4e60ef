package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/hanko-field/cartclone/internal/services"
)

// CartClonedEventType is the "type" attribute of clone completion messages.
const CartClonedEventType = "cart.cloned"

// cartClonedMessage is the JSON payload published for every completed clone.
type cartClonedMessage struct {
	Type         string    `json:"type"`
	SourceCartID string    `json:"sourceCartId"`
	CartID       string    `json:"cartId"`
	ItemCount    int       `json:"itemCount"`
	Stage        string    `json:"stage"`
	CallerID     string    `json:"callerId,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// PubSubPublisher announces completed clones on a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	now     func() time.Time
}

var _ services.CloneEventPublisher = (*PubSubPublisher)(nil)

// NewPubSubPublisher constructs a publisher for topic.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub clone publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
		now:     time.Now,
	}, nil
}

// PublishCartCloned publishes event and waits for the server acknowledgement.
func (p *PubSubPublisher) PublishCartCloned(ctx context.Context, event services.CartClonedEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub clone publisher: not initialised")
	}

	data, err := p.marshal(cartClonedMessage{
		Type:         CartClonedEventType,
		SourceCartID: event.SourceCartID,
		CartID:       event.CartID,
		ItemCount:    event.ItemCount,
		Stage:        string(event.Stage),
		CallerID:     event.CallerID,
		OccurredAt:   p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cart cloned event: %w", err)
	}

	attrs := map[string]string{
		"type":      CartClonedEventType,
		"itemCount": strconv.Itoa(event.ItemCount),
	}
	setAttr(attrs, "cartId", event.CartID)
	setAttr(attrs, "sourceCartId", event.SourceCartID)
	setAttr(attrs, "stage", string(event.Stage))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish cart cloned event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
