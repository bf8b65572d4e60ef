package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/cartclone/internal/services"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "cart-clones")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPubSubPublisherPublishesCartCloned(t *testing.T) {
	srv, topic := newTestTopic(t)

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	occurredAt := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return occurredAt }

	event := services.CartClonedEvent{
		SourceCartID: "src-mask",
		CartID:       "dst-mask",
		ItemCount:    3,
		Stage:        services.CloneStage("done"),
	}
	if err := publisher.PublishCartCloned(context.Background(), event); err != nil {
		t.Fatalf("PublishCartCloned: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload cartClonedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != CartClonedEventType || payload.CartID != "dst-mask" || payload.SourceCartID != "src-mask" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.ItemCount != 3 || payload.Stage != "done" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(occurredAt) {
		t.Fatalf("expected occurredAt %s, got %s", occurredAt, payload.OccurredAt)
	}
	if payload.CallerID != "" {
		t.Fatalf("expected guest caller id to be omitted, got %q", payload.CallerID)
	}

	attrs := messages[0].Attributes
	if attrs["type"] != CartClonedEventType || attrs["cartId"] != "dst-mask" || attrs["itemCount"] != "3" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
}

func TestPubSubPublisherSkipsBlankAttributes(t *testing.T) {
	srv, topic := newTestTopic(t)

	publisher, err := NewPubSubPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	if err := publisher.PublishCartCloned(context.Background(), services.CartClonedEvent{CartID: "dst"}); err != nil {
		t.Fatalf("PublishCartCloned: %v", err)
	}

	attrs := srv.Messages()[0].Attributes
	if _, ok := attrs["sourceCartId"]; ok {
		t.Fatalf("blank source id should not be an attribute")
	}
	if _, ok := attrs["stage"]; ok {
		t.Fatalf("blank stage should not be an attribute")
	}
}

func TestNewPubSubPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
