package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/pockett/agreementflow/internal/logger"
)

// Lifecycle event types emitted by the agreement service.
const (
	TypeGenerated         = "agreement.generated"
	TypeSignatureUploaded = "signature.uploaded"
	TypeSigned            = "agreement.signed"
	TypeDeleted           = "agreement.deleted"
)

// Event is the payload published for every agreement state change.
type Event struct {
	Type       string    `json:"type"`
	LoanID     string    `json:"loanId"`
	DocumentID string    `json:"documentId,omitempty"`
	Path       string    `json:"path,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher emits lifecycle events. Publishing is best effort from the
// service's point of view; failures are logged, not surfaced to callers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NoopPublisher drops all events. Used when Pub/Sub is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev Event) error { return nil }
func (NoopPublisher) Close() error                                { return nil }

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher connects to the project and binds the topic.
func NewPubSubPublisher(ctx context.Context, projectID, topic string) (*PubSubPublisher, error) {
	if projectID == "" || topic == "" {
		return nil, fmt.Errorf("pubsub project ID and topic must be set")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(topic)}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"eventType": ev.Type,
			"loanId":    ev.LoanID,
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	logger.CtxDebug(ctx, "Published lifecycle event.", "eventType", ev.Type, "loanId", ev.LoanID, "messageId", id)
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
