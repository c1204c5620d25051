package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PushJob is the payload published for the external push delivery worker.
type PushJob struct {
	Message Message `json:"message"`
	Tokens  Tokens  `json:"tokens"`
}

// Publisher publishes raw payloads with attributes and waits for the server ack.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) error
}

// PubSubDispatcher publishes push jobs to a Pub/Sub topic. Messages for users without
// push tokens are skipped.
type PubSubDispatcher struct {
	publisher Publisher
}

// NewPubSubDispatcher constructs a PubSubDispatcher.
func NewPubSubDispatcher(publisher Publisher) (*PubSubDispatcher, error) {
	if publisher == nil {
		return nil, errors.New("pubsub dispatcher: publisher is required")
	}
	return &PubSubDispatcher{publisher: publisher}, nil
}

// Send implements Dispatcher.
func (d *PubSubDispatcher) Send(ctx context.Context, msg Message, tokens Tokens) error {
	if msg.RecipientUserID == "" {
		return ErrNoRecipient
	}
	if tokens.Empty() {
		return nil
	}

	data, err := json.Marshal(PushJob{Message: msg, Tokens: tokens})
	if err != nil {
		return fmt.Errorf("pubsub dispatcher: encode job: %w", err)
	}

	attrs := map[string]string{
		"type":    msg.Type,
		"user_id": msg.RecipientUserID,
	}
	if err := d.publisher.Publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("pubsub dispatcher: publish: %w", err)
	}
	return nil
}

// TopicPublisher publishes to a Pub/Sub topic.
type TopicPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewTopicPublisher connects to Pub/Sub and binds the named topic.
func NewTopicPublisher(ctx context.Context, projectID, topicID string) (*TopicPublisher, error) {
	if projectID == "" || topicID == "" {
		return nil, errors.New("pubsub: project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub: new client: %w", err)
	}
	return &TopicPublisher{client: client, topic: client.Topic(topicID)}, nil
}

// Publish implements Publisher.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	_, err := result.Get(ctx)
	return err
}

// Close flushes pending messages and releases the client.
func (p *TopicPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
