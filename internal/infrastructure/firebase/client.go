package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// FCM accepts at most 1000 registration tokens per topic management call.
const topicBatchLimit = 1000

// messenger is the subset of *messaging.Client used here.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Client implements feed.Pusher using Firebase Cloud Messaging topics.
type Client struct {
	msg messenger
	log zerolog.Logger
}

// NewClient initializes a Firebase app and returns an FCM client.
func NewClient(ctx context.Context, credentialsFile string, log zerolog.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return newClient(msgClient, log), nil
}

func newClient(msg messenger, log zerolog.Logger) *Client {
	return &Client{msg: msg, log: log.With().Str("component", "fcm").Logger()}
}

// SendToTopic pushes a notification to every device subscribed to topic.
func (c *Client) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	id, err := c.msg.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	c.log.Debug().Str("topic", topic).Str("message_id", id).Msg("FCM topic message sent")
	return nil
}

// Subscribe adds device registration tokens to a topic, batching at the FCM limit.
// Returns the number of tokens FCM rejected.
func (c *Client) Subscribe(ctx context.Context, tokens []string, topic string) (int, error) {
	var failed int
	for _, batch := range chunkTokens(tokens, topicBatchLimit) {
		resp, err := c.msg.SubscribeToTopic(ctx, batch, topic)
		if err != nil {
			return failed, fmt.Errorf("failed to subscribe to topic: %w", err)
		}

		failed += resp.FailureCount
		for _, e := range resp.Errors {
			c.log.Warn().Int("index", e.Index).Str("reason", e.Reason).Str("topic", topic).Msg("FCM token rejected")
		}
	}
	return failed, nil
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}
