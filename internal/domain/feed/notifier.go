package feed

import (
	"context"

	"github.com/rs/zerolog"

	"payalert/internal/shared/messages"
)

// Pusher sends a push notification to every device subscribed to a topic.
// Implemented by the Firebase client.
type Pusher interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
}

// Notifier pushes an alert to a company's devices when a payment completes.
type Notifier struct {
	pusher Pusher
	text   messages.MessageText
	log    zerolog.Logger
}

func NewNotifier(pusher Pusher, text messages.MessageText, log zerolog.Logger) *Notifier {
	return &Notifier{pusher: pusher, text: text, log: log.With().Str("component", "notifier").Logger()}
}

// CompanyTopic is the push topic kiosk and dashboard devices subscribe to.
func CompanyTopic(companyID string) string {
	return "company-" + companyID
}

// Publish implements Sink.
func (n *Notifier) Publish(ctx context.Context, ev Event) {
	if !ev.BecameCompleted() {
		return
	}
	tx := ev.Transaction

	title, body := n.text.Render(map[string]string{
		"amount": tx.Amount.StringFixed(2),
		"sender": tx.SenderName,
		"bank":   tx.BankSource,
	})
	data := map[string]string{
		"type":           "payment",
		"transaction_id": tx.ID,
		"amount":         tx.Amount.StringFixed(2),
		"sender_name":    tx.SenderName,
	}

	if err := n.pusher.SendToTopic(ctx, CompanyTopic(tx.CompanyID), title, body, data); err != nil {
		n.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to push payment alert")
		return
	}
	n.log.Debug().Str("transaction_id", tx.ID).Msg("payment alert pushed")
}
