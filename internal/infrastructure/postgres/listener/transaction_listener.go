package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"payalert/internal/domain/feed"
	"payalert/internal/domain/transaction"
)

const (
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
	dispatchTimeout   = 10 * time.Second
)

// Notification is the payload written by the transactions_notify trigger.
type Notification struct {
	Op         string `json:"op"`
	ID         string `json:"id"`
	CompanyID  string `json:"company_id"`
	Status     string `json:"status"`
	PrevStatus string `json:"prev_status"`
}

// Loader fetches the full row named by a notification.
type Loader interface {
	GetByID(ctx context.Context, id string) (*transaction.Transaction, error)
}

// TransactionListener turns Postgres NOTIFY messages into feed events.
// Rows written by any process (API, admin CLI, another replica) reach the sink.
type TransactionListener struct {
	connStr    string
	channel    string
	loader     Loader
	sink       feed.Sink
	log        zerolog.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewTransactionListener(connStr, channel string, loader Loader, sink feed.Sink, log zerolog.Logger) *TransactionListener {
	return &TransactionListener{
		connStr:    connStr,
		channel:    channel,
		loader:     loader,
		sink:       sink,
		log:        log.With().Str("component", "listener").Str("channel", channel).Logger(),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening in a background goroutine.
func (l *TransactionListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.log.Info().Msg("transaction listener started")
}

// Stop shuts down the listener and waits for the loop to exit.
func (l *TransactionListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.log.Info().Msg("transaction listener stopped")
}

func (l *TransactionListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.log.Info().Msg("reconnecting to notification channel")
		}
	}
}

func (l *TransactionListener) connectAndListen(ctx context.Context) {
	listener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Debug().Msg("connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.log.Warn().Err(err).Msg("disconnected from notification channel")
		case pq.ListenerEventReconnected:
			l.log.Info().Msg("reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Error().Err(err).Msg("notification connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		l.log.Error().Err(err).Msg("failed to listen")
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-listener.Notify:
			if n == nil {
				// connection lost; pq re-establishes and we resubscribe
				return
			}
			l.handleNotification(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.log.Warn().Err(err).Msg("listener ping failed")
				}
			}()
		}
	}
}

// handleNotification loads the changed row and hands it to the sink.
// Events are dispatched in arrival order so a row's updates are never reordered.
// The loaded row can be newer than the notification, so the statuses the
// trigger recorded travel with the event.
func (l *TransactionListener) handleNotification(n *pq.Notification) {
	var payload Notification
	if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
		l.log.Error().Err(err).Msg("failed to parse notification payload")
		return
	}
	if payload.ID == "" {
		return
	}

	// The request that wrote the row may be gone by now.
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	tx, err := l.loader.GetByID(ctx, payload.ID)
	if err != nil {
		l.log.Error().Err(err).Str("transaction_id", payload.ID).Msg("failed to load notified transaction")
		return
	}
	if tx == nil {
		return
	}

	op := feed.OpUpdate
	if payload.Op == string(feed.OpInsert) {
		op = feed.OpInsert
	}

	l.sink.Publish(ctx, feed.Event{
		Op:          op,
		Status:      transaction.Status(payload.Status),
		PrevStatus:  transaction.Status(payload.PrevStatus),
		Transaction: tx,
	})
}
