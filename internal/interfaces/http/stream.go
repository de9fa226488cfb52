package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payalert/internal/domain/feed"
	"payalert/internal/shared/logger"
	"payalert/internal/shared/middleware"
)

const defaultHeartbeat = 25 * time.Second

// Subscriber hands out per-company change feeds. Implemented by feed.Broker.
type Subscriber interface {
	Subscribe(companyID string) (<-chan feed.Event, func())
}

type StreamHandler struct {
	broker    Subscriber
	heartbeat time.Duration
}

func NewStreamHandler(broker Subscriber, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{broker: broker, heartbeat: heartbeat}
}

type streamEvent struct {
	Op          feed.Op             `json:"op"`
	Transaction TransactionResponse `json:"transaction"`
}

// HandleStream handles GET /api/transactions/stream as Server-Sent Events.
// Each insert or update of a company transaction is sent as a "transaction" event.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c, ok := middleware.CompanyFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	rc := http.NewResponseController(w)
	// the server write timeout would cut long-lived streams
	_ = rc.SetWriteDeadline(time.Time{})

	events, cancel := h.broker.Subscribe(c.ID)
	defer cancel()

	log := logger.FromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, "retry: 5000\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		log.Error().Err(err).Msg("streaming not supported")
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Transaction == nil {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				log.Debug().Err(err).Msg("stream closed")
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, ev feed.Event) error {
	data, err := json.Marshal(streamEvent{Op: ev.Op, Transaction: toTransactionResponse(ev.Transaction)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: transaction\ndata: %s\n\n", ev.Transaction.ID, data)
	return err
}
