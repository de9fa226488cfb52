package http

import (
	"context"
	"net/http"
	"strings"

	"payalert/internal/domain/feed"
	"payalert/internal/shared/logger"
	"payalert/internal/shared/middleware"
)

const maxDeviceTokenLength = 4096

// TopicSubscriber registers device tokens on a push topic. Implemented by firebase.Client.
type TopicSubscriber interface {
	Subscribe(ctx context.Context, tokens []string, topic string) (int, error)
}

type DeviceHandler struct {
	topics TopicSubscriber
}

// NewDeviceHandler creates the device registration handler. topics may be nil
// when push notifications are not configured.
func NewDeviceHandler(topics TopicSubscriber) *DeviceHandler {
	return &DeviceHandler{topics: topics}
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

type RegisterDeviceResponse struct {
	Success bool   `json:"success"`
	Topic   string `json:"topic"`
}

// HandleRegisterDevice handles POST /api/devices
func (h *DeviceHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c, ok := middleware.CompanyFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.topics == nil {
		writeError(w, r, http.StatusInternalServerError, "push notifications are not configured")
		return
	}

	var req RegisterDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" || len(token) > maxDeviceTokenLength {
		writeError(w, r, http.StatusBadRequest, "a valid device token is required")
		return
	}

	topic := feed.CompanyTopic(c.ID)
	rejected, err := h.topics.Subscribe(r.Context(), []string{token}, topic)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to subscribe device")
		writeError(w, r, http.StatusInternalServerError, "failed to register device")
		return
	}
	if rejected > 0 {
		writeError(w, r, http.StatusBadRequest, "device token was rejected")
		return
	}

	writeJSON(w, r, http.StatusCreated, RegisterDeviceResponse{Success: true, Topic: topic})
}
