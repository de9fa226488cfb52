package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MockTopicSubscriber implements TopicSubscriber for testing
type MockTopicSubscriber struct {
	SubscribeFunc func(ctx context.Context, tokens []string, topic string) (int, error)
}

func (m *MockTopicSubscriber) Subscribe(ctx context.Context, tokens []string, topic string) (int, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, tokens, topic)
	}
	return 0, nil
}

func TestHandleRegisterDevice(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		subscribe      func(ctx context.Context, tokens []string, topic string) (int, error)
		expectedStatus int
	}{
		{
			name: "Success",
			body: `{"token":"fcm-token-1"}`,
			subscribe: func(ctx context.Context, tokens []string, topic string) (int, error) {
				if len(tokens) != 1 || tokens[0] != "fcm-token-1" {
					t.Errorf("tokens = %v", tokens)
				}
				if topic != "company-company-1" {
					t.Errorf("topic = %q", topic)
				}
				return 0, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Empty Token",
			body:           `{"token":"   "}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Oversized Token",
			body:           `{"token":"` + strings.Repeat("a", maxDeviceTokenLength+1) + `"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Rejected Token",
			body: `{"token":"stale"}`,
			subscribe: func(ctx context.Context, tokens []string, topic string) (int, error) {
				return 1, nil
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "FCM Error",
			body: `{"token":"fcm-token-1"}`,
			subscribe: func(ctx context.Context, tokens []string, topic string) (int, error) {
				return 0, errors.New("unavailable")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewDeviceHandler(&MockTopicSubscriber{SubscribeFunc: tt.subscribe})

			req := httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			handler.HandleRegisterDevice(rr, withCompany(req))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated {
				var resp RegisterDeviceResponse
				json.NewDecoder(rr.Body).Decode(&resp)
				if !resp.Success || resp.Topic != "company-company-1" {
					t.Errorf("response = %+v", resp)
				}
			}
		})
	}
}

func TestHandleRegisterDevice_NotConfigured(t *testing.T) {
	handler := NewDeviceHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader(`{"token":"t"}`))
	rr := httptest.NewRecorder()
	handler.HandleRegisterDevice(rr, withCompany(req))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}
