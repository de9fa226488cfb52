package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"dashboard.payalert.ng", " localhost "}

	tests := map[string]bool{
		"https://dashboard.payalert.ng":       true,
		"https://Dashboard.PayAlert.ng:8443":  true,
		"http://localhost:5173":               true,
		"https://payalert.ng":                 false,
		"https://kiosk.dashboard.payalert.ng": false,
		"://invalid":                          false,
		"null":                                false,
	}

	for origin, want := range tests {
		if got := isOriginAllowed(origin, allowed); got != want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestCORS(t *testing.T) {
	dashboard := []string{"dashboard.payalert.ng"}

	tests := []struct {
		name        string
		allowed     []string
		method      string
		path        string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantNext    bool
		credentials bool
	}{
		{
			name:       "open when no hosts configured",
			method:     http.MethodGet,
			path:       "/api/transactions/",
			origin:     "https://anything.test",
			wantStatus: http.StatusOK,
			wantOrigin: "*",
			wantNext:   true,
		},
		{
			name:        "dashboard origin echoed with credentials",
			allowed:     dashboard,
			method:      http.MethodGet,
			path:        "/api/transactions/",
			origin:      "https://dashboard.payalert.ng",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://dashboard.payalert.ng",
			wantNext:    true,
			credentials: true,
		},
		{
			name:       "foreign origin rejected",
			allowed:    dashboard,
			method:     http.MethodPatch,
			path:       "/api/transactions/tx-1",
			origin:     "https://evil.test",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no origin header passes through",
			allowed:    dashboard,
			method:     http.MethodGet,
			path:       "/health",
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "ingest webhooks ignore origin rules",
			allowed:    dashboard,
			method:     http.MethodPost,
			path:       "/api/ingest/email",
			origin:     "https://mail-forwarder.test",
			wantStatus: http.StatusOK,
			wantOrigin: "*",
			wantNext:   true,
		},
		{
			name:        "preflight short-circuits",
			allowed:     dashboard,
			method:      http.MethodOptions,
			path:        "/api/transactions/tx-1",
			origin:      "https://dashboard.payalert.ng",
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://dashboard.payalert.ng",
			credentials: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.credentials {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.credentials)
			}
		})
	}
}

func TestCORS_AllowsViewerAndWebhookHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions/", nil)
	rr := httptest.NewRecorder()
	CORS(nil)(next).ServeHTTP(rr, req)

	got := rr.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{CompanyCodeHeader, StaffPINHeader, "X-Webhook-Secret"} {
		if !strings.Contains(got, h) {
			t.Errorf("Allow-Headers %q missing %s", got, h)
		}
	}
	if methods := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, http.MethodPatch) {
		t.Errorf("Allow-Methods %q missing PATCH", methods)
	}
}
