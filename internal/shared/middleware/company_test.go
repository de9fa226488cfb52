package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"payalert/internal/domain/company"
)

type MockAuthorizer struct {
	AuthorizeFunc func(ctx context.Context, code, pin string) (*company.Company, error)
}

func (m *MockAuthorizer) Authorize(ctx context.Context, code, pin string) (*company.Company, error) {
	return m.AuthorizeFunc(ctx, code, pin)
}

func TestCompanyAccess(t *testing.T) {
	authz := &MockAuthorizer{
		AuthorizeFunc: func(ctx context.Context, code, pin string) (*company.Company, error) {
			switch {
			case code == "SHOP1" && pin == "1234":
				return &company.Company{ID: "c1", CompanyCode: "SHOP1", SystemActive: true}, nil
			case code == "SHOP2" && pin == "1234":
				return nil, company.ErrSystemInactive
			case code == "BROKEN":
				return nil, errors.New("db down")
			default:
				return nil, company.ErrInvalidCredentials
			}
		},
	}

	tests := []struct {
		name           string
		method         string
		target         string
		setupRequest   func(r *http.Request)
		expectedStatus int
		expectCompany  bool
	}{
		{
			name:   "valid headers",
			method: http.MethodGet,
			target: "/api/transactions/",
			setupRequest: func(r *http.Request) {
				r.Header.Set(CompanyCodeHeader, "SHOP1")
				r.Header.Set(StaffPINHeader, "1234")
			},
			expectedStatus: http.StatusOK,
			expectCompany:  true,
		},
		{
			name:           "query credentials on GET",
			method:         http.MethodGet,
			target:         "/api/transactions/stream?company_code=SHOP1&staff_pin=1234",
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusOK,
			expectCompany:  true,
		},
		{
			name:           "query credentials ignored on PATCH",
			method:         http.MethodPatch,
			target:         "/api/transactions/t1?company_code=SHOP1&staff_pin=1234",
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing credentials",
			method:         http.MethodGet,
			target:         "/api/transactions/",
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "wrong pin",
			method: http.MethodGet,
			target: "/api/transactions/",
			setupRequest: func(r *http.Request) {
				r.Header.Set(CompanyCodeHeader, "SHOP1")
				r.Header.Set(StaffPINHeader, "0000")
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "inactive system",
			method: http.MethodGet,
			target: "/api/transactions/",
			setupRequest: func(r *http.Request) {
				r.Header.Set(CompanyCodeHeader, "SHOP2")
				r.Header.Set(StaffPINHeader, "1234")
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "authorizer failure",
			method: http.MethodGet,
			target: "/api/transactions/",
			setupRequest: func(r *http.Request) {
				r.Header.Set(CompanyCodeHeader, "BROKEN")
				r.Header.Set(StaffPINHeader, "1234")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCompany bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c, ok := CompanyFromContext(r.Context())
				gotCompany = ok && c.ID == "c1"
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.target, nil)
			tt.setupRequest(req)
			rr := httptest.NewRecorder()

			CompanyAccess(authz)(next).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if gotCompany != tt.expectCompany {
				t.Errorf("company in context = %v, want %v", gotCompany, tt.expectCompany)
			}
		})
	}
}

func TestCompanyFromContext_Empty(t *testing.T) {
	if _, ok := CompanyFromContext(context.Background()); ok {
		t.Error("expected no company in empty context")
	}
}
