package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"payalert/internal/domain/company"
	"payalert/internal/shared/logger"
)

type ContextKey string

const (
	CompanyKey ContextKey = "company"

	CompanyCodeHeader = "X-Company-Code"
	StaffPINHeader    = "X-Staff-Pin"
)

// CompanyAuthorizer checks a viewer's company code and staff PIN.
type CompanyAuthorizer interface {
	Authorize(ctx context.Context, code, pin string) (*company.Company, error)
}

// CompanyAccess admits dashboard and kiosk viewers of one company.
// GET requests may pass the credentials as company_code/staff_pin query
// parameters since browser EventSource cannot set headers.
func CompanyAccess(authz CompanyAuthorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.Header.Get(CompanyCodeHeader)
			pin := r.Header.Get(StaffPINHeader)
			if code == "" && pin == "" && r.Method == http.MethodGet {
				code = r.URL.Query().Get("company_code")
				pin = r.URL.Query().Get("staff_pin")
			}
			if code == "" || pin == "" {
				writeAuthError(w, http.StatusUnauthorized, "company code and staff PIN are required")
				return
			}

			c, err := authz.Authorize(r.Context(), code, pin)
			switch {
			case errors.Is(err, company.ErrInvalidCredentials):
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			case errors.Is(err, company.ErrSystemInactive):
				writeAuthError(w, http.StatusForbidden, err.Error())
				return
			case err != nil:
				logger.FromContext(r.Context()).Error().Err(err).Msg("company authorization failed")
				writeAuthError(w, http.StatusInternalServerError, "authorization unavailable")
				return
			}

			log := logger.FromContext(r.Context()).With().Str("company_id", c.ID).Logger()
			ctx := logger.WithContext(WithCompany(r.Context(), c), log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithCompany(ctx context.Context, c *company.Company) context.Context {
	return context.WithValue(ctx, CompanyKey, c)
}

func CompanyFromContext(ctx context.Context) (*company.Company, bool) {
	c, ok := ctx.Value(CompanyKey).(*company.Company)
	return c, ok && c != nil
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
