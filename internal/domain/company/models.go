package company

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound                = errors.New("company not found")
	ErrInvalidCredentials      = errors.New("invalid company code or staff PIN")
	ErrSystemInactive          = errors.New("system is not active for this company")
	ErrCodeTaken               = errors.New("company code already in use")
	ErrEncryptionNotConfigured = errors.New("encryption key is not configured")
	ErrNoMailbox               = errors.New("company has no connected mailbox")
)

type Company struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CompanyCode    string    `json:"company_code"`
	StaffPINHash   string    `json:"-"`
	SystemActive   bool      `json:"system_active"`
	ConnectedBanks []string  `json:"connected_banks"`
	MailboxToken   string    `json:"-"` // encrypted refresh token
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasMailbox reports whether a mailbox refresh token is stored.
func (c *Company) HasMailbox() bool {
	return c.MailboxToken != ""
}

type CreateCompanyParams struct {
	Name           string
	CompanyCode    string
	StaffPIN       string
	ConnectedBanks []string
}

func (p CreateCompanyParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("company name is required")
	}
	if NormalizeCode(p.CompanyCode) == "" {
		return errors.New("company code is required")
	}
	return nil
}

// CreateRecord is what the repository persists; the PIN is already hashed.
type CreateRecord struct {
	ID             string
	Name           string
	CompanyCode    string
	StaffPINHash   string
	ConnectedBanks []string
}

// NormalizeCode upper-cases and trims a company code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeBanks lower-cases, trims and de-duplicates bank sender domains.
func NormalizeBanks(banks []string) []string {
	seen := make(map[string]bool, len(banks))
	out := make([]string, 0, len(banks))
	for _, b := range banks {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}
