package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrDuplicateMessage   = errors.New("transaction already recorded for message")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrAmountTooLarge     = errors.New("amount exceeds the storable maximum")
	ErrMissingSender      = errors.New("sender name is required")
	ErrDescriptionTooLong = errors.New("item description is too long")
)

// UnknownBank is stored when the bank could not be determined.
const UnknownBank = "Unknown"

// MaxDescriptionLength bounds the viewer annotation, in characters.
const MaxDescriptionLength = 500

// MaxAmount is the largest value the amount column (numeric(14,2)) holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

type Transaction struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	Amount          decimal.Decimal `json:"amount"`
	SenderName      string          `json:"sender_name"`
	BankSource      string          `json:"bank_source"`
	Status          Status          `json:"status"`
	MessageID       *string         `json:"message_id,omitempty"`
	ItemDescription *string         `json:"item_description,omitempty"`
	RawContent      string          `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CreateTransactionParams struct {
	ID         string
	CompanyID  string
	Amount     decimal.Decimal
	SenderName string
	BankSource string
	Status     Status
	MessageID  *string
	RawContent string
}

// Validate checks the invariants that must hold before a row is inserted.
func (p CreateTransactionParams) Validate() error {
	if p.ID == "" {
		return errors.New("transaction id is required")
	}
	if p.CompanyID == "" {
		return errors.New("company id is required")
	}
	if !p.Status.Valid() {
		return errors.New("valid status is required")
	}
	if p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if p.Status == StatusCompleted {
		return CompleteParams{Amount: p.Amount, SenderName: p.SenderName, BankSource: p.BankSource}.Validate()
	}
	return nil
}

// CompleteParams carries the extracted fields written when a row reaches completed.
type CompleteParams struct {
	Amount     decimal.Decimal
	SenderName string
	BankSource string
}

func (p CompleteParams) Validate() error {
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	if strings.TrimSpace(p.SenderName) == "" {
		return ErrMissingSender
	}
	return nil
}

// NormalizeBank returns the bank label or UnknownBank when empty.
func NormalizeBank(bank string) string {
	bank = strings.TrimSpace(bank)
	if bank == "" {
		return UnknownBank
	}
	return bank
}

// NormalizeMessageID trims the id and maps empty values to nil.
func NormalizeMessageID(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}
