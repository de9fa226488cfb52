package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"payalert/internal/shared/auth"
)

// TokenCipher encrypts mailbox credentials at rest.
// Implemented by crypto.Encryptor.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service contains the business logic for company configuration and viewer access
type Service struct {
	repo   Repository
	cipher TokenCipher
	log    zerolog.Logger
}

// NewService creates a new company service. cipher may be nil when no encryption key is configured;
// mailbox connection is then unavailable.
func NewService(repo Repository, cipher TokenCipher, log zerolog.Logger) *Service {
	return &Service{repo: repo, cipher: cipher, log: log.With().Str("component", "company").Logger()}
}

func (s *Service) Create(ctx context.Context, params CreateCompanyParams) (*Company, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := auth.ValidatePIN(params.StaffPIN); err != nil {
		return nil, err
	}

	code := NormalizeCode(params.CompanyCode)
	existing, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check company code: %w", err)
	}
	if existing != nil {
		return nil, ErrCodeTaken
	}

	hash, err := auth.HashPIN(params.StaffPIN)
	if err != nil {
		return nil, fmt.Errorf("failed to hash staff PIN: %w", err)
	}

	c, err := s.repo.Create(ctx, CreateRecord{
		ID:             uuid.NewString(),
		Name:           params.Name,
		CompanyCode:    code,
		StaffPINHash:   hash,
		ConnectedBanks: NormalizeBanks(params.ConnectedBanks),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("company_id", c.ID).Str("company_code", c.CompanyCode).Msg("company created")
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Company, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

// Authorize resolves a viewer's company from its code and staff PIN.
// Unknown codes and wrong PINs return the same error.
func (s *Service) Authorize(ctx context.Context, code, pin string) (*Company, error) {
	code = NormalizeCode(code)
	if code == "" || pin == "" {
		return nil, ErrInvalidCredentials
	}

	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up company: %w", err)
	}
	if c == nil {
		return nil, ErrInvalidCredentials
	}
	if err := auth.VerifyPIN(c.StaffPINHash, pin); err != nil {
		s.log.Warn().Str("company_code", code).Msg("staff PIN rejected")
		return nil, ErrInvalidCredentials
	}
	if !c.SystemActive {
		return nil, ErrSystemInactive
	}
	return c, nil
}

// ConnectMailbox stores an encrypted mailbox refresh token for scheduled polling.
func (s *Service) ConnectMailbox(ctx context.Context, id, refreshToken string) error {
	if s.cipher == nil {
		return ErrEncryptionNotConfigured
	}
	if refreshToken == "" {
		return errors.New("refresh token is required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	encrypted, err := s.cipher.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt mailbox token: %w", err)
	}
	if err := s.repo.SetMailboxToken(ctx, id, encrypted); err != nil {
		return fmt.Errorf("failed to store mailbox token: %w", err)
	}

	s.log.Info().Str("company_id", id).Msg("mailbox connected")
	return nil
}

// MailboxToken returns the decrypted refresh token of a company.
func (s *Service) MailboxToken(c *Company) (string, error) {
	if !c.HasMailbox() {
		return "", ErrNoMailbox
	}
	if s.cipher == nil {
		return "", ErrEncryptionNotConfigured
	}
	token, err := s.cipher.Decrypt(c.MailboxToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt mailbox token: %w", err)
	}
	return token, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.SetSystemActive(ctx, id, active)
}

func (s *Service) ListPollable(ctx context.Context) ([]*Company, error) {
	return s.repo.ListPollable(ctx)
}

// AllowedSenders returns the sender domains accepted for the company.
// Connected banks replace the global defaults when set.
func AllowedSenders(c *Company, defaults []string) []string {
	if c != nil && len(c.ConnectedBanks) > 0 {
		return c.ConnectedBanks
	}
	return defaults
}
