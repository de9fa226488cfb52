package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"payalert/internal/domain/company"
)

const (
	companyCodeConstraint = "companies_company_code_key"

	companyColumns = `id, name, company_code, staff_pin_hash, system_active, connected_banks,
		mailbox_refresh_token, created_at, updated_at`
)

type CompanyRepository struct {
	db *DB
}

func NewCompanyRepository(db *DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func scanCompany(row rowScanner) (*company.Company, error) {
	var c company.Company
	var banks pq.StringArray
	var token sql.NullString

	err := row.Scan(
		&c.ID, &c.Name, &c.CompanyCode, &c.StaffPINHash, &c.SystemActive, &banks,
		&token, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ConnectedBanks = []string(banks)
	c.MailboxToken = token.String
	return &c, nil
}

func (r *CompanyRepository) Create(ctx context.Context, rec company.CreateRecord) (*company.Company, error) {
	query := `
		INSERT INTO companies (id, name, company_code, staff_pin_hash, connected_banks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + companyColumns

	c, err := scanCompany(r.db.QueryRowContext(
		ctx, query,
		rec.ID, rec.Name, rec.CompanyCode, rec.StaffPINHash, pq.Array(company.NormalizeBanks(rec.ConnectedBanks)),
	))
	if isUniqueViolation(err, companyCodeConstraint) {
		return nil, company.ErrCodeTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	return c, nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*company.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
}

func (r *CompanyRepository) GetByCode(ctx context.Context, code string) (*company.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE company_code = $1`, company.NormalizeCode(code))
}

func (r *CompanyRepository) getOne(ctx context.Context, query string, arg any) (*company.Company, error) {
	c, err := scanCompany(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

func (r *CompanyRepository) ListPollable(ctx context.Context) ([]*company.Company, error) {
	query := `
		SELECT ` + companyColumns + `
		FROM companies
		WHERE system_active AND mailbox_refresh_token IS NOT NULL AND mailbox_refresh_token <> ''
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pollable companies: %w", err)
	}
	defer rows.Close()

	var companies []*company.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}
	return companies, nil
}

func (r *CompanyRepository) SetMailboxToken(ctx context.Context, id, encryptedToken string) error {
	var token sql.NullString
	if encryptedToken != "" {
		token = sql.NullString{String: encryptedToken, Valid: true}
	}
	return r.update(ctx, `UPDATE companies SET mailbox_refresh_token = $2, updated_at = NOW() WHERE id = $1`, id, token)
}

func (r *CompanyRepository) SetSystemActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, `UPDATE companies SET system_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *CompanyRepository) update(ctx context.Context, query, id string, value any) error {
	result, err := r.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return company.ErrNotFound
	}
	return nil
}
