package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payalert/internal/domain/transaction"
)

const (
	messageIDConstraint = "transactions_message_id_key"

	transactionColumns = `id, company_id, amount, sender_name, bank_source, status,
		message_id, item_description, raw_content, created_at, updated_at`
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var messageID, description sql.NullString

	err := row.Scan(
		&tx.ID, &tx.CompanyID, &tx.Amount, &tx.SenderName, &tx.BankSource, &tx.Status,
		&messageID, &description, &tx.RawContent, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if messageID.Valid {
		tx.MessageID = &messageID.String
	}
	if description.Valid {
		tx.ItemDescription = &description.String
	}
	return &tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateTransactionParams) (*transaction.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO transactions (id, company_id, amount, sender_name, bank_source, status, message_id, raw_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRowContext(
		ctx, query,
		params.ID, params.CompanyID, params.Amount, params.SenderName,
		transaction.NormalizeBank(params.BankSource), params.Status, params.MessageID, params.RawContent,
	))
	if isUniqueViolation(err, messageIDConstraint) {
		return nil, transaction.ErrDuplicateMessage
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return tx, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE message_id = $1)`, messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message id: %w", err)
	}
	return exists, nil
}

func (r *TransactionRepository) ListByCompany(ctx context.Context, companyID string, since time.Time, limit int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE company_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, companyID, since, limitArg(limit))
}

// ListByStatus returns rows oldest first so pending work drains in arrival order.
// A limit <= 0 returns every match.
func (r *TransactionRepository) ListByStatus(ctx context.Context, companyID string, status transaction.Status, limit int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE company_id = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	return r.list(ctx, query, companyID, status, limitArg(limit))
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// limitArg maps non-positive limits to NULL, which Postgres treats as no limit.
func limitArg(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

func (r *TransactionRepository) Transition(ctx context.Context, id string, from, to transaction.Status) (bool, error) {
	if err := transaction.ValidateTransition(from, to); err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *TransactionRepository) Complete(ctx context.Context, id string, params transaction.CompleteParams) (*transaction.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE transactions
		SET amount = $2, sender_name = $3, bank_source = $4, status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status IN ('new', 'processing')
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRowContext(
		ctx, query, id, params.Amount.Round(2), params.SenderName, transaction.NormalizeBank(params.BankSource),
	))
	if err == sql.ErrNoRows {
		return nil, r.whyUnchanged(ctx, id, transaction.StatusCompleted)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) Fail(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status IN ('new', 'processing')
	`, id)
	if err != nil {
		return fmt.Errorf("failed to fail transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return r.whyUnchanged(ctx, id, transaction.StatusFailed)
	}
	return nil
}

// whyUnchanged explains a conditional update that matched no row.
func (r *TransactionRepository) whyUnchanged(ctx context.Context, id string, to transaction.Status) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return transaction.ErrNotFound
	}
	return transaction.ValidateTransition(current.Status, to)
}

func (r *TransactionRepository) UpdateDescription(ctx context.Context, id, companyID string, description *string) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions SET item_description = $3, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, companyID, description))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update description: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) FailStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET status = 'failed', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale transactions: %w", err)
	}
	return result.RowsAffected()
}
