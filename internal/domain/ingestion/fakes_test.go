package ingestion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"payalert/internal/domain/company"
	"payalert/internal/domain/transaction"
)

// memRepo is an in-memory transaction store enforcing message_id uniqueness.
type memRepo struct {
	mu        sync.Mutex
	rows      map[string]*transaction.Transaction
	order     []string
	createErr func(params transaction.CreateTransactionParams) error
	updateErr func(id string) error
	now       time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]*transaction.Transaction{}, now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (r *memRepo) Create(ctx context.Context, p transaction.CreateTransactionParams) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		if err := r.createErr(p); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.MessageID != nil {
		for _, row := range r.rows {
			if row.MessageID != nil && *row.MessageID == *p.MessageID {
				return nil, transaction.ErrDuplicateMessage
			}
		}
	}
	r.now = r.now.Add(time.Second)
	tx := &transaction.Transaction{
		ID: p.ID, CompanyID: p.CompanyID, Amount: p.Amount, SenderName: p.SenderName,
		BankSource: p.BankSource, Status: p.Status, MessageID: p.MessageID, RawContent: p.RawContent,
		CreatedAt: r.now, UpdatedAt: r.now,
	}
	r.rows[p.ID] = tx
	r.order = append(r.order, p.ID)
	cp := *tx
	return &cp, nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.rows[id]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, nil
}

func (r *memRepo) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.MessageID != nil && *row.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) ListByCompany(ctx context.Context, companyID string, since time.Time, limit int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, id := range r.order {
		row := r.rows[id]
		if row.CompanyID == companyID && !row.CreatedAt.Before(since) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) ListByStatus(ctx context.Context, companyID string, status transaction.Status, limit int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, id := range r.order {
		row := r.rows[id]
		if row.CompanyID == companyID && row.Status == status {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) Transition(ctx context.Context, id string, from, to transaction.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		if err := r.updateErr(id); err != nil {
			return false, err
		}
	}
	if err := transaction.ValidateTransition(from, to); err != nil {
		return false, err
	}
	row, ok := r.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	row.Status = to
	return true, nil
}

func (r *memRepo) Complete(ctx context.Context, id string, p transaction.CompleteParams) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	if err := transaction.ValidateTransition(row.Status, transaction.StatusCompleted); err != nil {
		return nil, err
	}
	row.Amount, row.SenderName, row.BankSource = p.Amount, p.SenderName, p.BankSource
	row.Status = transaction.StatusCompleted
	cp := *row
	return &cp, nil
}

func (r *memRepo) Fail(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return transaction.ErrNotFound
	}
	if err := transaction.ValidateTransition(row.Status, transaction.StatusFailed); err != nil {
		return err
	}
	row.Status = transaction.StatusFailed
	return nil
}

func (r *memRepo) UpdateDescription(ctx context.Context, id, companyID string, description *string) (*transaction.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (r *memRepo) FailStale(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memRepo) get(id string) *transaction.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

type staticCompanies map[string]*company.Company

func (s staticCompanies) Get(ctx context.Context, id string) (*company.Company, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, company.ErrNotFound
}

// scriptedModel answers prompts by matching a substring of the body.
type scriptedModel struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   int
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	for key, reply := range m.replies {
		if strings.Contains(prompt, key) {
			return reply, nil
		}
	}
	return "null", nil
}

type fakeMailbox struct {
	messages map[string]*Email
	ids      []string
	read     map[string]bool
	listErr  error
	fetchErr map[string]error
	limit    int
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{messages: map[string]*Email{}, read: map[string]bool{}, fetchErr: map[string]error{}}
}

func (f *fakeMailbox) add(id string, e Email) {
	f.messages[id] = &e
	f.ids = append(f.ids, id)
}

func (f *fakeMailbox) ListUnread(ctx context.Context, limit int) ([]string, error) {
	f.limit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for _, id := range f.ids {
		if !f.read[id] {
			out = append(out, id)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMailbox) Fetch(ctx context.Context, id string) (*Email, error) {
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	e := *f.messages[id]
	return &e, nil
}

func (f *fakeMailbox) MarkRead(ctx context.Context, id string) error {
	f.read[id] = true
	return nil
}
