package gmail

import (
	"context"

	"payalert/internal/domain/company"
	"payalert/internal/domain/ingestion"
)

// CompanyStore resolves companies and their stored mailbox credentials.
// Implemented by company.Service.
type CompanyStore interface {
	Get(ctx context.Context, id string) (*company.Company, error)
	MailboxToken(c *company.Company) (string, error)
}

// Mailboxes opens company mailboxes whose unread search is limited to the
// company's allowed bank senders.
type Mailboxes struct {
	connector      *Connector
	companies      CompanyStore
	defaultSenders []string
}

func NewMailboxes(connector *Connector, companies CompanyStore, defaultSenders []string) *Mailboxes {
	return &Mailboxes{connector: connector, companies: companies, defaultSenders: defaultSenders}
}

// OpenMailbox opens a company mailbox with a caller-supplied access token.
func (m *Mailboxes) OpenMailbox(ctx context.Context, companyID, accessToken string) (ingestion.Mailbox, error) {
	c, err := m.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	mb, err := m.connector.WithAccessToken(ctx, accessToken, company.AllowedSenders(c, m.defaultSenders))
	if err != nil {
		return nil, err
	}
	return mb, nil
}

// OpenStored opens a company mailbox from its encrypted refresh token.
func (m *Mailboxes) OpenStored(ctx context.Context, c *company.Company) (ingestion.Mailbox, error) {
	token, err := m.companies.MailboxToken(c)
	if err != nil {
		return nil, err
	}
	mb, err := m.connector.WithRefreshToken(ctx, token, company.AllowedSenders(c, m.defaultSenders))
	if err != nil {
		return nil, err
	}
	return mb, nil
}
