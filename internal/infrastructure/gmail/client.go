package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"payalert/internal/domain/ingestion"
)

const user = "me"

// DefaultSubjectKeywords narrow the unread search to payment alerts.
var DefaultSubjectKeywords = []string{"credit", "alert", "payment", "received", "transfer"}

var ErrNoToken = errors.New("gmail token is required")

type Config struct {
	ClientID        string
	ClientSecret    string
	SubjectKeywords []string
	// Endpoint overrides the API base URL.
	Endpoint string
}

// Connector opens per-company Gmail mailboxes from OAuth credentials.
type Connector struct {
	oauth    *oauth2.Config
	keywords []string
	endpoint string
	log      zerolog.Logger
}

func NewConnector(cfg Config, log zerolog.Logger) *Connector {
	keywords := cfg.SubjectKeywords
	if len(keywords) == 0 {
		keywords = DefaultSubjectKeywords
	}
	return &Connector{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailapi.GmailModifyScope},
		},
		keywords: keywords,
		endpoint: cfg.Endpoint,
		log:      log.With().Str("component", "gmail").Logger(),
	}
}

// WithAccessToken opens a mailbox with a short-lived access token supplied by the caller.
func (c *Connector) WithAccessToken(ctx context.Context, accessToken string, senders []string) (*Client, error) {
	if accessToken == "" {
		return nil, ErrNoToken
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return c.open(ctx, ts, senders)
}

// WithRefreshToken opens a mailbox from a stored refresh token, minting access tokens as needed.
func (c *Connector) WithRefreshToken(ctx context.Context, refreshToken string, senders []string) (*Client, error) {
	if refreshToken == "" {
		return nil, ErrNoToken
	}
	if c.oauth.ClientID == "" {
		return nil, errors.New("gmail oauth client is not configured")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tracedHTTPClient())
	ts := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, TokenType: "Bearer"})
	return c.open(ctx, ts, senders)
}

func (c *Connector) open(ctx context.Context, ts oauth2.TokenSource, senders []string) (*Client, error) {
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	return newClient(ctx, httpClient, c.endpoint, BuildQuery(c.keywords, senders), c.log)
}

func tracedHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Client implements ingestion.Mailbox for one Gmail account.
type Client struct {
	svc   *gmailapi.Service
	query string
	log   zerolog.Logger
}

func newClient(ctx context.Context, httpClient *http.Client, endpoint, query string, log zerolog.Logger) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	return &Client{svc: svc, query: query, log: log}, nil
}

// BuildQuery renders the unread search: subject keywords, optionally restricted to sender domains.
func BuildQuery(keywords, senders []string) string {
	var b strings.Builder
	b.WriteString("is:unread")
	if len(keywords) > 0 {
		fmt.Fprintf(&b, " subject:(%s)", strings.Join(keywords, " OR "))
	}
	if len(senders) > 0 {
		fmt.Fprintf(&b, " from:(%s)", strings.Join(senders, " OR "))
	}
	return b.String()
}

func (c *Client) ListUnread(ctx context.Context, limit int) ([]string, error) {
	call := c.svc.Users.Messages.List(user).Q(c.query).Context(ctx)
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	c.log.Debug().Int("count", len(ids)).Msg("listed unread messages")
	return ids, nil
}

func (c *Client) Fetch(ctx context.Context, id string) (*ingestion.Email, error) {
	msg, err := c.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return toEmail(msg), nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, err := c.svc.Users.Messages.Modify(user, id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message %s read: %w", id, err)
	}
	return nil
}

// toEmail flattens a Gmail message. The RFC 5322 Message-Id is preferred as the
// dedupe key; the Gmail id is used when the header is missing.
func toEmail(msg *gmailapi.Message) *ingestion.Email {
	e := &ingestion.Email{}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				e.From = h.Value
			case "subject":
				e.Subject = h.Value
			case "message-id":
				e.MessageID = strings.TrimSpace(h.Value)
			}
		}
		collectBodies(msg.Payload, e)
	}

	if e.MessageID == "" {
		e.MessageID = "gmail:" + msg.Id
	}
	if e.Text == "" && e.HTML == "" {
		e.Text = msg.Snippet
	}
	return e
}

// collectBodies walks the MIME tree keeping the first text/plain and text/html parts.
func collectBodies(part *gmailapi.MessagePart, e *ingestion.Email) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain") && e.Text == "":
			e.Text = decodeBody(part.Body.Data)
		case strings.HasPrefix(part.MimeType, "text/html") && e.HTML == "":
			e.HTML = decodeBody(part.Body.Data)
		}
	}

	for _, p := range part.Parts {
		collectBodies(p, e)
	}
}

// decodeBody decodes Gmail's base64url body data, padded or not.
func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}
