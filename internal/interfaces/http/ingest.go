package http

import (
	"context"
	"errors"
	"net/http"

	"payalert/internal/domain/company"
	"payalert/internal/domain/ingestion"
	"payalert/internal/shared/auth"
	"payalert/internal/shared/logger"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// EmailIngester runs the direct (single email) pipeline.
type EmailIngester interface {
	IngestEmail(ctx context.Context, req ingestion.IngestRequest) (*ingestion.Result, error)
}

// BatchRunner runs the two-phase pipeline.
type BatchRunner interface {
	PollMailbox(ctx context.Context, companyID string, mb ingestion.Mailbox) (ingestion.BatchResult, error)
	ProcessPending(ctx context.Context, companyID string) (ingestion.BatchResult, error)
}

// MailboxOpener opens a company's provider mailbox with a caller-supplied access token.
type MailboxOpener interface {
	OpenMailbox(ctx context.Context, companyID, accessToken string) (ingestion.Mailbox, error)
}

type IngestHandler struct {
	ingester  EmailIngester
	batches   BatchRunner
	mailboxes MailboxOpener
	secret    string
}

// NewIngestHandler creates the ingestion trigger handler. mailboxes may be nil,
// in which case poll requests carrying an access token are rejected.
func NewIngestHandler(ingester EmailIngester, batches BatchRunner, mailboxes MailboxOpener, secret string) *IngestHandler {
	return &IngestHandler{
		ingester:  ingester,
		batches:   batches,
		mailboxes: mailboxes,
		secret:    secret,
	}
}

type IngestEmailRequest struct {
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Text      string `json:"text,omitempty"`
	HTML      string `json:"html,omitempty"`
	CompanyID string `json:"company_id"`
	MessageID string `json:"message_id,omitempty"`
}

type IngestPollRequest struct {
	CompanyID   string `json:"company_id"`
	AccessToken string `json:"access_token,omitempty"`
}

type ingestSuccessResponse struct {
	Success bool    `json:"success"`
	Amount  float64 `json:"amount"`
	Sender  string  `json:"sender"`
}

type ingestSkippedResponse struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
	From    string `json:"from,omitempty"`
}

type ingestNotProcessedResponse struct {
	Processed bool   `json:"processed"`
	Reason    string `json:"reason"`
}

type BatchResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
}

// HandleEmail handles POST /api/ingest/email
func (h *IngestHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r) {
		return
	}

	var req IngestEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CompanyID == "" {
		writeError(w, r, http.StatusBadRequest, ingestion.ErrMissingCompanyID.Error())
		return
	}

	result, err := h.ingester.IngestEmail(r.Context(), ingestion.IngestRequest{
		CompanyID: req.CompanyID,
		Email: ingestion.Email{
			MessageID: req.MessageID,
			From:      req.From,
			Subject:   req.Subject,
			Text:      req.Text,
			HTML:      req.HTML,
		},
	})
	if err != nil {
		h.writeIngestError(w, r, err)
		return
	}

	switch result.Outcome {
	case ingestion.OutcomeCompleted:
		writeJSON(w, r, http.StatusOK, ingestSuccessResponse{
			Success: true,
			Amount:  result.Transaction.Amount.InexactFloat64(),
			Sender:  result.Transaction.SenderName,
		})
	case ingestion.OutcomeSenderNotAllowed:
		writeJSON(w, r, http.StatusOK, ingestSkippedResponse{Skipped: true, Reason: string(result.Outcome), From: result.From})
	case ingestion.OutcomeDuplicate:
		writeJSON(w, r, http.StatusOK, ingestSkippedResponse{Skipped: true, Reason: string(result.Outcome)})
	default:
		writeJSON(w, r, http.StatusOK, ingestNotProcessedResponse{Processed: false, Reason: string(result.Outcome)})
	}
}

// HandlePoll handles POST /api/ingest/poll. With an access token the company's
// mailbox is polled; without one, stored placeholder rows are reprocessed.
func (h *IngestHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r) {
		return
	}

	var req IngestPollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.CompanyID == "" {
		writeError(w, r, http.StatusBadRequest, ingestion.ErrMissingCompanyID.Error())
		return
	}

	var (
		result ingestion.BatchResult
		err    error
	)
	if req.AccessToken != "" {
		if h.mailboxes == nil {
			writeError(w, r, http.StatusInternalServerError, "mailbox access is not configured")
			return
		}
		var mb ingestion.Mailbox
		mb, err = h.mailboxes.OpenMailbox(r.Context(), req.CompanyID, req.AccessToken)
		if err == nil {
			result, err = h.batches.PollMailbox(r.Context(), req.CompanyID, mb)
		}
	} else {
		result, err = h.batches.ProcessPending(r.Context(), req.CompanyID)
	}
	if err != nil {
		h.writeIngestError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, BatchResponse{
		Success:   true,
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
	})
}

// authorize checks the shared webhook secret. An unset secret rejects every call.
func (h *IngestHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.secret == "" {
		writeError(w, r, http.StatusInternalServerError, "webhook secret is not configured")
		return false
	}
	if !auth.SecretMatches(h.secret, r.Header.Get(WebhookSecretHeader)) {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func (h *IngestHandler) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingestion.ErrMissingCompanyID):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, company.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("ingestion failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}
