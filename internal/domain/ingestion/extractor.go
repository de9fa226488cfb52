package ingestion

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"payalert/internal/domain/transaction"
)

// DefaultBodyLimit bounds how much of an email body is sent to the model.
const DefaultBodyLimit = 3000

//go:embed prompts/extract.tmpl
var promptFS embed.FS

var promptTemplate = template.Must(template.ParseFS(promptFS, "prompts/extract.tmpl"))

var errNoPayment = errors.New("model reported no payment")

// Model generates a completion for a prompt. Implemented by gemini.Client.
// Implementations must run deterministically (temperature 0) with a bounded output budget.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extraction is a validated payment record pulled from an email.
type Extraction struct {
	Amount     decimal.Decimal
	SenderName string
	BankSource string
}

func (x *Extraction) completeParams() transaction.CompleteParams {
	return transaction.CompleteParams{Amount: x.Amount, SenderName: x.SenderName, BankSource: x.BankSource}
}

// Extractor turns raw email text into an Extraction using a language model.
type Extractor struct {
	model     Model
	bodyLimit int
	log       zerolog.Logger
}

func NewExtractor(model Model, bodyLimit int, log zerolog.Logger) *Extractor {
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}
	return &Extractor{
		model:     model,
		bodyLimit: bodyLimit,
		log:       log.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns the payment found in the email, or nil when there is none.
// Model failures, malformed output and failed validation all yield nil.
func (e *Extractor) Extract(ctx context.Context, email Email) *Extraction {
	prompt, err := e.BuildPrompt(email)
	if err != nil {
		e.log.Error().Err(err).Msg("failed to build extraction prompt")
		return nil
	}

	start := time.Now()
	raw, err := e.model.Generate(ctx, prompt)
	extractionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		extractionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "model_error")))
		e.log.Warn().Err(err).Str("message_id", email.MessageID).Msg("model call failed")
		return nil
	}

	ext, err := decodeExtraction(raw)
	if err != nil {
		result := "invalid"
		if errors.Is(err, errNoPayment) {
			result = "none"
		}
		extractionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
		e.log.Debug().Err(err).Str("message_id", email.MessageID).Msg("no extraction")
		return nil
	}

	extractionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	return ext
}

// BuildPrompt renders the fixed extraction prompt with a truncated body.
func (e *Extractor) BuildPrompt(email Email) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Subject string
		From    string
		Body    string
	}{
		Subject: oneLine(email.Subject),
		From:    oneLine(email.From),
		Body:    truncateRunes(strings.TrimSpace(email.Body()), e.bodyLimit),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

type extractionPayload struct {
	Amount     json.RawMessage `json:"amount"`
	SenderName *string         `json:"sender_name"`
	BankSource *string         `json:"bank_source"`
}

// decodeExtraction strictly decodes and validates model output.
func decodeExtraction(raw string) (*Extraction, error) {
	s := cleanModelJSON(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, errNoPayment
	}

	dec := json.NewDecoder(strings.NewReader(s))
	var p extractionPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing content after JSON object")
	}

	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	sender := ""
	if p.SenderName != nil {
		sender = strings.TrimSpace(*p.SenderName)
	}
	bank := ""
	if p.BankSource != nil {
		bank = *p.BankSource
	}

	// Validate what will be stored: sub-kobo amounts round to zero.
	ext := &Extraction{
		Amount:     amount.Round(2),
		SenderName: sender,
		BankSource: transaction.NormalizeBank(bank),
	}
	if err := ext.completeParams().Validate(); err != nil {
		return nil, err
	}
	return ext, nil
}

// parseAmount accepts only a JSON number literal.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, errors.New("amount is missing")
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return decimal.Zero, fmt.Errorf("amount is not a number: %s", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount: %w", err)
	}
	return d, nil
}

// cleanModelJSON strips Markdown code fences the model may wrap around its answer.
func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		lang := strings.TrimSpace(s[:nl])
		if lang == "" || !strings.ContainsAny(lang, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
