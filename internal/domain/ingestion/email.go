package ingestion

import (
	"fmt"
	"strings"
)

// Email is an inbound message as received from a webhook or fetched from a mailbox.
type Email struct {
	MessageID string
	From      string
	Subject   string
	Text      string
	HTML      string
}

// Body returns the plain-text body, falling back to the HTML part rendered as text.
func (e Email) Body() string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	if e.HTML != "" {
		return HTMLToText(e.HTML)
	}
	return ""
}

// EncodeRaw renders an email into the raw_content stored on placeholder rows.
func EncodeRaw(e Email) string {
	return fmt.Sprintf("From: %s\nSubject: %s\n\n%s", oneLine(e.From), oneLine(e.Subject), e.Body())
}

// DecodeRaw parses raw_content written by EncodeRaw. Content without the
// header block is treated as body only.
func DecodeRaw(raw string) Email {
	head, body, found := strings.Cut(raw, "\n\n")
	if !found {
		return Email{Text: raw}
	}

	var e Email
	headerSeen := false
	for _, line := range strings.Split(head, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Email{Text: raw}
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "from":
			e.From = strings.TrimSpace(value)
			headerSeen = true
		case "subject":
			e.Subject = strings.TrimSpace(value)
			headerSeen = true
		default:
			return Email{Text: raw}
		}
	}
	if !headerSeen {
		return Email{Text: raw}
	}
	e.Text = body
	return e
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
