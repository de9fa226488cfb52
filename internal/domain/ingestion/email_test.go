package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRaw(t *testing.T) {
	in := Email{
		From:    "GTBank <alerts@gtbank.com>",
		Subject: "Credit\nAlert",
		Text:    "Acct: ***123\n\nAmt: NGN5,000.00 CR\nDesc: TRF FROM JOHN DOE",
	}

	raw := EncodeRaw(in)
	out := DecodeRaw(raw)

	assert.Equal(t, "GTBank <alerts@gtbank.com>", out.From)
	assert.Equal(t, "Credit Alert", out.Subject)
	assert.Equal(t, in.Text, out.Text)
}

func TestDecodeRaw_BodyOnly(t *testing.T) {
	tests := []string{
		"just some text",
		"Dear customer,\n\nYou have been credited.",
		"",
	}
	for _, raw := range tests {
		out := DecodeRaw(raw)
		assert.Equal(t, raw, out.Text)
		assert.Empty(t, out.From)
	}
}

func TestEmail_BodyFallsBackToHTML(t *testing.T) {
	e := Email{HTML: `<html><head><style>p{color:red}</style></head><body>
		<table><tr><td>Amount</td><td>NGN 5,000.00</td></tr>
		<tr><td>Sender</td><td>John&nbsp;Doe</td></tr></table>
		<script>alert(1)</script></body></html>`}

	body := e.Body()
	assert.Contains(t, body, "Amount NGN 5,000.00")
	assert.Contains(t, body, "Sender John")
	assert.NotContains(t, body, "color:red")
	assert.NotContains(t, body, "alert(1)")
}

func TestEmail_BodyPrefersText(t *testing.T) {
	e := Email{Text: "plain body", HTML: "<p>html body</p>"}
	assert.Equal(t, "plain body", e.Body())
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "₦5,0", truncateRunes("₦5,000", 4))
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "unbounded", truncateRunes("unbounded", 0))
}
