package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Messages holds user-facing push notification texts.
type Messages struct {
	PaymentReceived MessageText `json:"payment_received"`
}

// Default returns the built-in texts. Bodies may use the {amount}, {sender}
// and {bank} placeholders.
func Default() *Messages {
	return &Messages{
		PaymentReceived: MessageText{
			Title: "Payment received",
			Body:  "₦{amount} from {sender} ({bank})",
		},
	}
}

// Load reads a JSON messages file over the defaults. An empty path returns the defaults.
func Load(path string) (*Messages, error) {
	m := Default()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}
	return m, nil
}

// Render substitutes {key} placeholders in the title and body.
func (t MessageText) Render(vars map[string]string) (title, body string) {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Title), r.Replace(t.Body)
}
