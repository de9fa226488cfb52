package messages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	title, body := Default().PaymentReceived.Render(map[string]string{
		"amount": "5000.00",
		"sender": "John Doe",
		"bank":   "GTBank",
	})

	assert.Equal(t, "Payment received", title)
	assert.Equal(t, "₦5000.00 from John Doe (GTBank)", body)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), m)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"payment_received":{"title":"Owo ti de","body":"{sender}: ₦{amount}"}}`), 0o600))

	m, err := Load(path)
	require.NoError(t, err)

	title, body := m.PaymentReceived.Render(map[string]string{"amount": "250.00", "sender": "Ada"})
	assert.Equal(t, "Owo ti de", title)
	assert.Equal(t, "Ada: ₦250.00", body)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
