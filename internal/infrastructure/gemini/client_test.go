package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	reply    string
	finish   genai.FinishReason
	err      error
	model    string
	config   *genai.GenerateContentConfig
	prompt   string
	deadline bool
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	_, f.deadline = ctx.Deadline()
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}},
			FinishReason: f.finish,
		}},
	}, nil
}

func TestGenerate(t *testing.T) {
	fake := &fakeModels{reply: `{"amount": 5000, "sender_name": "John Doe", "bank_source": "GTBank"}`}
	c := newClient(fake, Config{}, zerolog.Nop())

	got, err := c.Generate(context.Background(), "extract this")
	require.NoError(t, err)

	assert.Equal(t, fake.reply, got)
	assert.Equal(t, "extract this", fake.prompt)
	assert.Equal(t, DefaultModel, fake.model)
	assert.True(t, fake.deadline, "calls must carry a timeout")
	require.NotNil(t, fake.config.Temperature)
	assert.Zero(t, *fake.config.Temperature)
	assert.Equal(t, int32(DefaultMaxOutputTokens), fake.config.MaxOutputTokens)
}

func TestGenerate_CustomConfig(t *testing.T) {
	fake := &fakeModels{reply: "null"}
	c := newClient(fake, Config{Model: "gemini-2.0-flash", MaxOutputTokens: 64, Timeout: time.Second}, zerolog.Nop())

	_, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", fake.model)
	assert.Equal(t, int32(64), fake.config.MaxOutputTokens)
	require.NotNil(t, fake.config.ThinkingConfig)
	require.NotNil(t, fake.config.ThinkingConfig.ThinkingBudget)
	assert.Zero(t, *fake.config.ThinkingConfig.ThinkingBudget, "thinking would consume the output budget")
}

func TestGenerate_Errors(t *testing.T) {
	c := newClient(&fakeModels{err: errors.New("429 resource exhausted")}, Config{}, zerolog.Nop())
	_, err := c.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "resource exhausted")

	c = newClient(&fakeModels{reply: ""}, Config{}, zerolog.Nop())
	_, err = c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	c = newClient(&fakeModels{reply: "", finish: genai.FinishReasonMaxTokens}, Config{}, zerolog.Nop())
	_, err = c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.ErrorContains(t, err, "output budget")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, zerolog.Nop())
	assert.Error(t, err)
}
