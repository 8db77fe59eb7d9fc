package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xhad/screener/internal/models"
	"github.com/xhad/screener/pkg/llm"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	reply    string
	chunks   []string
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.opts.StreamingFunc != nil {
		for _, c := range f.chunks {
			if err := f.opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func passages() []models.RetrievedPassage {
	return []models.RetrievedPassage{{
		NodeID: "n1",
		Text:   "Five years of Go, Kubernetes operator work.",
		Score:  0.91,
		Metadata: models.NodeMetadata{
			PositionID:    1,
			CandidateName: "wang_lei",
			FileName:      "wang_lei.pdf",
		},
	}}
}

func TestNewAssistant(t *testing.T) {
	_, err := llm.NewAssistant(nil, llm.ChatConfig{})
	assert.Error(t, err)

	_, err = llm.NewAssistant(&fakeModel{}, llm.ChatConfig{Temperature: 3})
	assert.Error(t, err)

	a, err := llm.NewAssistant(&fakeModel{}, llm.ChatConfig{Temperature: 0.3})
	assert.NoError(t, err)
	assert.NotNil(t, a)
}

func TestAsk(t *testing.T) {
	model := &fakeModel{reply: "  wang_lei has built Kubernetes operators.\n"}
	a, err := llm.NewAssistant(model, llm.ChatConfig{Temperature: 0.3, MaxTokens: 500})
	require.NoError(t, err)

	answer, err := a.Ask(context.Background(), "Who knows Kubernetes?", passages())
	require.NoError(t, err)
	assert.Equal(t, "wang_lei has built Kubernetes operators.", answer)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	human := model.messages[1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "Candidate: wang_lei (wang_lei.pdf)")
	assert.Contains(t, human, "Who knows Kubernetes?")
	assert.Equal(t, 500, model.opts.MaxTokens)
	assert.InDelta(t, 0.3, model.opts.Temperature, 1e-9)
}

func TestAskWithoutPassages(t *testing.T) {
	model := &fakeModel{}
	a, err := llm.NewAssistant(model, llm.ChatConfig{})
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "anyone?", nil)
	assert.ErrorIs(t, err, llm.ErrNoPassages)
	assert.Nil(t, model.messages)
}

func TestAskError(t *testing.T) {
	a, err := llm.NewAssistant(&fakeModel{err: errors.New("connection refused")}, llm.ChatConfig{})
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "q", passages())
	assert.ErrorContains(t, err, "connection refused")
}

func TestAskStream(t *testing.T) {
	a, err := llm.NewAssistant(&fakeModel{chunks: []string{"wang", "_lei"}}, llm.ChatConfig{})
	require.NoError(t, err)

	var got []string
	err = a.AskStream(context.Background(), "q", passages(), func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wang", "_lei"}, got)
}
