package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/codebook-cli/internal/model"
	"github.com/sells-group/codebook-cli/internal/prompt"
	"github.com/sells-group/codebook-cli/pkg/anthropic"
)

func testPreset() prompt.Preset {
	p := prompt.Default()
	p.Model = "claude-haiku-4-5-20251001"
	return p
}

func TestAnalyzeSuccess(t *testing.T) {
	t.Parallel()

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse("Reasoning...\n{\"themes\":[{\"theme\":\"T\",\"codages\":[\"A\"],\"verbatims\":[\"quote one\"]}]}\nDone."), nil).
		Once()

	a := NewAnalyzer(client, testPreset())
	table, err := a.Analyze(context.Background(), model.Document{Name: "doc1", Text: "interview transcript"})

	require.NoError(t, err)
	assert.Equal(t, model.Table{{Theme: "T", Coding: "A", Verbatim: "quote one"}}, table)
	client.AssertExpectations(t)
}

func TestAnalyzeSendsPresetParameters(t *testing.T) {
	t.Parallel()

	preset := testPreset()

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == preset.Model &&
			req.System == preset.System &&
			req.Temperature != nil && *req.Temperature == preset.Temperature &&
			len(req.Messages) == 1 && req.Messages[0].Content == "transcript"
	})).Return(textResponse(`{"themes":[]}`), nil).Once()

	a := NewAnalyzer(client, preset)
	_, err := a.Analyze(context.Background(), model.Document{Name: "doc", Text: "transcript"})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	t.Parallel()

	client := &mockAnalysisClient{}
	a := NewAnalyzer(client, testPreset())

	for _, text := range []string{"", "   \n\t  "} {
		_, err := a.Analyze(context.Background(), model.Document{Name: "empty", Text: text})
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}

	// No call spent on an empty document.
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestAnalyzeNoJSONInReply(t *testing.T) {
	t.Parallel()

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("I could not produce a codification for this document."), nil).
		Once()

	a := NewAnalyzer(client, testPreset())
	_, err := a.Analyze(context.Background(), model.Document{Name: "doc", Text: "some text"})

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "I could not produce a codification for this document.", malformed.Raw)
	assert.ErrorIs(t, err, ErrNoJSONFound)
}

func TestAnalyzeMalformedJSON(t *testing.T) {
	t.Parallel()

	raw := `Here you go: {"themes":[{"theme":"T","codages":["A"],"verbatims":["v"],}]}`

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(raw), nil).
		Once()

	a := NewAnalyzer(client, testPreset())
	_, err := a.Analyze(context.Background(), model.Document{Name: "doc", Text: "some text"})

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	// Raw carries the unmodified reply, not the extracted span.
	assert.Equal(t, raw, malformed.Raw)

	// Single-shot: no second call was attempted.
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestAnalyzeRepairsUnescapedNewlines(t *testing.T) {
	t.Parallel()

	// Newline inside a string literal, as models emit it.
	reply := "{\"themes\":[{\"theme\":\"T\",\"codages\":[\"A\"],\"verbatims\":[\"line one\nline two\"]}]}"

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(reply), nil).
		Once()

	a := NewAnalyzer(client, testPreset())
	table, err := a.Analyze(context.Background(), model.Document{Name: "doc", Text: "some text"})

	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "line one line two", table[0].Verbatim)
}

func TestAnalyzeTransportErrorPropagates(t *testing.T) {
	t.Parallel()

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).
		Once()

	a := NewAnalyzer(client, testPreset())
	_, err := a.Analyze(context.Background(), model.Document{Name: "doc", Text: "some text"})

	require.Error(t, err)
	var malformed *MalformedResponseError
	assert.False(t, errors.As(err, &malformed))
}

func TestAnalyzeCacheHitSkipsCall(t *testing.T) {
	t.Parallel()

	doc := model.Document{Name: "doc", Text: "cached transcript"}
	sum := sha256.Sum256([]byte(doc.Text))
	docSHA := hex.EncodeToString(sum[:])

	cache := &mockCache{}
	cache.On("Get", mock.Anything, docSHA, "claude-haiku-4-5-20251001").
		Return(`{"themes":[{"theme":"T","codages":["A"],"verbatims":["v"]}]}`, true, nil).
		Once()

	client := &mockAnalysisClient{}

	a := NewAnalyzer(client, testPreset(), WithCache(cache))
	table, err := a.Analyze(context.Background(), doc)

	require.NoError(t, err)
	assert.Len(t, table, 1)
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
}

func TestAnalyzeCacheMissFillsCache(t *testing.T) {
	t.Parallel()

	doc := model.Document{Name: "doc", Text: "fresh transcript"}
	raw := `{"themes":[]}`

	cache := &mockCache{}
	cache.On("Get", mock.Anything, mock.AnythingOfType("string"), "claude-haiku-4-5-20251001").
		Return("", false, nil).Once()
	cache.On("Put", mock.Anything, mock.AnythingOfType("string"), "claude-haiku-4-5-20251001", raw).
		Return(nil).Once()

	client := &mockAnalysisClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(raw), nil).
		Once()

	a := NewAnalyzer(client, testPreset(), WithCache(cache))
	_, err := a.Analyze(context.Background(), doc)

	require.NoError(t, err)
	cache.AssertExpectations(t)
	client.AssertExpectations(t)
}
