package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/codebook-cli/internal/model"
	"github.com/sells-group/codebook-cli/pkg/anthropic"
)

// --- Anthropic mock ---

type mockAnalysisClient struct {
	mock.Mock
}

func (m *mockAnalysisClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// textResponse builds a single-block reply, the shape the analyzer sees.
func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

// --- Response cache mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, docSHA, modelID string) (string, bool, error) {
	args := m.Called(ctx, docSHA, modelID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockCache) Put(ctx context.Context, docSHA, modelID, raw string) error {
	args := m.Called(ctx, docSHA, modelID, raw)
	return args.Error(0)
}

// --- Analyzer stub for orchestrator tests ---

type stubAnalyzer struct {
	fn func(doc model.Document) (model.Table, error)

	mu    sync.Mutex
	calls []string
}

func (s *stubAnalyzer) Analyze(_ context.Context, doc model.Document) (model.Table, error) {
	s.mu.Lock()
	s.calls = append(s.calls, doc.Name)
	s.mu.Unlock()
	return s.fn(doc)
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubAnalyzer) calledNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
