package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/codebook-cli/internal/model"
	"github.com/sells-group/codebook-cli/internal/prompt"
	"github.com/sells-group/codebook-cli/pkg/anthropic"
)

// ErrEmptyDocument means a document had no analyzable text. Recoverable: the
// orchestrator skips the document and continues.
var ErrEmptyDocument = eris.New("pipeline: empty document")

// MalformedResponseError means the analysis reply could not be parsed into a
// coding payload. Raw carries the unmodified reply for manual inspection.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("pipeline: malformed analysis response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ResponseCache stores raw analysis replies keyed by document hash and model,
// so re-runs over unchanged documents skip the API call.
type ResponseCache interface {
	Get(ctx context.Context, docSHA, model string) (string, bool, error)
	Put(ctx context.Context, docSHA, model, raw string) error
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithCache attaches a response cache.
func WithCache(c ResponseCache) AnalyzerOption {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithRateLimit caps analysis calls at rps requests per second.
func WithRateLimit(rps float64) AnalyzerOption {
	return func(a *Analyzer) {
		a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// Analyzer runs the per-document analysis: one model call, then tolerant
// extraction and parsing of the embedded coding JSON.
type Analyzer struct {
	client  anthropic.Client
	preset  prompt.Preset
	cache   ResponseCache
	limiter *rate.Limiter
}

// NewAnalyzer creates an Analyzer calling the given client with the preset's
// instruction and sampling parameters.
func NewAnalyzer(client anthropic.Client, preset prompt.Preset, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		client: client,
		preset: preset,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze codes one document. Empty text fails with ErrEmptyDocument before
// any call is made. A reply that yields no parseable coding JSON fails with
// *MalformedResponseError carrying the raw reply; no second call is made and
// the payload is never repaired beyond control-character sanitization.
func (a *Analyzer) Analyze(ctx context.Context, doc model.Document) (model.Table, error) {
	if doc.Empty() {
		return nil, ErrEmptyDocument
	}

	raw, err := a.response(ctx, doc)
	if err != nil {
		return nil, err
	}

	span, err := ExtractJSON(raw)
	if err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}
	span = SanitizeResponse(span)

	var payload model.CodingPayload
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}

	rows, dropped := BuildRows(payload)
	if dropped > 0 {
		zap.L().Warn("pipeline: unpaired codings/verbatims dropped",
			zap.String("document", doc.Name),
			zap.Int("dropped", dropped),
		)
	}

	return rows, nil
}

// response returns the raw analysis reply, consulting the cache first when
// one is attached. Cache errors are logged, never fatal.
func (a *Analyzer) response(ctx context.Context, doc model.Document) (string, error) {
	var docSHA string
	if a.cache != nil {
		sum := sha256.Sum256([]byte(doc.Text))
		docSHA = hex.EncodeToString(sum[:])

		raw, ok, err := a.cache.Get(ctx, docSHA, a.preset.Model)
		if err != nil {
			zap.L().Warn("pipeline: cache read failed", zap.String("document", doc.Name), zap.Error(err))
		} else if ok {
			zap.L().Debug("pipeline: cache hit", zap.String("document", doc.Name))
			return raw, nil
		}
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "pipeline: rate limit wait")
		}
	}

	temp := a.preset.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.preset.Model,
		MaxTokens:   a.preset.MaxTokens,
		System:      a.preset.System,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: doc.Text},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: analyze %s", doc.Name)
	}
	resp.Usage.LogCost(a.preset.Model, doc.Name)

	raw := resp.Text()
	if a.cache != nil {
		if err := a.cache.Put(ctx, docSHA, a.preset.Model, raw); err != nil {
			zap.L().Warn("pipeline: cache write failed", zap.String("document", doc.Name), zap.Error(err))
		}
	}

	return raw, nil
}
