package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/codebook-cli/internal/model"
)

// DocumentAnalyzer codes a single document into table rows.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, doc model.Document) (model.Table, error)
}

// Options configures a Pipeline run.
type Options struct {
	// Workers bounds concurrent document analyses. 0 or 1 means strictly
	// sequential.
	Workers int

	// KeepGoing collects per-document failures and continues instead of
	// aborting the whole run on the first malformed response. The returned
	// Codebook is then partial and Report.Failed lists the casualties.
	KeepGoing bool
}

// DocumentResult records the outcome for one processed document.
type DocumentResult struct {
	Name    string
	SheetID string
	Rows    int
	Skipped bool
	Err     error
}

// Report summarizes a run.
type Report struct {
	RunID     string
	Documents []DocumentResult
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []DocumentResult {
	var out []DocumentResult
	for _, d := range r.Documents {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Pipeline iterates a document set, analyzes each document, and accumulates
// the per-document tables into a Codebook keyed by sheet identifier.
type Pipeline struct {
	analyzer DocumentAnalyzer
	opts     Options
}

// New creates a Pipeline.
func New(analyzer DocumentAnalyzer, opts Options) *Pipeline {
	return &Pipeline{analyzer: analyzer, opts: opts}
}

// outcome is one document's analysis result, indexed for stable merging.
type outcome struct {
	table   model.Table
	err     error
	skipped bool
}

// Run processes documents in listing order. Empty documents are logged and
// skipped. By default the first malformed response aborts the run: the error
// (a *MalformedResponseError with the raw reply) is returned and the partial
// Codebook is discarded so no incomplete artifact gets written. With
// KeepGoing, failures are recorded in the report and the remaining documents
// still run.
//
// With Workers > 1 the analyses fan out under a bounded errgroup, but
// outcomes are merged strictly in input order after all complete, so sheet
// ordering, last-write-wins overwrites, and the choice of aborting error are
// identical to a sequential run regardless of completion order.
func (p *Pipeline) Run(ctx context.Context, docs []model.Document) (*model.Codebook, *Report, error) {
	report := &Report{RunID: uuid.New().String()}
	log := zap.L().With(zap.String("run_id", report.RunID))
	log.Info("pipeline: starting run", zap.Int("documents", len(docs)))

	var outcomes []outcome
	var err error
	if p.opts.Workers > 1 {
		outcomes = p.analyzeConcurrent(ctx, docs)
	} else {
		outcomes, err = p.analyzeSequential(ctx, docs)
	}

	cb := model.NewCodebook()
	for i, doc := range docs {
		if i >= len(outcomes) {
			// Sequential abort: later documents were never attempted.
			break
		}
		out := outcomes[i]

		switch {
		case out.skipped:
			log.Warn("pipeline: document empty, skipping", zap.String("document", doc.Name))
			report.Documents = append(report.Documents, DocumentResult{Name: doc.Name, Skipped: true})

		case out.err != nil:
			if !p.opts.KeepGoing {
				log.Error("pipeline: aborting run", zap.String("document", doc.Name), zap.Error(out.err))
				report.Documents = append(report.Documents, DocumentResult{Name: doc.Name, Err: out.err})
				return nil, report, out.err
			}
			log.Warn("pipeline: document failed, continuing", zap.String("document", doc.Name), zap.Error(out.err))
			report.Documents = append(report.Documents, DocumentResult{Name: doc.Name, Err: out.err})

		default:
			sheetID := model.SheetID(doc.Name)
			if cb.Put(sheetID, out.table) {
				log.Warn("pipeline: duplicate sheet identifier, previous table overwritten",
					zap.String("sheet", sheetID),
					zap.String("document", doc.Name),
				)
			}
			report.Documents = append(report.Documents, DocumentResult{
				Name:    doc.Name,
				SheetID: sheetID,
				Rows:    len(out.table),
			})
		}
	}
	if err != nil {
		return nil, report, err
	}

	log.Info("pipeline: run complete",
		zap.Int("sheets", cb.Len()),
		zap.Int("failed", len(report.Failed())),
	)
	return cb, report, nil
}

// analyzeSequential runs one document at a time, stopping at the first
// fatal failure so no further calls are spent.
func (p *Pipeline) analyzeSequential(ctx context.Context, docs []model.Document) ([]outcome, error) {
	outcomes := make([]outcome, 0, len(docs))
	for _, doc := range docs {
		out := p.analyzeOne(ctx, doc)
		outcomes = append(outcomes, out)

		if out.err != nil && !p.opts.KeepGoing {
			return outcomes, nil
		}
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// analyzeConcurrent fans documents out under a bounded errgroup. Every
// document runs to completion; no early cancellation, so the outcome slice
// is a pure function of the input and the merge stays deterministic.
func (p *Pipeline) analyzeConcurrent(ctx context.Context, docs []model.Document) []outcome {
	outcomes := make([]outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = p.analyzeOne(gctx, doc)
			return nil
		})
	}
	_ = g.Wait() // workers report through outcomes, never through the group

	return outcomes
}

func (p *Pipeline) analyzeOne(ctx context.Context, doc model.Document) outcome {
	if doc.Empty() {
		return outcome{skipped: true}
	}

	table, err := p.analyzer.Analyze(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrEmptyDocument) {
			return outcome{skipped: true}
		}
		return outcome{err: err}
	}
	return outcome{table: table}
}
