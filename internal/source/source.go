// Package source supplies fully-materialized documents to the pipeline:
// each implementation lists a store of .docx files and extracts their
// paragraph text before any analysis starts.
package source

import (
	"context"

	"github.com/sells-group/codebook-cli/internal/model"
)

// Source lists the documents of one store in a stable order.
type Source interface {
	List(ctx context.Context) ([]model.Document, error)
}
