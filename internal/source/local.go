package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/codebook-cli/internal/model"
)

// Local lists .docx files in a directory, sorted by file name.
type Local struct {
	Dir string
}

// NewLocal creates a local directory source.
func NewLocal(dir string) *Local {
	return &Local{Dir: dir}
}

func (l *Local) List(ctx context.Context) ([]model.Document, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read dir %s", l.Dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isDocx(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	docs := make([]model.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "source: list cancelled")
		}

		data, err := os.ReadFile(filepath.Join(l.Dir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "source: read %s", name)
		}
		text, err := ExtractDocxText(data)
		if err != nil {
			return nil, eris.Wrapf(err, "source: extract %s", name)
		}

		zap.L().Debug("source: document loaded", zap.String("file", name), zap.Int("chars", len(text)))
		docs = append(docs, model.Document{Name: name, Text: text})
	}

	return docs, nil
}

func isDocx(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".docx")
}
