package source

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/codebook-cli/internal/model"
	"github.com/sells-group/codebook-cli/pkg/drive"
)

// Drive lists the .docx files of a Google Drive folder. Listing order is
// whatever the Drive API returns, which is the order documents are coded in.
type Drive struct {
	client   drive.Client
	folderID string
}

// NewDrive creates a Drive folder source.
func NewDrive(client drive.Client, folderID string) *Drive {
	return &Drive{client: client, folderID: folderID}
}

func (d *Drive) List(ctx context.Context) ([]model.Document, error) {
	files, err := d.client.ListDocx(ctx, d.folderID)
	if err != nil {
		return nil, eris.Wrapf(err, "source: list drive folder %s", d.folderID)
	}

	docs := make([]model.Document, 0, len(files))
	for _, f := range files {
		data, err := d.download(ctx, f)
		if err != nil {
			return nil, err
		}
		text, err := ExtractDocxText(data)
		if err != nil {
			return nil, eris.Wrapf(err, "source: extract %s", f.Name)
		}

		zap.L().Debug("source: document downloaded",
			zap.String("file", f.Name),
			zap.Int("chars", len(text)),
		)
		docs = append(docs, model.Document{Name: f.Name, Text: text})
	}

	return docs, nil
}

func (d *Drive) download(ctx context.Context, f drive.File) ([]byte, error) {
	rc, err := d.client.Download(ctx, f.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "source: download %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", f.Name)
	}
	return data, nil
}
