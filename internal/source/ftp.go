package source

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/codebook-cli/internal/model"
)

// FTP lists .docx files under a directory on an FTP server, given an URL of
// the form ftp://host[:port]/path/to/dir. Anonymous login.
type FTP struct {
	URL     string
	Timeout time.Duration
}

// NewFTP creates an FTP source.
func NewFTP(rawURL string) *FTP {
	return &FTP{URL: rawURL, Timeout: 30 * time.Second}
}

// parseFTPURL extracts host (with port) and directory path from an FTP URL.
func parseFTPURL(rawURL string) (host string, dir string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "source: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("source: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		dir = "/"
	}

	return host, dir, nil
}

func (f *FTP) List(ctx context.Context) ([]model.Document, error) {
	host, dir, err := parseFTPURL(f.URL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("source: connecting", zap.String("host", host), zap.String("dir", dir))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "source: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return nil, eris.Wrap(err, "source: ftp login")
	}

	entries, err := conn.List(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "source: ftp list %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !isDocx(e.Name) {
			continue
		}
		names = append(names, e.Name)
	}
	sort.Strings(names)

	docs := make([]model.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "source: list cancelled")
		}

		data, err := retrieve(conn, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		text, err := ExtractDocxText(data)
		if err != nil {
			return nil, eris.Wrapf(err, "source: extract %s", name)
		}

		docs = append(docs, model.Document{Name: name, Text: text})
	}

	return docs, nil
}

func retrieve(conn *ftp.ServerConn, remotePath string) ([]byte, error) {
	resp, err := conn.Retr(remotePath)
	if err != nil {
		return nil, eris.Wrapf(err, "source: ftp retrieve %s", remotePath)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, eris.Wrapf(err, "source: ftp read %s", remotePath)
	}
	return data, nil
}
