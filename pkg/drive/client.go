package drive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.googleapis.com/drive/v3"

// DocxMIME is the MIME type of word-processing (.docx) files on Drive.
const DocxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Client performs Google Drive API operations.
type Client interface {
	// ListDocx returns the non-trashed .docx files directly under a folder.
	ListDocx(ctx context.Context, folderID string) ([]File, error)

	// Download streams the binary content of a file. The caller must close
	// the returned reader.
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// File is a Drive file reference.
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// listResponse is the files.list reply.
type listResponse struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Drive client authenticating with an OAuth bearer
// token. Token minting (service account, gcloud) is the caller's concern.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListDocx(ctx context.Context, folderID string) ([]File, error) {
	query := "'" + folderID + "' in parents and mimeType='" + DocxMIME + "' and trashed = false"

	var files []File
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "nextPageToken, files(id, name)")
		params.Set("pageSize", "100")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		body, err := c.get(ctx, "/files?"+params.Encode())
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "drive: unmarshal file list")
		}
		files = append(files, page.Files...)

		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *httpClient) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, "/files/"+url.PathEscape(fileID)+"?alt=media")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		return nil, eris.Errorf("drive: unexpected status %d downloading %s: %s", resp.StatusCode, fileID, string(body))
	}

	return resp.Body, nil
}

// get performs a GET and returns the full body of a 200 response.
func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "drive: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("drive: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (c *httpClient) do(ctx context.Context, path string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "drive: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "drive: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "drive: send request")
	}
	return resp, nil
}
