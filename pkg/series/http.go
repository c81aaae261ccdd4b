package series

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultMaxResponseBytes caps the response body when HTTPLoader.MaxBytes
// is zero.
const DefaultMaxResponseBytes = 32 << 20

// HTTPLoader fetches the input table from an HTTP endpoint, so the dataset
// can come from an export API instead of a local file.
//
// The table is decoded with Load. When Options.Format is empty the format is
// taken from the response Content-Type (application/json → JSON), then from
// the URL path extension, and falls back to CSV.
//
// Example:
//
//	loader := &HTTPLoader{
//	    URL: "https://reports.example.com/tickets/daily.csv",
//	    Headers: map[string]string{"Authorization": "Bearer " + token},
//	    Options: DefaultOptions(),
//	}
type HTTPLoader struct {
	// URL is the endpoint to GET (required).
	URL string

	// Headers are added to the request.
	Headers map[string]string

	Options Options

	// MaxBytes caps the response body. Larger responses fail with
	// *FormatError instead of being truncated. Zero uses
	// DefaultMaxResponseBytes.
	MaxBytes int64

	// HTTPClient is optional; if nil a client with a 30s timeout is used.
	HTTPClient *http.Client
}

// IsURL reports whether input names an HTTP(S) resource rather than a file.
func IsURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Load implements the pipeline's dataset source.
func (l *HTTPLoader) Load(ctx context.Context) (*Dataset, error) {
	if l.URL == "" {
		return nil, errors.New("http loader: URL is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, application/json")
	for k, v := range l.Headers {
		req.Header.Set(k, v)
	}

	cli := l.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	opts := l.Options
	if opts.Format == "" {
		opts.Format = detectFormat(resp.Header.Get("Content-Type"), req.URL.Path)
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, &FormatError{Reason: fmt.Sprintf("response body exceeds %d bytes", limit)}
	}

	return Load(bytes.NewReader(body), opts)
}

func detectFormat(contentType, urlPath string) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "application/json", strings.HasSuffix(mt, "+json"):
			return FormatJSON
		case mt == "text/csv":
			return FormatCSV
		}
	}
	if strings.EqualFold(path.Ext(urlPath), ".json") {
		return FormatJSON
	}
	return FormatCSV
}
