package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/handiism/artwork-downloader/internal/download"
	"github.com/handiism/artwork-downloader/internal/gallery/dto"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// Is reports throttling responses as rate-limit failures, so
// errors.Is(err, download.ErrRateLimited) holds for HTTP 429.
func (e *StatusError) Is(target error) bool {
	return target == download.ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// Client wraps HTTP operations with gallery-specific configuration.
//
// Client provides:
//   - Configured User-Agent and Referer headers; the image CDN rejects
//     requests without a site Referer
//   - Timeout handling
//   - JSON API access with envelope unwrapping
//   - Image download to disk
//
// Example usage:
//
//	client := NewClient("https://gallery.example.net")
//
//	var work dto.JSONWork
//	err := client.GetJSON(ctx, client.endpoint("/api/work/104850"), &work)
//
//	err = client.DownloadFile(ctx, work.URLs.Original, "/art/kei/104850.png")
type Client struct {
	httpClient *http.Client
	base       string
	userAgent  string
}

// NewClient creates a new HTTP client for the gallery API at base.
//
// The client is configured with:
//   - 60 second timeout
//   - "ArtworkDownloader" User-Agent header
func NewClient(base string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		base:      strings.TrimRight(base, "/"),
		userAgent: "ArtworkDownloader",
	}
}

// endpoint joins an API path onto the configured base URL.
func (c *Client) endpoint(path string) string {
	return c.base + path
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.base+"/")
	return req, nil
}

// Get performs a GET request and returns the response body as bytes.
//
// Returns a *StatusError if the response status is not 200 OK.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return io.ReadAll(resp.Body)
}

// GetJSON performs a GET request against an API endpoint, unwraps the
// response envelope and decodes the body into v.
//
// Returns an error if the envelope reports an API failure, carrying the
// server's message.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}

	var env dto.JSONEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("malformed API response: %w", err)
	}
	if env.Error {
		return fmt.Errorf("api error: %s", env.Message)
	}

	return json.Unmarshal(env.Body, v)
}

// DownloadFile downloads a file to the specified path.
//
// The file is created (or truncated if it exists) and the content is
// streamed directly to disk, avoiding loading the entire image into
// memory.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string) error {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	file, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, resp.Body)
	return err
}
