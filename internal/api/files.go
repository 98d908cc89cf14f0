package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
)

// Head checks that a file reference exists without downloading it.
func (c *Client) Head(ctx context.Context, fileURL string) error {
	req, err := c.newRequest(ctx, http.MethodHead, fileURL, nil, false)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Fetch downloads at most limit bytes of a file. When head is positive only
// the first head bytes are requested with a Range header; servers that ignore
// Range are still cut off at limit.
func (c *Client) Fetch(ctx context.Context, fileURL string, head, limit int64) (string, []byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fileURL, nil, false)
	if err != nil {
		return "", nil, err
	}
	if head > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", head-1))
		if limit <= 0 || limit > head {
			limit = head
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, statusError(req, resp)
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", req.URL.Path, err)
	}
	return resp.Header.Get("Content-Type"), data, nil
}

// Download streams a file into w and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fileURL, nil, false)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, statusError(req, resp)
	}
	return io.Copy(w, resp.Body)
}

// PDFProxyURL returns the absolute proxy URL that re-serves fileURL inline.
func (c *Client) PDFProxyURL(fileURL string) string {
	return c.BaseURL + transport.PDFProxyPath(c.ResolveURL(fileURL))
}
