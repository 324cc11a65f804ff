// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/streamgrab/internal/m3u8"
)

// Doer is the HTTP client abstraction the engine depends on. *http.Client and
// the session client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// response is a fully read upstream body together with the final URL after
// redirects.
type response struct {
	body     []byte
	finalURL string
}

// get performs one GET and reads the whole body. Non-2xx statuses become
// *HTTPError. When br is set the request carries an RFC 7233 Range header.
func get(ctx context.Context, client Doer, rawURL string, br *m3u8.ByteRange) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if br != nil {
		req.Header.Set("Range", br.HTTPRange())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Servers that ignore Range answer 200 with the whole resource.
	if br != nil && resp.StatusCode == http.StatusOK {
		start, end := br.Start(), br.Start()+br.Length
		if end > int64(len(body)) {
			return nil, fmt.Errorf("%w: %s of %d bytes", ErrShortRange, br.HTTPRange(), len(body))
		}
		body = body[start:end]
	}

	out := &response{body: body, finalURL: rawURL}
	if resp.Request != nil && resp.Request.URL != nil {
		out.finalURL = resp.Request.URL.String()
	}
	return out, nil
}
