package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// requester performs JSON POSTs against a base URL.
type requester struct {
	base   *url.URL
	client *http.Client
}

// parseBase normalizes a signaling URL: a trailing /offer and trailing
// slashes are stripped so both "http://h:8080" and "http://h:8080/offer"
// address the same endpoint.
func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid signaling URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid signaling URL %q: need http(s)://host", raw)
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/offer")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func (r *requester) endpoint(path string) string {
	return r.base.JoinPath(path).String()
}

func (r *requester) newReq(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doReq sends req and converts any non-2xx status into a *TransportError.
// On success the caller owns res.Body.
func (r *requester) doReq(req *http.Request) (*http.Response, error) {
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()
	text, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return nil, &TransportError{
		URL:    req.URL.String(),
		Status: res.StatusCode,
		Body:   strings.TrimSpace(string(text)),
	}
}
