// Package httpclient builds HTTP clients that log Jellyfin traffic at trace level.
package httpclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxLoggedBody caps how much of a response body ends up in the log
const maxLoggedBody = 4096

const redacted = "redacted"

type traceTransport struct {
	base http.RoundTripper
	name string
}

// NewTraceClient returns an HTTP client that logs requests at trace level.
func NewTraceClient(name string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &traceTransport{name: name},
	}
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	// bodies are only buffered when someone will read them
	if zerolog.GlobalLevel() > zerolog.TraceLevel {
		return base.RoundTrip(req)
	}

	urlStr := RedactURL(req.URL)
	start := time.Now()

	log.Trace().
		Str("client", t.name).
		Str("method", req.Method).
		Str("url", urlStr).
		Interface("headers", RedactHeaders(req.Header)).
		Msg("HTTP request")

	resp, err := base.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		log.Trace().
			Str("client", t.name).
			Str("method", req.Method).
			Str("url", urlStr).
			Dur("duration", duration).
			Err(err).
			Msg("HTTP request failed")
		return nil, err
	}

	body, readErr := readAndRestoreBody(resp)
	evt := log.Trace().
		Str("client", t.name).
		Str("method", req.Method).
		Str("url", urlStr).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("body_length", len(body))

	if readErr != nil {
		evt.Err(readErr)
	}

	switch {
	case len(body) == 0:
	case len(body) > maxLoggedBody:
		evt.Str("body", string(body[:maxLoggedBody])+"...")
	case json.Valid(body):
		evt.RawJSON("body", body)
	default:
		evt.Str("body", string(body))
	}

	evt.Msg("HTTP response")
	return resp, nil
}

func readAndRestoreBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body, err
}

// RedactURL returns u as a string with credential query parameters masked
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	c := *u
	if c.RawQuery == "" {
		return c.String()
	}

	q := c.Query()
	for key := range q {
		if isSensitive(key) {
			q.Set(key, redacted)
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}

// RedactHeaders flattens h with credential headers masked
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if isSensitive(key) {
			out[key] = redacted
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func isSensitive(key string) bool {
	switch strings.ToLower(key) {
	case "apikey", "api_key", "api-key", "x-api-key", "token", "access_token",
		"authorization", "x-emby-token", "x-mediabrowser-token", "x-emby-authorization":
		return true
	default:
		return false
	}
}
