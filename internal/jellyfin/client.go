// Package jellyfin talks to a Jellyfin server over its REST API and websocket.
// It implements the library capabilities used by the rest of the service.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/httpclient"
	"github.com/saltyorg/easierlife/internal/library"
)

// StatusError is returned when Jellyfin answers with an unexpected status code
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Jellyfin %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client is a Jellyfin API client authenticated with an API key
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a client for the server at baseURL
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpclient.NewTraceClient("jellyfin", config.GetTimeouts().HTTPClient),
	}
}

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

func setAuthHeader(req *http.Request, token string) {
	req.Header.Set("Authorization", fmt.Sprintf("MediaBrowser Token=\"%s\"", token))
	req.Header.Set("Accept", "application/json")
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// A 404 maps to library.ErrItemNotFound.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doWithToken(ctx, c.apiKey, method, path, query, body, out)
}

func (c *Client) doWithToken(ctx context.Context, token, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	setAuthHeader(req, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, library.ErrItemNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SystemInfo is the subset of /System/Info used for diagnostics
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// SystemInfo returns the server's identity
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	var info SystemInfo
	if err := c.do(ctx, http.MethodGet, "/System/Info", nil, nil, &info); err != nil {
		return info, err
	}
	return info, nil
}

// TestConnection verifies the server is reachable and the API key is accepted
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.SystemInfo(ctx)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	return err
}

// ValidateToken reports whether Jellyfin accepts the token
func (c *Client) ValidateToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	err := c.doWithToken(ctx, token, http.MethodGet, "/System/Info", nil, nil, nil)
	if err == nil {
		return true, nil
	}
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}

type virtualFolder struct {
	Name           string   `json:"Name"`
	Locations      []string `json:"Locations"`
	CollectionType string   `json:"CollectionType"`
	ItemID         string   `json:"ItemId"`
}

// Libraries implements library.LibraryLister
func (c *Client) Libraries(ctx context.Context) ([]library.Library, error) {
	var folders []virtualFolder
	if err := c.do(ctx, http.MethodGet, "/Library/VirtualFolders", nil, nil, &folders); err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}

	libraries := make([]library.Library, 0, len(folders))
	for _, f := range folders {
		libraries = append(libraries, library.Library{
			ID:    f.ItemID,
			Name:  f.Name,
			Type:  f.CollectionType,
			Paths: f.Locations,
		})
	}
	return libraries, nil
}
