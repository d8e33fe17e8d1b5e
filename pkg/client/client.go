// Package client talks to a running gardenmeter daemon.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/itohio/gardenmeter/pkg/logstore"
	"github.com/itohio/gardenmeter/pkg/measurement"
)

// ErrNoLog is returned when the daemon has no log file to download.
var ErrNoLog = errors.New("log file not available on device")

// Client fetches the live reading and the log of a daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL, e.g. "http://gardenmeter.local:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Current returns the latest measurement view.
func (c *Client) Current(ctx context.Context) (measurement.View, error) {
	resp, err := c.get(ctx, "/api/data")
	if err != nil {
		return measurement.View{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return measurement.View{}, fmt.Errorf("GET /api/data: unexpected status %s", resp.Status)
	}

	var v measurement.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return measurement.View{}, fmt.Errorf("failed to decode /api/data: %w", err)
	}
	return v, nil
}

// Download streams the CSV log into w and returns the number of bytes copied.
func (c *Client) Download(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, "/download")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, ErrNoLog
	default:
		return 0, fmt.Errorf("GET /download: unexpected status %s", resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	return n, nil
}

// DownloadFile downloads the log to path. The file is replaced only after a
// complete download.
func (c *Client) DownloadFile(ctx context.Context, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := c.Download(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return n, nil
}

// Load downloads the log and decodes it.
func (c *Client) Load(ctx context.Context) ([]measurement.Measurement, error) {
	var sb strings.Builder
	if _, err := c.Download(ctx, &sb); err != nil {
		return nil, err
	}
	return logstore.ReadAll(strings.NewReader(sb.String()))
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

// ReadFile decodes a previously downloaded log.
func ReadFile(path string) ([]measurement.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return logstore.ReadAll(f)
}
