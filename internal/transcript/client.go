// Package transcript talks to the external transcript provider. Fetching is
// rate limited by the caller; this package only knows how to get the text.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxTranscriptChars caps fetched transcripts so downstream prompts and
// encoder inputs stay reasonable.
const MaxTranscriptChars = 5000

// ErrUnavailable means the provider has no transcript for the video. It is
// not a transport failure; callers decide whether that is retryable.
var ErrUnavailable = errors.New("transcript unavailable")

// Fetcher is the capability the worker consumes.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Client fetches transcripts over HTTP from the provider service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Fetch(ctx context.Context, videoID string) (string, error) {
	url := fmt.Sprintf("%s/transcripts/%s", c.baseURL, videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrUnavailable
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("transcript provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxTranscriptChars+1))
	if err != nil {
		return "", err
	}

	text := string(body)
	if len(text) > MaxTranscriptChars {
		text = text[:MaxTranscriptChars]
	}
	if text == "" {
		return "", ErrUnavailable
	}
	return text, nil
}
