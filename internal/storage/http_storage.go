package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrImageTooLarge is returned when a remote image exceeds the size limit
var ErrImageTooLarge = errors.New("image exceeds size limit")

// FetchedImage is the raw body of a downloaded image
type FetchedImage struct {
	Data        []byte
	ContentType string
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// HTTPImageFetcher implements ImageFetcher with a small retry policy
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
	attempts int
	backoff  time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. Bodies larger than
// maxBytes are rejected; maxBytes <= 0 means 32MB.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) ImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
		attempts: 3,
		backoff:  time.Second,
	}
}

// FetchImage downloads imageURL. Network errors and 5xx responses are
// retried with linear backoff; 4xx responses are not.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/gif, image/heic, */*")
	req.Header.Set("User-Agent", "2d-code-verifier/1.0")

	var lastErr error
	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * h.backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to fetch image: %w", ctx.Err())
			}
		}

		fetched, retry, err := h.fetchOnce(req)
		if err == nil {
			return fetched, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.attempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(req *http.Request) (*FetchedImage, bool, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, req.Context().Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, false, fmt.Errorf("%w (%d bytes)", ErrImageTooLarge, h.maxBytes)
	}

	return &FetchedImage{Data: data, ContentType: resp.Header.Get("Content-Type")}, false, nil
}
