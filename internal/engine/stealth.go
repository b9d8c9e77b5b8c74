package engine

import (
	"context"
	"fmt"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth types and functions for engine consumers.
type BrowserClient = stealth.BrowserClient

var DefaultRetryConfig = stealth.DefaultRetryConfig

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool  { return stealth.IsRetryableStatus(code) }

func RetryDo[T any](ctx context.Context, rc stealth.RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// BrowserGet fetches pageURL through the stealth browser client with Chrome
// headers, retrying on transient statuses. Returns an error when no browser
// client is configured.
func BrowserGet(ctx context.Context, pageURL string, extra map[string]string) ([]byte, error) {
	bc := cfg.BrowserClient
	if bc == nil {
		return nil, fmt.Errorf("browser client not configured")
	}
	headers := ChromeHeaders()
	for k, v := range extra {
		headers[k] = v
	}
	return RetryDo(ctx, DefaultRetryConfig, func() ([]byte, error) {
		data, _, status, err := bc.Do(http.MethodGet, pageURL, headers, nil)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("GET %s: HTTP %d", pageURL, status)
		}
		return data, nil
	})
}
