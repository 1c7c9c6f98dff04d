// Package httpfetch fetches pages with a plain HTTP GET.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxBodyBytes caps how much of a page is read.
const MaxBodyBytes = 4 << 20

type Fetch struct {
	Client *http.Client
}

func New() *Fetch {
	return &Fetch{Client: &http.Client{}}
}

// Get returns the response status and body. Non-2xx responses are returned
// with their status and a nil error so callers can decide what to keep.
func (f *Fetch) Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (int, string, error) {
	if strings.TrimSpace(url) == "" {
		return 0, "", errors.New("invalid url")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read %s: %w", url, err)
	}
	return resp.StatusCode, string(body), nil
}
