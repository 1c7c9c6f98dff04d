package chromedp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Fetch renders pages in a headless browser. Headers other than the user
// agent are not applied; the browser sends its own.
type Fetch struct {
	UserAgent string
}

func (f *Fetch) Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (int, string, error) {
	if strings.TrimSpace(url) == "" {
		return 0, "", errors.New("invalid url")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ua := f.UserAgent
	if v, ok := headers["User-Agent"]; ok && v != "" {
		ua = v
	}
	html, err := fetchHTML(ctx, url, ua)
	if err != nil {
		return 0, "", err
	}
	return 200, html, nil
}

func fetchHTML(ctx context.Context, url, userAgent string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
