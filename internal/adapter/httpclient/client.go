package httpclient

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout = 15 * time.Second
	UserAgent      = "wisenews_scraper/1.0"
)

// NewHTTPClient returns a resty client with the scraper's timeout, user agent
// and a small retry budget for transport errors.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", UserAgent).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
}
