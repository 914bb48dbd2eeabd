package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rybaukrainy/portal/internal/apperr"
)

// Fetcher downloads remote images for import
type Fetcher struct {
	client  *resty.Client
	maxSize int64
}

func NewFetcher(timeout time.Duration, maxSize int64) *Fetcher {
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			SetHeader("User-Agent", "rybaukrainy-portal/1.0"),
		maxSize: maxSize,
	}
}

// FetchImage retrieves rawURL and returns it as an upload file. Network and
// HTTP failures are FetchFailed errors.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (File, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return File{}, apperr.New(apperr.KindValidation, "Некоректне посилання на зображення")
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "image/*").
		Get(u.String())
	if err != nil {
		return File{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося отримати зображення за посиланням",
			fmt.Errorf("failed to fetch image from %s: %w", rawURL, err))
	}

	if resp.StatusCode() != http.StatusOK {
		return File{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося отримати зображення за посиланням",
			fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), rawURL))
	}

	body := resp.Body()
	if f.maxSize > 0 && int64(len(body)) > f.maxSize {
		return File{}, errTooLarge
	}

	return File{
		Name:        path.Base(u.Path),
		ContentType: resp.Header().Get("Content-Type"),
		Data:        body,
	}, nil
}
