// Package ingest accepts images from admins, shrinks large ones and stores
// them with retries.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/config"
	"github.com/rybaukrainy/portal/internal/imaging"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/objectstore"
)

var (
	errEmptyFile   = apperr.New(apperr.KindValidation, "Файл порожній")
	errTooLarge    = apperr.New(apperr.KindValidation, "Файл завеликий")
	errNotAnImage  = apperr.New(apperr.KindValidation, "Непідтримуваний формат зображення")
	allowedFormats = map[string]bool{"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true}
)

// File is an image as received from a form or a remote URL
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result describes a stored image
type Result struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int    `json:"size"`
	Resized  bool   `json:"resized"`
	Attempts int    `json:"attempts"`
}

// Authorizer admits admins only
type Authorizer interface {
	RequireAdmin(ctx context.Context, sess *auth.Session) (auth.Visitor, error)
}

// Uploader runs the image pipeline: authorize, resize, name, store with retries
type Uploader struct {
	gate    Authorizer
	store   objectstore.Store
	fetcher *Fetcher
	metrics *metrics.Metrics
	log     zerolog.Logger

	attempts    int
	backoff     time.Duration
	threshold   int64
	maxKB       int
	maxFileSize int64

	sleep   func(ctx context.Context, d time.Duration) error
	newName func() string
}

func NewUploader(gate Authorizer, store objectstore.Store, cfg *config.Config, m *metrics.Metrics) *Uploader {
	return &Uploader{
		gate:        gate,
		store:       store,
		fetcher:     NewFetcher(cfg.FetchTimeout, cfg.MaxFileSize),
		metrics:     m,
		log:         logger.Component("ingest"),
		attempts:    max(1, cfg.UploadAttempts),
		backoff:     cfg.UploadBackoff,
		threshold:   cfg.ResizeThreshold,
		maxKB:       cfg.ResizeMaxKB,
		maxFileSize: cfg.MaxFileSize,
		sleep:       sleepContext,
		newName:     uuid.NewString,
	}
}

// Upload stores f for an admin session and returns its public URL.
// Anonymous callers are rejected before any storage call.
func (u *Uploader) Upload(ctx context.Context, sess *auth.Session, f File) (Result, error) {
	if _, err := u.gate.RequireAdmin(ctx, sess); err != nil {
		return Result{}, err
	}
	return u.ingest(ctx, f)
}

// ImportURL downloads an image and stores it like an upload
func (u *Uploader) ImportURL(ctx context.Context, sess *auth.Session, rawURL string) (Result, error) {
	if _, err := u.gate.RequireAdmin(ctx, sess); err != nil {
		return Result{}, err
	}
	f, err := u.fetcher.FetchImage(ctx, rawURL)
	if err != nil {
		u.log.Warn().Err(err).Str("url", rawURL).Msg("Image import failed")
		return Result{}, err
	}
	return u.ingest(ctx, f)
}

func (u *Uploader) ingest(ctx context.Context, f File) (Result, error) {
	if len(f.Data) == 0 {
		return Result{}, errEmptyFile
	}
	if u.maxFileSize > 0 && int64(len(f.Data)) > u.maxFileSize {
		return Result{}, errTooLarge
	}
	mtype := mimetype.Detect(f.Data)
	if !allowedFormats[mtype.String()] {
		return Result{}, errNotAnImage
	}

	if err := u.store.EnsureBucket(ctx); err != nil {
		// The bucket usually exists already; a failed check must not block uploads.
		u.log.Warn().Err(err).Msg("Failed to ensure image bucket")
	}

	data, ext, contentType := f.Data, mtype.Extension(), mtype.String()
	resized := false
	if int64(len(data)) > u.threshold {
		res, err := imaging.Resize(data, u.maxKB)
		if err != nil {
			u.log.Warn().Err(err).Str("name", f.Name).Msg("Resize failed, uploading original")
		} else {
			data, ext, contentType = res.Data, ".jpg", "image/jpeg"
			resized = true
			u.log.Debug().
				Int("original", len(f.Data)).
				Int("resized", len(data)).
				Int("quality", res.Quality).
				Msg("Image resized")
		}
	}

	key := u.newName() + ext
	var lastErr error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		err := u.store.Put(ctx, key, data, contentType)
		u.metrics.UploadAttempt(err == nil)
		if err == nil {
			u.log.Info().Str("key", key).Int("size", len(data)).Int("attempt", attempt).Msg("Image uploaded")
			return Result{URL: u.store.PublicURL(key), Key: key, Size: len(data), Resized: resized, Attempts: attempt}, nil
		}

		lastErr = err
		u.log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("Image upload attempt failed")
		if attempt < u.attempts {
			if err := u.sleep(ctx, u.backoff); err != nil {
				lastErr = err
				break
			}
		}
	}

	return Result{}, apperr.Wrap(apperr.KindUploadFailed,
		"Не вдалося завантажити зображення: "+strings.TrimSpace(lastErr.Error()),
		fmt.Errorf("upload of %s failed: %w", key, lastErr))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
