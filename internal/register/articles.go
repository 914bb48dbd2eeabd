// Package register implements the admin registers over articles, members
// and membership payments on top of the storage repositories.
package register

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/storage"
)

//go:embed samples/articles.json
var samplesFS embed.FS

// relatedLimit caps the related articles shown next to an article
const relatedLimit = 3

var (
	errArticleNotFound = apperr.New(apperr.KindNotFound, "Статтю не знайдено")
	errStaleArticle    = apperr.New(apperr.KindConflict, "Статтю змінено іншим адміністратором після початку редагування")
	errConfirmDelete   = apperr.New(apperr.KindConfirmationRequired, "Підтвердіть видалення статті")
)

// ArticleRepository is the persistence the register needs
type ArticleRepository interface {
	List(ctx context.Context) ([]models.Article, error)
	Get(ctx context.Context, id string) (models.Article, error)
	Upsert(ctx context.Context, a models.Article) error
	// UpsertFrom writes only if the stored article still matches baseHash
	// and returns storage.ErrStale otherwise
	UpsertFrom(ctx context.Context, a models.Article, baseHash string) error
	Delete(ctx context.Context, id string) error
}

// ArticleList is a listing result. Degraded is set when the store could not
// be read and the bundled samples were returned instead.
type ArticleList struct {
	Articles []models.Article `json:"articles"`
	Degraded bool             `json:"degraded"`
}

// ArticleQuery filters public listings
type ArticleQuery struct {
	Query    string `query:"q"`
	Category string `query:"category"`
}

// ArticleRegister keeps the article list in memory alongside the store.
// Writes go to the store first and then to the list.
type ArticleRegister struct {
	repo    ArticleRepository
	metrics *metrics.Metrics
	log     zerolog.Logger
	samples []models.Article

	mu       sync.RWMutex
	articles []models.Article
	loaded   bool
}

// NewArticleRegister creates a register. The bundled samples are parsed
// eagerly so a broken file fails at startup.
func NewArticleRegister(repo ArticleRepository, m *metrics.Metrics) (*ArticleRegister, error) {
	samples, err := loadSamples()
	if err != nil {
		return nil, err
	}
	return &ArticleRegister{
		repo:    repo,
		metrics: m,
		log:     logger.Component("articles"),
		samples: samples,
	}, nil
}

func loadSamples() ([]models.Article, error) {
	data, err := samplesFS.ReadFile("samples/articles.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read sample articles: %w", err)
	}
	var samples []models.Article
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse sample articles: %w", err)
	}
	sortArticles(samples)
	return samples, nil
}

// List returns all articles, newest first. When the store fails the bundled
// samples are returned with Degraded set rather than an empty list.
func (r *ArticleRegister) List(ctx context.Context) (ArticleList, error) {
	articles, err := r.repo.List(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to list articles, serving samples")
		r.metrics.ArticleFallback()
		return ArticleList{Articles: cloneArticles(r.samples), Degraded: true}, nil
	}
	sortArticles(articles)

	r.mu.Lock()
	r.articles = articles
	r.loaded = true
	r.mu.Unlock()

	return ArticleList{Articles: cloneArticles(articles)}, nil
}

// Search lists articles matching q in title, summary or tags, optionally
// limited to one category.
func (r *ArticleRegister) Search(ctx context.Context, q ArticleQuery) (ArticleList, error) {
	list, err := r.List(ctx)
	if err != nil {
		return list, err
	}
	term := strings.ToLower(strings.TrimSpace(q.Query))
	filtered := []models.Article{}
	for _, a := range list.Articles {
		if q.Category != "" && a.Category != q.Category {
			continue
		}
		if term != "" && !matchesArticle(a, term) {
			continue
		}
		filtered = append(filtered, a)
	}
	list.Articles = filtered
	return list, nil
}

func matchesArticle(a models.Article, term string) bool {
	if strings.Contains(strings.ToLower(a.Title), term) || strings.Contains(strings.ToLower(a.Summary), term) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Get loads one article. If the store is unreachable the samples are
// consulted before giving up.
func (r *ArticleRegister) Get(ctx context.Context, id string) (models.Article, error) {
	a, err := r.repo.Get(ctx, id)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return models.Article{}, errArticleNotFound
	}
	r.log.Error().Err(err).Str("article_id", id).Msg("Failed to load article")
	for _, s := range r.samples {
		if s.ID == id {
			r.metrics.ArticleFallback()
			return cloneArticle(s), nil
		}
	}
	return models.Article{}, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося завантажити статтю", err)
}

// Related returns up to three other articles sharing the category or a tag
func (r *ArticleRegister) Related(ctx context.Context, a models.Article) ([]models.Article, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	related := []models.Article{}
	for _, other := range list.Articles {
		if other.ID == a.ID {
			continue
		}
		if other.Category == a.Category || sharesTag(a, other) {
			related = append(related, other)
			if len(related) == relatedLimit {
				break
			}
		}
	}
	return related, nil
}

func sharesTag(a, b models.Article) bool {
	for _, t := range a.Tags {
		if b.HasTag(t) {
			return true
		}
	}
	return false
}

// Save upserts the article. baseHash is the fingerprint of the version the
// caller started from, empty for a new article; if the stored article has
// changed since, Save fails with a Conflict unless force is set.
func (r *ArticleRegister) Save(ctx context.Context, a models.Article, baseHash string, force bool) (models.Article, error) {
	if err := validateArticle(a); err != nil {
		return models.Article{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.PublishDate.IsZero() {
		a.PublishDate = time.Now().UTC().Truncate(time.Second)
	}
	if !models.IsCategory(a.Category) {
		a.Category = models.DefaultCategory
	}
	if strings.TrimSpace(a.Author) == "" {
		a.Author = models.DefaultAuthor
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	var err error
	if force {
		err = r.repo.Upsert(ctx, a)
	} else {
		err = r.repo.UpsertFrom(ctx, a, baseHash)
	}
	if errors.Is(err, storage.ErrStale) {
		r.log.Warn().Str("article_id", a.ID).Msg("Rejected save of a stale draft")
		return models.Article{}, errStaleArticle
	}
	if err != nil {
		return models.Article{}, err
	}

	r.mu.Lock()
	if r.loaded {
		replaced := false
		for i := range r.articles {
			if r.articles[i].ID == a.ID {
				r.articles[i] = cloneArticle(a)
				replaced = true
				break
			}
		}
		if !replaced {
			r.articles = append(r.articles, cloneArticle(a))
		}
		sortArticles(r.articles)
	}
	r.mu.Unlock()

	r.log.Info().Str("article_id", a.ID).Bool("force", force).Msg("Article saved")
	return a, nil
}

// Delete removes the article from the store and the in-memory list. It must
// be confirmed by the caller.
func (r *ArticleRegister) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return errConfirmDelete
	}
	if err := r.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errArticleNotFound
		}
		return err
	}

	r.mu.Lock()
	for i := range r.articles {
		if r.articles[i].ID == id {
			r.articles = append(r.articles[:i], r.articles[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.log.Info().Str("article_id", id).Msg("Article deleted")
	return nil
}

// Cached returns the last listing kept in memory
func (r *ArticleRegister) Cached() []models.Article {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneArticles(r.articles)
}

func validateArticle(a models.Article) error {
	missing := make(map[string]string)
	if strings.TrimSpace(a.Title) == "" {
		missing["title"] = "required"
	}
	if strings.TrimSpace(a.Summary) == "" {
		missing["summary"] = "required"
	}
	if strings.TrimSpace(a.Content) == "" {
		missing["content"] = "required"
	}
	if len(missing) > 0 {
		return apperr.Validation(missing)
	}
	return nil
}

func sortArticles(articles []models.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].PublishDate.Equal(articles[j].PublishDate) {
			return articles[i].PublishDate.After(articles[j].PublishDate)
		}
		return articles[i].ID < articles[j].ID
	})
}

func cloneArticle(a models.Article) models.Article {
	tags := make([]string, len(a.Tags))
	copy(tags, a.Tags)
	a.Tags = tags
	return a
}

func cloneArticles(list []models.Article) []models.Article {
	out := make([]models.Article, len(list))
	for i, a := range list {
		out[i] = cloneArticle(a)
	}
	return out
}
