package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rybaukrainy/portal/internal/models"
)

// ArticleRepository persists news articles
type ArticleRepository struct {
	db *sql.DB
}

// NewArticleRepository creates an article repository on the store
func NewArticleRepository(s *Store) *ArticleRepository {
	return &ArticleRepository{db: s.DB}
}

const articleColumns = `id, title, summary, content, image_url, publish_date, category, author, tags`

// List returns all articles, newest publish date first
func (r *ArticleRepository) List(ctx context.Context) ([]models.Article, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY publish_date DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Get loads one article by id
func (r *ArticleRepository) Get(ctx context.Context, id string) (models.Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Article{}, ErrNotFound
	}
	return a, err
}

// Upsert inserts the article or replaces the row with the same id
func (r *ArticleRepository) Upsert(ctx context.Context, a models.Article) error {
	return upsertArticle(ctx, r.db, a)
}

// UpsertFrom writes the article only if the stored row still has the
// fingerprint baseHash, "" meaning no row. The check and the write share one
// transaction; a mismatch returns ErrStale.
func (r *ArticleRepository) UpsertFrom(ctx context.Context, a models.Article, baseHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current := ""
	existing, err := scanArticle(tx.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, a.ID))
	switch {
	case err == nil:
		current = existing.Fingerprint()
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to read article %s: %w", a.ID, err)
	}
	if current != baseHash {
		return ErrStale
	}

	if err := upsertArticle(ctx, tx, a); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article %s: %w", a.ID, err)
	}
	return nil
}

func upsertArticle(ctx context.Context, db execer, a models.Article) error {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			content = excluded.content,
			image_url = excluded.image_url,
			publish_date = excluded.publish_date,
			category = excluded.category,
			author = excluded.author,
			tags = excluded.tags`,
		a.ID, a.Title, a.Summary, a.Content, nullString(a.ImageURL),
		formatTime(a.PublishDate), nullString(a.Category), nullString(a.Author), string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert article %s: %w", a.ID, err)
	}
	return nil
}

// Delete removes the article; ErrNotFound if nothing was deleted
func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanArticle(s scanner) (models.Article, error) {
	var (
		a                                   models.Article
		imageURL, publish, category, author sql.NullString
		tags                                string
	)
	if err := s.Scan(&a.ID, &a.Title, &a.Summary, &a.Content, &imageURL, &publish, &category, &author, &tags); err != nil {
		return a, err
	}
	a.ImageURL = imageURL.String
	a.PublishDate = parseTime(publish.String)
	a.Category = category.String
	a.Author = author.String
	a.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return a, fmt.Errorf("failed to decode tags of article %s: %w", a.ID, err)
		}
	}
	return a, nil
}
