package models

import (
	"strings"
	"time"

	"github.com/rybaukrainy/portal/internal/utils"
)

const (
	// DefaultCategory is used when an article has no (or an unknown) category
	DefaultCategory = "Загальні новини"
	// DefaultAuthor is used when an article has no author
	DefaultAuthor = "Адміністратор"
)

// Categories is the fixed set of news categories, default first
var Categories = []string{
	DefaultCategory,
	"Події",
	"Законодавство",
	"Ринок",
	"Аквакультура",
	"Міжнародне співробітництво",
}

// IsCategory reports whether name is one of Categories
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Article is a news article as stored in the articles table
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url"`
	PublishDate time.Time `json:"publish_date"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags"`
}

// Fingerprint identifies the persisted state of an article. Two articles with
// equal fingerprints have identical field values.
func (a Article) Fingerprint() string {
	return utils.Hash(
		a.ID,
		a.Title,
		a.Summary,
		a.Content,
		a.ImageURL,
		a.PublishDate.UTC().Format(time.RFC3339),
		a.Category,
		a.Author,
		strings.Join(a.Tags, ","),
	)
}

// HasTag reports whether the article carries tag
func (a Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
