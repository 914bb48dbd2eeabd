// Package draft holds the in-progress state of an article being edited.
package draft

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/models"
)

// Field names a mutable draft field
type Field string

const (
	FieldTitle       Field = "title"
	FieldSummary     Field = "summary"
	FieldContent     Field = "content"
	FieldImageURL    Field = "image_url"
	FieldPublishDate Field = "publish_date"
	FieldCategory    Field = "category"
	FieldAuthor      Field = "author"
	FieldTags        Field = "tags"
)

// DateLayout is the form-field format of PublishDate
const DateLayout = "2006-01-02"

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", DateLayout}

// Draft is an article under edit. PublishDate keeps whatever the user typed
// until the draft is serialized.
type Draft struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url"`
	PublishDate string    `json:"publish_date"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	Tags        []string  `json:"tags"`
	BaseHash    string    `json:"base_hash,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateEmpty returns a blank draft with default category, author and today's date
func CreateEmpty(now time.Time) *Draft {
	return &Draft{
		PublishDate: now.Format(DateLayout),
		Category:    models.DefaultCategory,
		Author:      models.DefaultAuthor,
		Tags:        []string{},
		UpdatedAt:   now,
	}
}

// FromArticle copies a persisted article into a draft, remembering its
// fingerprint for stale-write detection.
func FromArticle(a models.Article) *Draft {
	tags := make([]string, len(a.Tags))
	copy(tags, a.Tags)
	d := &Draft{
		ID:        a.ID,
		Title:     a.Title,
		Summary:   a.Summary,
		Content:   a.Content,
		ImageURL:  a.ImageURL,
		Category:  a.Category,
		Author:    a.Author,
		Tags:      tags,
		BaseHash:  a.Fingerprint(),
		UpdatedAt: time.Now(),
	}
	if !a.PublishDate.IsZero() {
		d.PublishDate = a.PublishDate.UTC().Format(time.RFC3339)
	}
	return d
}

// Mutate replaces one field. Tags are given as a comma separated string.
func (d *Draft) Mutate(field Field, value string) error {
	switch field {
	case FieldTitle:
		d.Title = value
	case FieldSummary:
		d.Summary = value
	case FieldContent:
		d.Content = value
	case FieldImageURL:
		d.ImageURL = value
	case FieldPublishDate:
		d.PublishDate = value
	case FieldCategory:
		d.Category = value
	case FieldAuthor:
		d.Author = value
	case FieldTags:
		d.Tags = FormatTags(value)
	default:
		return apperr.New(apperr.KindValidation, fmt.Sprintf("Невідоме поле: %s", field))
	}
	d.UpdatedAt = time.Now()
	return nil
}

// FormatTags splits a comma separated list, trims every entry and drops
// empty and repeated ones, keeping first-seen order.
func FormatTags(s string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// TagString is the inverse of FormatTags, for form fields
func (d *Draft) TagString() string {
	return strings.Join(d.Tags, ", ")
}

// IsNew reports whether the draft has never been saved
func (d *Draft) IsNew() bool {
	return d.BaseHash == ""
}

// Validate checks the fields required before save
func (d *Draft) Validate() error {
	missing := make(map[string]string)
	if strings.TrimSpace(d.Title) == "" {
		missing[string(FieldTitle)] = "required"
	}
	if strings.TrimSpace(d.Summary) == "" {
		missing[string(FieldSummary)] = "required"
	}
	if strings.TrimSpace(d.Content) == "" {
		missing[string(FieldContent)] = "required"
	}
	if len(missing) > 0 {
		return apperr.Validation(missing)
	}
	return nil
}

// SerializeForSave builds the article to persist. A generated id and the
// normalized publish date are written back, so repeated calls return the
// same article.
func (d *Draft) SerializeForSave(now time.Time) models.Article {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	published := parseDate(d.PublishDate)
	if published.IsZero() {
		published = now.UTC().Truncate(time.Second)
	}
	d.PublishDate = published.Format(time.RFC3339)

	category := d.Category
	if !models.IsCategory(category) {
		category = models.DefaultCategory
	}
	author := strings.TrimSpace(d.Author)
	if author == "" {
		author = models.DefaultAuthor
	}
	tags := make([]string, len(d.Tags))
	copy(tags, d.Tags)

	return models.Article{
		ID:          d.ID,
		Title:       strings.TrimSpace(d.Title),
		Summary:     strings.TrimSpace(d.Summary),
		Content:     d.Content,
		ImageURL:    strings.TrimSpace(d.ImageURL),
		PublishDate: published,
		Category:    category,
		Author:      author,
		Tags:        tags,
	}
}

// Clone returns a deep copy
func (d *Draft) Clone() Draft {
	c := *d
	c.Tags = make([]string, len(d.Tags))
	copy(c.Tags, d.Tags)
	return c
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second)
		}
	}
	return time.Time{}
}
