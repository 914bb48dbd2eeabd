package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/draft"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/models"
)

// ArticleStore loads and saves articles for the editor. Save rejects a stale
// baseHash with a Conflict error unless force is set.
type ArticleStore interface {
	Get(ctx context.Context, id string) (models.Article, error)
	Save(ctx context.Context, a models.Article, baseHash string, force bool) (models.Article, error)
}

var errNoSession = apperr.New(apperr.KindNotFound, "Сесію редагування не знайдено")

// Registry tracks open editing sessions. A draft is edited by at most one
// session, and an admin has a single scratch slot so opening a draft closes
// that admin's previous session.
type Registry struct {
	articles ArticleStore
	scratch  draft.Scratch
	uploader ImageUploader
	interval time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	byDraft  map[string]string
}

func NewRegistry(articles ArticleStore, scratch draft.Scratch, uploader ImageUploader, autosave time.Duration, m *metrics.Metrics) *Registry {
	return &Registry{
		articles: articles,
		scratch:  scratch,
		uploader: uploader,
		interval: autosave,
		metrics:  m,
		log:      logger.Component("editor"),
		now:      time.Now,
		sessions: make(map[string]*Session),
		byDraft:  make(map[string]string),
	}
}

func draftKey(profileID, articleID string) string {
	if articleID == "" {
		return "new:" + profileID
	}
	return "article:" + articleID
}

// Open starts editing articleID, or a new article when it is empty. Opening
// a draft the same admin already edits returns that session.
func (r *Registry) Open(ctx context.Context, profileID, articleID string) (*Session, error) {
	key := draftKey(profileID, articleID)

	r.mu.Lock()
	if id, ok := r.byDraft[key]; ok {
		s := r.sessions[id]
		r.mu.Unlock()
		if s.ProfileID != profileID {
			return nil, apperr.New(apperr.KindConflict, "Ця стаття вже редагується іншим адміністратором")
		}
		return s, nil
	}
	var previous []*Session
	for _, s := range r.sessions {
		if s.ProfileID == profileID {
			previous = append(previous, s)
		}
	}
	r.mu.Unlock()

	for _, s := range previous {
		r.Close(s.ID, profileID)
	}

	slot := draft.SlotFor(profileID)
	var (
		d         *draft.Draft
		recovered *draft.Draft
	)
	if articleID == "" {
		d = draft.CreateEmpty(r.now())
		rec, err := r.scratch.Load(slot)
		if err != nil {
			r.log.Warn().Err(err).Str("slot", slot).Msg("Failed to read scratch slot")
		}
		recovered = rec
	} else {
		a, err := r.articles.Get(ctx, articleID)
		if err != nil {
			return nil, err
		}
		d = draft.LoadExisting(a, r.scratch, slot)
	}

	s, err := newSession(uuid.NewString(), profileID, d, r.uploader, r.metrics, r.log)
	if err != nil {
		return nil, err
	}
	s.recovered = recovered

	r.mu.Lock()
	if id, ok := r.byDraft[key]; ok {
		// Lost a race with a concurrent Open of the same draft.
		existing := r.sessions[id]
		r.mu.Unlock()
		if existing.ProfileID != profileID {
			return nil, apperr.New(apperr.KindConflict, "Ця стаття вже редагується іншим адміністратором")
		}
		return existing, nil
	}
	s.saver = draft.StartAutosave(r.scratch, slot, r.interval, s.Snapshot)
	r.sessions[s.ID] = s
	r.byDraft[key] = s.ID
	r.mu.Unlock()

	r.log.Info().
		Str("session", s.ID).
		Str("profile_id", profileID).
		Str("article_id", articleID).
		Bool("recoverable", recovered != nil).
		Msg("Editing session opened")
	return s, nil
}

// Get returns the session if it belongs to profileID
func (r *Registry) Get(id, profileID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.ProfileID != profileID {
		return nil, errNoSession
	}
	return s, nil
}

// Save validates and persists the draft, then ends the session and clears
// the scratch slot. A failed save keeps the session open.
func (r *Registry) Save(ctx context.Context, id, profileID string, force bool) (models.Article, error) {
	s, err := r.Get(id, profileID)
	if err != nil {
		return models.Article{}, err
	}

	article, base, err := s.prepareSave(r.now())
	if err != nil {
		return models.Article{}, err
	}
	saved, err := r.articles.Save(ctx, article, base, force)
	if err != nil {
		return models.Article{}, err
	}
	s.markSaved(saved)

	if r.remove(s) {
		s.saver.Discard()
	}
	r.log.Info().Str("session", id).Str("article_id", saved.ID).Msg("Article saved from editor")
	return saved, nil
}

// Cancel ends the session and drops its unsaved changes
func (r *Registry) Cancel(id, profileID string) error {
	s, err := r.Get(id, profileID)
	if err != nil {
		return err
	}
	if r.remove(s) {
		s.saver.Discard()
	}
	return nil
}

// Close ends the session, keeping unsaved changes in the scratch slot
func (r *Registry) Close(id, profileID string) error {
	s, err := r.Get(id, profileID)
	if err != nil {
		return err
	}
	if r.remove(s) {
		s.saver.Stop()
	}
	return nil
}

// CloseAll closes the sessions of one admin, as on sign out
func (r *Registry) CloseAll(profileID string) {
	r.closeMatching(func(s *Session) bool { return s.ProfileID == profileID })
}

// Shutdown closes every session, flushing unsaved drafts
func (r *Registry) Shutdown() {
	r.closeMatching(func(*Session) bool { return true })
}

func (r *Registry) closeMatching(match func(*Session) bool) {
	r.mu.Lock()
	var sessions []*Session
	for _, s := range r.sessions {
		if match(s) {
			sessions = append(sessions, s)
		}
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if r.remove(s) {
			s.saver.Stop()
		}
	}
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// remove unregisters s and reports whether this call did it
func (r *Registry) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return false
	}
	delete(r.sessions, s.ID)
	for key, id := range r.byDraft {
		if id == s.ID {
			delete(r.byDraft, key)
		}
	}
	return true
}
