package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/draft"
	"github.com/rybaukrainy/portal/internal/ingest"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/models"
)

// Tab is one of the three views over the draft content
type Tab string

const (
	TabEditor  Tab = "editor"
	TabHTML    Tab = "html"
	TabPreview Tab = "preview"
)

func (t Tab) Valid() bool {
	return t == TabEditor || t == TabHTML || t == TabPreview
}

// ImageUploader stores images for admins
type ImageUploader interface {
	Upload(ctx context.Context, sess *auth.Session, f ingest.File) (ingest.Result, error)
	ImportURL(ctx context.Context, sess *auth.Session, rawURL string) (ingest.Result, error)
}

// ImageRequest inserts an uploaded file or a remote URL. Cover images go to
// the article's image field instead of the content.
type ImageRequest struct {
	File      *ingest.File
	URL       string
	Cover     bool
	Selection *Selection
}

// View is what the client renders for a session
type View struct {
	ID          string      `json:"id"`
	Tab         Tab         `json:"tab"`
	Draft       draft.Draft `json:"draft"`
	Tags        string      `json:"tags"`
	HTML        string      `json:"html,omitempty"`
	Preview     string      `json:"preview,omitempty"`
	CanUndo     bool        `json:"can_undo"`
	CanRedo     bool        `json:"can_redo"`
	IsNew       bool        `json:"is_new"`
	Recoverable bool        `json:"recoverable"`
	Categories  []string    `json:"categories"`
}

// Session is one admin editing one draft. Methods are safe for concurrent
// use; the autosaver reads the draft from its own goroutine.
type Session struct {
	ID        string
	ProfileID string

	mu        sync.Mutex
	draft     *draft.Draft
	surface   *DOMSurface
	tab       Tab
	modified  bool
	recovered *draft.Draft

	uploader ImageUploader
	policy   *bluemonday.Policy
	metrics  *metrics.Metrics
	log      zerolog.Logger
	saver    *draft.Autosaver
}

func newSession(id, profileID string, d *draft.Draft, uploader ImageUploader, m *metrics.Metrics, log zerolog.Logger) (*Session, error) {
	surface, err := NewDOMSurface(d.Content)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        id,
		ProfileID: profileID,
		draft:     d,
		surface:   surface,
		tab:       TabEditor,
		uploader:  uploader,
		policy:    bluemonday.UGCPolicy(),
		metrics:   m,
		log:       log.With().Str("session", id).Logger(),
	}
	// Called with s.mu held, from surface changes made by the session.
	surface.OnContentChanged(func(content string) {
		s.draft.Content = content
		s.modified = true
	})
	return s, nil
}

// View returns the current state
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Session) view() View {
	v := View{
		ID:          s.ID,
		Tab:         s.tab,
		Draft:       s.draft.Clone(),
		Tags:        s.draft.TagString(),
		CanUndo:     s.surface.CanUndo(),
		CanRedo:     s.surface.CanRedo(),
		IsNew:       s.draft.IsNew(),
		Recoverable: s.recovered != nil,
		Categories:  models.Categories,
	}
	switch s.tab {
	case TabHTML:
		v.HTML = s.draft.Content
	case TabPreview:
		v.Preview = s.policy.Sanitize(s.draft.Content)
	}
	return v
}

// Snapshot returns a copy of the draft and whether it has unsaved changes
func (s *Session) Snapshot() (draft.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone(), s.modified
}

// Preview renders the content through the sanitizing policy
func (s *Session) Preview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.Sanitize(s.draft.Content)
}

// Apply runs a toolbar command on the editor tab
func (s *Session) Apply(cmd Command) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tab != TabEditor {
		return s.view(), apperr.New(apperr.KindValidation, "Форматування доступне лише у візуальному редакторі")
	}

	err := s.surface.ApplyFormat(cmd)
	switch {
	case err == nil:
		s.metrics.EditorCommand(string(cmd.Kind), "ok")
	case errors.Is(err, ErrUnsupportedCommand):
		s.metrics.EditorCommand("unsupported", "ignored")
		s.log.Warn().Str("command", string(cmd.Kind)).Msg("Ignoring unsupported editor command")
		err = nil
	case errors.Is(err, ErrSelectionRequired):
		s.metrics.EditorCommand(string(cmd.Kind), "rejected")
		err = apperr.Wrap(apperr.KindValidation, "Спочатку виділіть текст", err)
	case errors.Is(err, ErrValueRequired):
		s.metrics.EditorCommand(string(cmd.Kind), "rejected")
		err = apperr.Wrap(apperr.KindValidation, "Вкажіть посилання", err)
	default:
		s.metrics.EditorCommand(string(cmd.Kind), "error")
	}
	return s.view(), err
}

// Input records content typed into the current tab
func (s *Session) Input(content string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.input(content)
	return s.view(), err
}

func (s *Session) input(content string) error {
	switch s.tab {
	case TabEditor:
		return s.surface.SetSerializedContent(content)
	case TabHTML:
		if content != s.draft.Content {
			s.draft.Content = content
			s.modified = true
		}
		return nil
	}
	return apperr.New(apperr.KindValidation, "Попередній перегляд не можна редагувати")
}

// Blur is sent when the surface loses focus. content, when given, is the
// final state of the surface.
func (s *Session) Blur(content *string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if content != nil {
		if err := s.input(*content); err != nil {
			return s.view(), err
		}
	}
	s.readBack()
	return s.view(), nil
}

// readBack copies the serialized surface into the draft
func (s *Session) readBack() {
	if s.tab != TabEditor {
		return
	}
	if content := s.surface.SerializedContent(); content != s.draft.Content {
		s.draft.Content = content
		s.modified = true
	}
}

// SwitchTab moves between editor, HTML and preview. Markup edited on the
// HTML tab is re-rendered into the editor when switching back.
func (s *Session) SwitchTab(tab Tab) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !tab.Valid() {
		return s.view(), apperr.New(apperr.KindValidation, "Невідома вкладка")
	}
	if tab == s.tab {
		return s.view(), nil
	}

	s.readBack()
	if tab == TabEditor {
		if err := s.surface.SetSerializedContent(s.draft.Content); err != nil {
			return s.view(), err
		}
	}
	s.tab = tab
	return s.view(), nil
}

// SetField changes a form field of the draft
func (s *Session) SetField(field draft.Field, value string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if field == draft.FieldContent {
		err := s.input(value)
		return s.view(), err
	}
	if err := s.draft.Mutate(field, value); err != nil {
		return s.view(), err
	}
	s.modified = true
	return s.view(), nil
}

// AttachImage uploads an image and places it in the content or as the cover.
// On failure the draft is left as it was.
func (s *Session) AttachImage(ctx context.Context, authSess *auth.Session, req ImageRequest) (View, error) {
	var (
		res ingest.Result
		err error
	)
	// The upload runs without the session lock so autosave keeps working.
	if req.File != nil {
		res, err = s.uploader.Upload(ctx, authSess, *req.File)
	} else {
		res, err = s.uploader.ImportURL(ctx, authSess, req.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Msg("Image was not inserted")
		return s.view(), err
	}

	if req.Cover {
		s.draft.ImageURL = res.URL
		s.modified = true
		return s.view(), nil
	}
	if s.tab != TabEditor {
		// Outside the surface the image goes to the end of the markup.
		if err := s.surface.SetSerializedContent(s.draft.Content); err != nil {
			return s.view(), err
		}
		req.Selection = nil
	}
	if err := s.surface.ApplyFormat(Command{Kind: InsertImage, Value: res.URL, Selection: req.Selection}); err != nil {
		return s.view(), err
	}
	s.metrics.EditorCommand(string(InsertImage), "ok")
	return s.view(), nil
}

// Recover replaces the draft with the one found in the scratch buffer when
// the session was opened.
func (s *Session) Recover() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recovered == nil {
		return s.view(), apperr.New(apperr.KindNotFound, "Немає збереженої чернетки")
	}
	s.draft = s.recovered
	s.recovered = nil
	if err := s.surface.SetSerializedContent(s.draft.Content); err != nil {
		return s.view(), err
	}
	s.modified = true
	return s.view(), nil
}

// prepareSave validates the draft and serializes it, returning the
// fingerprint of the article it was loaded from.
func (s *Session) prepareSave(now time.Time) (models.Article, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readBack()
	if err := s.draft.Validate(); err != nil {
		return models.Article{}, "", err
	}
	return s.draft.SerializeForSave(now), s.draft.BaseHash, nil
}

func (s *Session) markSaved(a models.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.BaseHash = a.Fingerprint()
	s.modified = false
}
