// Package auth authenticates accounts and decides who may enter the admin area.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password SignUp accepts
const MinPasswordLength = 6

// ProfileStore is the subset of the profile repository auth needs
type ProfileStore interface {
	Get(ctx context.Context, id string) (models.Profile, error)
	GetByEmail(ctx context.Context, email string) (models.Profile, error)
	Create(ctx context.Context, p models.Profile) error
	SetRole(ctx context.Context, id, role string) error
}

// MemberStore receives the member record created on sign up
type MemberStore interface {
	Upsert(ctx context.Context, m models.Member) error
}

// Event is a session change
type Event int

const (
	EventSignedIn Event = iota + 1
	EventSignedOut
)

func (e Event) String() string {
	switch e {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	}
	return "unknown"
}

// Session identifies a signed-in profile
type Session struct {
	ProfileID  string    `json:"profile_id"`
	Email      string    `json:"email"`
	SignedInAt time.Time `json:"signed_in_at"`
}

// Listener is notified of every session change
type Listener func(event Event, s Session)

// SignUpRequest carries the registration form
type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Username    string `json:"username" validate:"required"`
	CompanyName string `json:"company_name"`
}

// Provider signs accounts in and out and fans out session changes
type Provider struct {
	profiles ProfileStore
	members  MemberStore
	now      func() time.Time
	log      zerolog.Logger

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// NewProvider creates a provider. members may be nil, then sign up creates
// no member record.
func NewProvider(profiles ProfileStore, members MemberStore) *Provider {
	return &Provider{
		profiles:  profiles,
		members:   members,
		now:       time.Now,
		log:       logger.Component("auth"),
		listeners: make(map[int]Listener),
	}
}

var errInvalidCredentials = apperr.New(apperr.KindValidation, "Невірний email або пароль")

// SignIn checks the password and returns a new session
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, errInvalidCredentials
	}

	profile, err := p.profiles.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, errInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		p.log.Info().Str("email", profile.Email).Msg("Rejected sign in")
		return Session{}, errInvalidCredentials
	}

	s := Session{ProfileID: profile.ID, Email: profile.Email, SignedInAt: p.now().UTC()}
	p.emit(EventSignedIn, s)
	return s, nil
}

// SignUp creates a member-role profile together with a Free member record
func (p *Provider) SignUp(ctx context.Context, req SignUpRequest) (Session, error) {
	if len(req.Password) < MinPasswordLength {
		return Session{}, apperr.New(apperr.KindValidation,
			fmt.Sprintf("Пароль має містити щонайменше %d символів", MinPasswordLength))
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return Session{}, err
	}

	now := p.now().UTC()
	profile := models.Profile{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         models.RoleMember,
		Username:     req.Username,
		CompanyName:  req.CompanyName,
		UpdatedAt:    now,
	}
	if err := p.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return Session{}, apperr.Wrap(apperr.KindConflict, "Користувач з таким email вже існує", err)
		}
		return Session{}, err
	}

	if p.members != nil {
		name := req.CompanyName
		if name == "" {
			name = req.Username
		}
		member := models.Member{
			ID:             uuid.NewString(),
			Name:           name,
			MembershipType: models.MembershipFree,
			JoinDate:       now,
			Email:          profile.Email,
			Username:       req.Username,
			UserID:         profile.ID,
		}
		if err := p.members.Upsert(ctx, member); err != nil {
			// The account is usable without the directory entry.
			p.log.Error().Err(err).Str("profile_id", profile.ID).Msg("Failed to create member record")
		}
	}

	s := Session{ProfileID: profile.ID, Email: profile.Email, SignedInAt: now}
	p.emit(EventSignedIn, s)
	return s, nil
}

// SignOut notifies listeners that s has ended
func (p *Provider) SignOut(ctx context.Context, s Session) {
	p.emit(EventSignedOut, s)
}

// OnSessionChange registers cb and returns a function removing it
func (p *Provider) OnSessionChange(cb Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(event Event, s Session) {
	p.mu.RLock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.RUnlock()

	for _, l := range listeners {
		l(event, s)
	}
}

// EnsureAdmin creates an admin profile for email, or promotes the existing one
func (p *Provider) EnsureAdmin(ctx context.Context, email, password string) (models.Profile, error) {
	profile, err := p.profiles.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !profile.IsAdmin() {
			if err := p.profiles.SetRole(ctx, profile.ID, models.RoleAdmin); err != nil {
				return profile, err
			}
			profile.Role = models.RoleAdmin
		}
		return profile, nil
	case !errors.Is(err, storage.ErrNotFound):
		return models.Profile{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return models.Profile{}, err
	}
	profile = models.Profile{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Username:     "admin",
		UpdatedAt:    p.now().UTC(),
	}
	if err := p.profiles.Create(ctx, profile); err != nil {
		return models.Profile{}, err
	}
	return profile, nil
}

// HashPassword hashes a password with bcrypt's default cost
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
