package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/cache"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/storage"
)

// State is what the gate knows about a visitor
type State int

const (
	Anonymous State = iota
	Member
	Admin
)

func (s State) String() string {
	switch s {
	case Member:
		return "member"
	case Admin:
		return "admin"
	}
	return "anonymous"
}

// Visitor is the resolved identity of a request
type Visitor struct {
	State     State  `json:"-"`
	ProfileID string `json:"profile_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

func (v Visitor) IsAdmin() bool {
	return v.State == Admin
}

var (
	errAuthRequired = apperr.New(apperr.KindAuthRequired, "Будь ласка, увійдіть в систему")
	errForbidden    = apperr.New(apperr.KindForbidden, "Доступ заборонено")
)

// Gate resolves sessions to visitors. Roles are cached per profile.
type Gate struct {
	profiles ProfileStore
	roles    cache.RoleCache
	ttl      time.Duration
	log      zerolog.Logger
}

func NewGate(profiles ProfileStore, roles cache.RoleCache, ttl time.Duration) *Gate {
	return &Gate{
		profiles: profiles,
		roles:    roles,
		ttl:      ttl,
		log:      logger.Component("gate"),
	}
}

// Resolve classifies the session. A nil session is anonymous.
func (g *Gate) Resolve(ctx context.Context, sess *Session) (Visitor, error) {
	if sess == nil {
		return Visitor{State: Anonymous}, nil
	}
	v := Visitor{State: Member, ProfileID: sess.ProfileID, Email: sess.Email}

	role, err := g.role(ctx, sess.ProfileID)
	if err != nil {
		return v, err
	}
	switch role {
	case models.RoleAdmin:
		v.State = Admin
	case "":
		v.State = Anonymous
	}
	return v, nil
}

// RequireAdmin returns the visitor when it is an admin and an AuthRequired or
// Forbidden error otherwise. Lookup failures deny access.
func (g *Gate) RequireAdmin(ctx context.Context, sess *Session) (Visitor, error) {
	if sess == nil {
		return Visitor{State: Anonymous}, errAuthRequired
	}

	v, err := g.Resolve(ctx, sess)
	if err != nil {
		g.log.Error().Err(err).Str("profile_id", sess.ProfileID).Msg("Role lookup failed, denying access")
		return Visitor{State: Member, ProfileID: sess.ProfileID}, apperr.Wrap(apperr.KindForbidden, "Сталася помилка. Спробуйте ще раз.", err)
	}
	switch v.State {
	case Admin:
		return v, nil
	case Anonymous:
		return v, errAuthRequired
	}
	return v, errForbidden
}

// RequireSignedIn returns the visitor when the session belongs to an existing
// profile of any role and an AuthRequired error otherwise.
func (g *Gate) RequireSignedIn(ctx context.Context, sess *Session) (Visitor, error) {
	if sess == nil {
		return Visitor{State: Anonymous}, errAuthRequired
	}

	v, err := g.Resolve(ctx, sess)
	if err != nil {
		g.log.Error().Err(err).Str("profile_id", sess.ProfileID).Msg("Role lookup failed, denying access")
		return Visitor{State: Anonymous}, apperr.Wrap(apperr.KindForbidden, "Сталася помилка. Спробуйте ще раз.", err)
	}
	if v.State == Anonymous {
		return v, errAuthRequired
	}
	return v, nil
}

// Invalidate drops the cached role of a profile
func (g *Gate) Invalidate(ctx context.Context, profileID string) {
	if err := g.roles.InvalidateRole(ctx, profileID); err != nil {
		g.log.Warn().Err(err).Str("profile_id", profileID).Msg("Failed to invalidate cached role")
	}
}

// Watch invalidates cached roles on every session change of p
func (g *Gate) Watch(p *Provider) func() {
	return p.OnSessionChange(func(event Event, s Session) {
		g.log.Debug().Str("event", event.String()).Str("profile_id", s.ProfileID).Msg("Session changed")
		g.Invalidate(context.Background(), s.ProfileID)
	})
}

// role returns "" when the profile no longer exists
func (g *Gate) role(ctx context.Context, profileID string) (string, error) {
	role, err := g.roles.GetRole(ctx, profileID)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		g.log.Warn().Err(err).Msg("Role cache unavailable, reading profile")
	}

	profile, err := g.profiles.Get(ctx, profileID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if err := g.roles.SetRole(ctx, profileID, profile.Role, g.ttl); err != nil {
		g.log.Warn().Err(err).Msg("Failed to cache role")
	}
	return profile.Role, nil
}
