package register

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/models"
	"github.com/rybaukrainy/portal/internal/storage"
)

var (
	errMemberNotFound      = apperr.New(apperr.KindNotFound, "Учасника не знайдено")
	errConfirmMemberDelete = apperr.New(apperr.KindConfirmationRequired, "Підтвердіть видалення учасника")
)

// MemberRepository is the persistence the member register needs
type MemberRepository interface {
	List(ctx context.Context) ([]models.Member, error)
	Get(ctx context.Context, id string) (models.Member, error)
	GetByUserID(ctx context.Context, userID string) (models.Member, error)
	Upsert(ctx context.Context, m models.Member) error
	Delete(ctx context.Context, id string) error
}

// MemberQuery filters the member list. Query matches name or description,
// case-insensitively.
type MemberQuery struct {
	Query      string                `query:"q"`
	Membership models.MembershipType `query:"membership"`
}

type MemberRegister struct {
	repo MemberRepository
	log  zerolog.Logger
	now  func() time.Time
}

func NewMemberRegister(repo MemberRepository) *MemberRegister {
	return &MemberRegister{repo: repo, log: logger.Component("members"), now: time.Now}
}

// List returns members matching q
func (r *MemberRegister) List(ctx context.Context, q MemberQuery) ([]models.Member, error) {
	members, err := r.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFetchFailed, "Не вдалося завантажити список учасників", err)
	}
	term := strings.ToLower(strings.TrimSpace(q.Query))
	filtered := []models.Member{}
	for _, m := range members {
		if q.Membership != "" && m.MembershipType != q.Membership {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(m.Name), term) &&
			!strings.Contains(strings.ToLower(m.Description), term) {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered, nil
}

func (r *MemberRegister) Get(ctx context.Context, id string) (models.Member, error) {
	m, err := r.repo.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Member{}, errMemberNotFound
	}
	return m, err
}

// ForUser returns the member record linked to an account
func (r *MemberRegister) ForUser(ctx context.Context, userID string) (models.Member, error) {
	m, err := r.repo.GetByUserID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Member{}, errMemberNotFound
	}
	return m, err
}

// SaveOwn applies a member's edits to their own record. Tier, join date and
// the account link stay as stored.
func (r *MemberRegister) SaveOwn(ctx context.Context, userID string, m models.Member) (models.Member, error) {
	stored, err := r.ForUser(ctx, userID)
	if err != nil {
		return models.Member{}, err
	}
	m.ID = stored.ID
	m.UserID = stored.UserID
	m.Username = stored.Username
	m.MembershipType = stored.MembershipType
	m.JoinDate = stored.JoinDate
	return r.Save(ctx, m)
}

// Save creates or replaces a member. A missing membership type means Free.
func (r *MemberRegister) Save(ctx context.Context, m models.Member) (models.Member, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return models.Member{}, apperr.Validation(map[string]string{"name": "required"})
	}
	if m.MembershipType == "" {
		m.MembershipType = models.MembershipFree
	}
	if !m.MembershipType.Valid() {
		return models.Member{}, apperr.Validation(map[string]string{"membership_type": "oneof"})
	}
	if m.ProductionAmount < 0 {
		return models.Member{}, apperr.Validation(map[string]string{"production_amount": "min"})
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinDate.IsZero() {
		m.JoinDate = r.now().UTC().Truncate(time.Second)
	}

	if err := r.repo.Upsert(ctx, m); err != nil {
		return models.Member{}, err
	}
	r.log.Info().Str("member_id", m.ID).Str("membership", string(m.MembershipType)).Msg("Member saved")
	return m, nil
}

// ChangeMembership moves a member to another tier
func (r *MemberRegister) ChangeMembership(ctx context.Context, id string, t models.MembershipType) (models.Member, error) {
	if !t.Valid() {
		return models.Member{}, apperr.Validation(map[string]string{"membership_type": "oneof"})
	}
	m, err := r.Get(ctx, id)
	if err != nil {
		return models.Member{}, err
	}
	m.MembershipType = t
	if err := r.repo.Upsert(ctx, m); err != nil {
		return models.Member{}, err
	}
	r.log.Info().Str("member_id", id).Str("membership", string(t)).Msg("Membership changed")
	return m, nil
}

// Delete removes a member once confirmed. Payments referencing it are kept.
func (r *MemberRegister) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return errConfirmMemberDelete
	}
	if err := r.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errMemberNotFound
		}
		return err
	}
	r.log.Info().Str("member_id", id).Msg("Member deleted")
	return nil
}
