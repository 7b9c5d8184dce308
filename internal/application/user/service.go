package user

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"farmdirect-backend/internal/application/emails"
	policies "farmdirect-backend/internal/application/policies/user"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/constants"
	"farmdirect-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service holds DB and Redis for user operations.
type Service struct {
	DB     *gorm.DB
	Rdb    *redis.Client
	Mailer emails.Sender
}

type CreateUserInput struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// CreateUser registers an account. Role defaults to buyer; admin cannot be self-assigned.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if in.Email == "" || !validation.IsValidEmail(strings.TrimSpace(in.Email)) {
		return nil, apperr.New(apperr.ValidationError, "Invalid email format")
	}
	if in.Password == "" || !validation.IsValidPassword(in.Password) {
		return nil, apperr.New(apperr.ValidationError, "Invalid password format")
	}
	trimmed := strings.TrimSpace(in.Fullname)
	if trimmed == "" {
		return nil, apperr.New(apperr.ValidationError, "Full name is required and must be a non-empty string")
	}
	if !validation.IsValidFullname(trimmed) {
		return nil, apperr.New(apperr.ValidationError, "Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	}
	var phone *string
	if p := strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", ""); p != "" {
		if !validation.IsValidPhone(p) {
			return nil, apperr.New(apperr.ValidationError, "Invalid phone number")
		}
		phone = &p
	}
	role := in.Role
	if role == "" {
		role = constants.Buyer
	}
	if !constants.IsSelfAssignableRole(role) {
		return nil, apperr.New(apperr.ValidationError, "Role must be one of buyer, seller, farmer")
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	var existing domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, apperr.New(apperr.ValidationError, "Email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 10)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to hash password")
	}
	u := &domain.User{
		Fullname:     titleCaseAndNormalize(trimmed),
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.New(apperr.ValidationError, "Email already registered")
		}
		return nil, apperr.Wrap(err, "Failed to create user")
	}
	if s.Mailer != nil {
		if err := s.Mailer.SendWelcome(ctx, u.Email, u.Fullname); err != nil {
			log.Warn().Err(err).Str("user_id", u.UserID.String()).Msg("welcome email failed")
		}
	}
	return u, nil
}

// UpdateUser updates the caller's own profile. Allowed: fullname, phone, password.
func (s *Service) UpdateUser(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) (*domain.User, error) {
	if len(fields) == 0 {
		return nil, apperr.New(apperr.ValidationError, "Missing update fields")
	}
	upd := make(map[string]interface{})
	if fn, ok := fields["fullname"].(string); ok {
		trimmed := strings.TrimSpace(fn)
		if trimmed == "" || !validation.IsValidFullname(trimmed) {
			return nil, apperr.New(apperr.ValidationError, "Full name contains invalid characters")
		}
		upd["fullname"] = titleCaseAndNormalize(trimmed)
	}
	if p, ok := fields["phone"].(string); ok {
		p = strings.ReplaceAll(strings.TrimSpace(p), " ", "")
		if p != "" && !validation.IsValidPhone(p) {
			return nil, apperr.New(apperr.ValidationError, "Invalid phone number")
		}
		if p == "" {
			upd["phone"] = nil
		} else {
			upd["phone"] = p
		}
	}
	if p, ok := fields["password"].(string); ok {
		if !validation.IsValidPassword(p) {
			return nil, apperr.New(apperr.ValidationError, "Invalid password format")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(p), 10)
		if err != nil {
			return nil, apperr.Wrap(err, "Failed to hash password")
		}
		upd["password_hash"] = string(hash)
	}
	if len(upd) == 0 {
		return nil, apperr.New(apperr.ValidationError, "No valid update fields provided")
	}

	res := s.DB.WithContext(ctx).Model(&domain.User{}).Where("user_id = ?", userID).Updates(upd)
	if res.Error != nil {
		return nil, apperr.Wrap(res.Error, "Failed to update user")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.NotFound, "User not found")
	}
	return s.ViewUser(ctx, userID)
}

func (s *Service) ViewUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}
		return nil, apperr.Wrap(err, "Failed to load user")
	}
	return &u, nil
}

type UpdateUserRoleInput struct {
	ActorUserID  string
	ActorRole    string
	TargetUserID string
	TargetRole   string
}

// UpdateUserRole changes the target's role after the policy check and logs them out.
func (s *Service) UpdateUserRole(ctx context.Context, in UpdateUserRoleInput) (*domain.User, error) {
	id, err := uuid.Parse(in.TargetUserID)
	if err != nil {
		return nil, apperr.New(apperr.ValidationError, "Invalid user ID")
	}
	if err := policies.ValidateRoleAssignment(s.DB.WithContext(ctx), policies.ValidateRoleAssignmentParams{
		ActorRole:    in.ActorRole,
		ActorUserID:  in.ActorUserID,
		TargetUserID: in.TargetUserID,
		TargetRole:   in.TargetRole,
	}); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).
		Where("user_id = ?", in.TargetUserID).
		Update("role", in.TargetRole).Error; err != nil {
		return nil, apperr.Wrap(err, "Failed to update role")
	}
	policies.DestroyUserSessions(ctx, s.Rdb, in.TargetUserID)
	log.Info().Str("actor_id", in.ActorUserID).Str("user_id", in.TargetUserID).Str("role", in.TargetRole).Msg("role updated")
	return s.ViewUser(ctx, id)
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	capitalize := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
