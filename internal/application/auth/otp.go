package auth

import (
	"context"
	"strings"
	"time"

	"farmdirect-backend/internal/application/emails"
	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CodeStore is satisfied by cache.OTPStore.
type CodeStore interface {
	Issue(ctx context.Context, subject string) (string, error)
	Verify(ctx context.Context, subject, code string) (bool, error)
	TTL() time.Duration
}

// OTPService issues and checks one-time email codes. Codes live only in the
// TTL store; a verified code marks the account verified.
type OTPService struct {
	DB     *gorm.DB
	Store  CodeStore
	Mailer emails.Sender
}

// Request issues a code for email. Unknown emails get the same response as
// known ones, and no code is stored for them.
func (s *OTPService) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validation.IsValidEmail(email) {
		return ErrInvalidEmail
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			log.Info().Str("email", email).Msg("otp requested for unknown email")
			return nil
		}
		return err
	}
	code, err := s.Store.Issue(ctx, email)
	if err != nil {
		return err
	}
	if s.Mailer != nil {
		if err := s.Mailer.SendOTP(ctx, email, code, s.Store.TTL()); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("otp email failed")
		}
	}
	return nil
}

// Verify consumes the code and marks the user verified.
func (s *OTPService) Verify(ctx context.Context, email, code string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validation.IsValidEmail(email) || !validation.IsValidOTP(code) {
		return nil, ErrInvalidOTP
	}
	ok, err := s.Store.Verify(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOTP
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}
	if !u.Verified {
		if err := s.DB.WithContext(ctx).Model(&u).Update("verified", true).Error; err != nil {
			return nil, err
		}
		u.Verified = true
	}
	return &u, nil
}
