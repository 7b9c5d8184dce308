package policies

import (
	"context"
	"errors"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/pkg/apperr"
	"farmdirect-backend/internal/pkg/constants"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const userSessionsPrefix = "user_sessions:"

var (
	ErrOnlyAdminsCanAssignRoles = apperr.New(apperr.Unauthorized, "Only admins can change user roles")
	ErrInvalidRole              = apperr.New(apperr.ValidationError, "Invalid role")
	ErrTargetUserNotFound       = apperr.New(apperr.NotFound, "Target user not found")
	ErrUsersCannotModifyOwnRole = apperr.New(apperr.InvalidState, "Users cannot modify their own role")
	ErrMarketplaceNeedsAnAdmin  = apperr.New(apperr.InvalidState, "At least one admin must remain")
)

type ValidateRoleAssignmentParams struct {
	ActorRole    string
	ActorUserID  string
	TargetUserID string
	TargetRole   string
}

// ValidateRoleAssignment checks that an admin may move the target user to TargetRole.
func ValidateRoleAssignment(db *gorm.DB, params ValidateRoleAssignmentParams) error {
	if params.ActorRole != constants.Admin {
		return ErrOnlyAdminsCanAssignRoles
	}
	if !constants.IsValidRole(params.TargetRole) {
		return ErrInvalidRole
	}
	var target domain.User
	if err := db.Where("user_id = ?", params.TargetUserID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetUserNotFound
		}
		return apperr.Wrap(err, "user lookup failed")
	}
	if params.ActorUserID == params.TargetUserID {
		return ErrUsersCannotModifyOwnRole
	}
	if target.Role == constants.Admin && params.TargetRole != constants.Admin {
		var count int64
		db.Model(&domain.User{}).Where("role = ?", constants.Admin).Count(&count)
		if count <= 1 {
			return ErrMarketplaceNeedsAnAdmin
		}
	}
	return nil
}

// DestroyUserSessions logs the user out everywhere so a new role takes effect.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) {
	if rdb == nil {
		return
	}
	key := userSessionsPrefix + userID
	ids, err := rdb.SMembers(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("session lookup failed")
		return
	}
	for _, id := range ids {
		rdb.Del(ctx, "session:"+id)
	}
	rdb.Del(ctx, key)
}
