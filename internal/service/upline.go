package service

import (
	"context"
	"fmt"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/models"
	"rafflehub/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Upline is one sponsor above a user. Level 1 is the direct sponsor.
type Upline struct {
	Level  int
	User   *models.User
	Active bool
}

// UplineResolver walks sponsor links upward from a user.
type UplineResolver struct {
	users  *repository.UserRepository
	logger *zap.Logger
}

func NewUplineResolver(users *repository.UserRepository, logger *zap.Logger) *UplineResolver {
	return &UplineResolver{users: users, logger: logging.OrNop(logger).Named("upline")}
}

func (r *UplineResolver) WithTx(tx *gorm.DB) *UplineResolver {
	return &UplineResolver{users: r.users.WithTx(tx), logger: r.logger}
}

// Resolve returns at most maxDepth sponsors ordered nearest first. Deactivated
// sponsors are returned with Active false so callers can skip them without
// renumbering the levels above. The walk stops at a missing sponsor row or a
// repeated user.
func (r *UplineResolver) Resolve(ctx context.Context, userID uint, maxDepth int) ([]Upline, error) {
	if maxDepth <= 0 {
		maxDepth = domain.DefaultUplineDepth
	}
	start, err := r.users.GetByIDIncludingDeleted(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	visited := map[uint]bool{start.ID: true}
	uplines := make([]Upline, 0, maxDepth)
	next := start.SponsorID
	for level := 1; level <= maxDepth && next != nil && *next != 0; level++ {
		id := *next
		if visited[id] {
			r.logger.Warn("sponsor cycle detected", zap.Uint("user_id", userID), zap.Uint("sponsor_id", id), zap.Int("level", level))
			break
		}
		visited[id] = true

		sponsor, err := r.users.GetByIDIncludingDeleted(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				r.logger.Warn("sponsor row missing", zap.Uint("user_id", userID), zap.Uint("sponsor_id", id), zap.Int("level", level))
				break
			}
			return nil, fmt.Errorf("load sponsor %d: %w", id, err)
		}
		uplines = append(uplines, Upline{Level: level, User: sponsor, Active: sponsor.IsActive()})
		next = sponsor.SponsorID
	}
	return uplines, nil
}
