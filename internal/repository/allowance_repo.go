package repository

import (
	"context"
	"errors"

	"rafflehub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAllowanceExhausted = errors.New("ticket allowance exhausted")

type AllowanceRepository struct {
	db *gorm.DB
}

func NewAllowanceRepository(db *gorm.DB) *AllowanceRepository {
	return &AllowanceRepository{db: db}
}

func (r *AllowanceRepository) WithTx(tx *gorm.DB) *AllowanceRepository {
	return &AllowanceRepository{db: tx}
}

func (r *AllowanceRepository) Get(ctx context.Context, userID uint, tier int) (*models.TicketAllowance, error) {
	var a models.TicketAllowance
	err := r.db.WithContext(ctx).Where("user_id = ? AND tier = ?", userID, tier).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AllowanceRepository) ListByUser(ctx context.Context, userID uint) ([]models.TicketAllowance, error) {
	var list []models.TicketAllowance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("tier ASC").Find(&list).Error
	return list, err
}

// Grant adds count tickets to the user's allowance at tier.
func (r *AllowanceRepository) Grant(ctx context.Context, userID uint, tier, count int) error {
	if count <= 0 {
		return nil
	}
	row := &models.TicketAllowance{UserID: userID, Tier: tier}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.TicketAllowance{}).
		Where("user_id = ? AND tier = ?", userID, tier).
		UpdateColumn("granted", gorm.Expr("granted + ?", count)).Error
}

// Consume spends count tickets, failing when fewer remain.
func (r *AllowanceRepository) Consume(ctx context.Context, userID uint, tier, count int) error {
	res := r.db.WithContext(ctx).Model(&models.TicketAllowance{}).
		Where("user_id = ? AND tier = ? AND granted - consumed >= ?", userID, tier, count).
		UpdateColumn("consumed", gorm.Expr("consumed + ?", count))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAllowanceExhausted
	}
	return nil
}

// Restore gives back count consumed tickets.
func (r *AllowanceRepository) Restore(ctx context.Context, userID uint, tier, count int) error {
	res := r.db.WithContext(ctx).Model(&models.TicketAllowance{}).
		Where("user_id = ? AND tier = ? AND consumed >= ?", userID, tier, count).
		UpdateColumn("consumed", gorm.Expr("consumed - ?", count))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
