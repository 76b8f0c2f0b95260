package repository

import (
	"context"

	"rafflehub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) LockByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Model(o).
		Select("status", "approved_at").
		Updates(o).Error
}

func (r *OrderRepository) IDsByStatus(ctx context.Context, status string) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ?", status).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
