package repository

import (
	"context"

	"rafflehub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RaffleRepository struct {
	db *gorm.DB
}

func NewRaffleRepository(db *gorm.DB) *RaffleRepository {
	return &RaffleRepository{db: db}
}

func (r *RaffleRepository) WithTx(tx *gorm.DB) *RaffleRepository {
	return &RaffleRepository{db: tx}
}

func (r *RaffleRepository) Create(ctx context.Context, raffle *models.Raffle) error {
	return r.db.WithContext(ctx).Create(raffle).Error
}

func (r *RaffleRepository) GetByID(ctx context.Context, id uint) (*models.Raffle, error) {
	var raffle models.Raffle
	err := r.db.WithContext(ctx).First(&raffle, id).Error
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (r *RaffleRepository) GetByUUID(ctx context.Context, uuid string) (*models.Raffle, error) {
	var raffle models.Raffle
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&raffle).Error
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (r *RaffleRepository) HasApplication(ctx context.Context, raffleID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RaffleApplication{}).
		Where("raffle_id = ? AND user_id = ?", raffleID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *RaffleRepository) CreateApplication(ctx context.Context, a *models.RaffleApplication) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// CreateBindings inserts all bindings in one statement. A ticket that is
// already bound makes the whole insert fail with ErrDuplicate.
func (r *RaffleRepository) CreateBindings(ctx context.Context, bindings []models.RaffleTicket) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&bindings).Error
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// LockBindings loads bindings by uuid and holds row locks on them.
func (r *RaffleRepository) LockBindings(ctx context.Context, uuids []string) ([]models.RaffleTicket, error) {
	var list []models.RaffleTicket
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid IN ?", uuids).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *RaffleRepository) SetBindingStatus(ctx context.Context, ids []uint, from, to string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.RaffleTicket{}).
		Where("id IN ? AND status = ?", ids, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *RaffleRepository) SoftDeleteBindings(ctx context.Context, ids []uint) error {
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.RaffleTicket{}).Error
}

func (r *RaffleRepository) ListBindings(ctx context.Context, raffleID, userID uint) ([]models.RaffleTicket, error) {
	var list []models.RaffleTicket
	err := r.db.WithContext(ctx).
		Preload("Ticket").
		Where("raffle_id = ? AND user_id = ?", raffleID, userID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}
