package repository

import (
	"context"
	"time"

	"rafflehub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) WithTx(tx *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: tx}
}

func (r *CommissionRepository) LockByNaturalKey(ctx context.Context, orderID, beneficiaryID, buyerID uint) (*models.Commission, error) {
	var c models.Commission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND beneficiary_id = ? AND buyer_id = ?", orderID, beneficiaryID, buyerID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) LockByID(ctx context.Context, id uint) (*models.Commission, error) {
	var c models.Commission
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) GetByUUID(ctx context.Context, uuid string) (*models.Commission, error) {
	var c models.Commission
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) Create(ctx context.Context, c *models.Commission) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Recompute rewrites the computed fields of an unpaid commission.
func (r *CommissionRepository) Recompute(ctx context.Context, c *models.Commission) error {
	return r.db.WithContext(ctx).Model(c).
		Where("paid = ?", false).
		Updates(map[string]interface{}{
			"level":        c.Level,
			"rate":         c.Rate,
			"amount":       c.Amount,
			"available_at": c.AvailableAt,
		}).Error
}

// LockUnpaidByOrder loads every unpaid commission of an order with row locks.
func (r *CommissionRepository) LockUnpaidByOrder(ctx context.Context, orderID uint) ([]models.Commission, error) {
	var list []models.Commission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND paid = ?", orderID, false).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// Void zeroes an unpaid commission. The row stays for the audit trail but no
// payout run selects it again.
func (r *CommissionRepository) Void(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]interface{}{"rate": decimal.Zero, "amount": decimal.Zero})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPaid flips paid once; it reports false if the row was already paid.
func (r *CommissionRepository) MarkPaid(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]interface{}{"paid": true, "paid_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PayableIDs lists unpaid commissions of a beneficiary whose availability has passed.
func (r *CommissionRepository) PayableIDs(ctx context.Context, beneficiaryID uint, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("beneficiary_id = ? AND paid = ? AND amount > 0 AND available_at <= ?", beneficiaryID, false, now).
		Order("available_at ASC").Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// PayableBeneficiaries lists users holding at least one payable commission.
func (r *CommissionRepository) PayableBeneficiaries(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("paid = ? AND amount > 0 AND available_at <= ?", false, now).
		Distinct("beneficiary_id").
		Order("beneficiary_id").
		Pluck("beneficiary_id", &ids).Error
	return ids, err
}

func (r *CommissionRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.Commission, error) {
	var list []models.Commission
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("level ASC").Find(&list).Error
	return list, err
}

func (r *CommissionRepository) ListByBeneficiary(ctx context.Context, beneficiaryID uint, limit, offset int) ([]models.Commission, error) {
	var list []models.Commission
	err := r.db.WithContext(ctx).Where("beneficiary_id = ?", beneficiaryID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}
