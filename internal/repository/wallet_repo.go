package repository

import (
	"context"

	"rafflehub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// money binds a decimal parameter as a SQL decimal on every dialect.
const money = "CAST(? AS DECIMAL(20,2))"

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// LockByUserID reads the wallet with a row lock held until the transaction ends.
func (r *WalletRepository) LockByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate lazily opens a zero wallet. Concurrent creators converge on the
// same row through the unique user_id index; the row a creator ends up with is
// read under lock so the caller's following update cannot interleave.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uint) (*models.Wallet, error) {
	w, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	w = &models.Wallet{UserID: userID, Balance: decimal.Zero, Blocked: decimal.Zero, Withdrawals: decimal.Zero}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(w).Error; err != nil {
		return nil, err
	}
	return r.LockByUserID(ctx, userID)
}

func (r *WalletRepository) Credit(ctx context.Context, userID uint, amount decimal.Decimal) error {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		UpdateColumn("balance", gorm.Expr("balance + "+money, amount)).Error
}

// Debit takes amount out of the available funds (balance - blocked).
func (r *WalletRepository) Debit(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND balance - blocked >= "+money, userID, amount).
		UpdateColumn("balance", gorm.Expr("balance - "+money, amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, userID, ErrInsufficientBalance)
	}
	return nil
}

// Block reserves available funds without moving the balance.
func (r *WalletRepository) Block(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND balance - blocked >= "+money, userID, amount).
		UpdateColumn("blocked", gorm.Expr("blocked + "+money, amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, userID, ErrInsufficientBalance)
	}
	return nil
}

func (r *WalletRepository) Release(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND blocked >= "+money, userID, amount).
		UpdateColumn("blocked", gorm.Expr("blocked - "+money, amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, userID, ErrInsufficientBlocked)
	}
	return nil
}

// SettleWithdrawal moves a blocked amount out of the wallet for good.
func (r *WalletRepository) SettleWithdrawal(ctx context.Context, userID uint, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND blocked >= "+money, userID, amount).
		UpdateColumns(map[string]interface{}{
			"balance":     gorm.Expr("balance - "+money, amount),
			"blocked":     gorm.Expr("blocked - "+money, amount),
			"withdrawals": gorm.Expr("withdrawals + "+money, amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, userID, ErrInsufficientBlocked)
	}
	return nil
}

func (r *WalletRepository) missingOr(ctx context.Context, userID uint, err error) error {
	if _, gerr := r.GetByUserID(ctx, userID); gerr != nil {
		return gerr
	}
	return err
}
