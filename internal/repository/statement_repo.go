package repository

import (
	"context"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatementFilter narrows the ledger query surface. Zero values mean "any".
type StatementFilter struct {
	Type   string
	Origin string
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type StatementRepository struct {
	db *gorm.DB
}

func NewStatementRepository(db *gorm.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

func (r *StatementRepository) WithTx(tx *gorm.DB) *StatementRepository {
	return &StatementRepository{db: tx}
}

// Create inserts a statement; a second row for the same natural key is
// rejected with ErrDuplicate.
func (r *StatementRepository) Create(ctx context.Context, s *models.FinancialStatement) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (r *StatementRepository) LockByNaturalKey(ctx context.Context, userID uint, correlationID, stType, origin string) (*models.FinancialStatement, error) {
	var s models.FinancialStatement
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND correlation_id = ? AND type = ? AND origin = ?", userID, correlationID, stType, origin).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatementRepository) LockByUUID(ctx context.Context, uuid string) (*models.FinancialStatement, error) {
	var s models.FinancialStatement
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uuid = ?", uuid).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TransitionStatus moves a statement out of `from`; it reports false when
// another writer already moved it.
func (r *StatementRepository) TransitionStatus(ctx context.Context, id uint, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.FinancialStatement{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *StatementRepository) List(ctx context.Context, userID uint, f StatementFilter) ([]models.FinancialStatement, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.FinancialStatement{}).Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Origin != "" {
		q = q.Where("origin = ?", f.Origin)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var list []models.FinancialStatement
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

// CompletedBalance sums completed credits minus completed debits: the
// ledger's view of what the wallet balance must be.
func (r *StatementRepository) CompletedBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var credits, debits sumRow
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.FinancialStatement{}).
			Select("COALESCE(SUM(amount), 0) AS total").
			Where("user_id = ? AND status = ?", userID, domain.StatementStatusCompleted)
	}
	if err := base().Where("type = ?", domain.StatementTypeCredit).Scan(&credits).Error; err != nil {
		return decimal.Zero, err
	}
	if err := base().Where("type = ?", domain.StatementTypeDebit).Scan(&debits).Error; err != nil {
		return decimal.Zero, err
	}
	return credits.Total.Sub(debits.Total).Round(2), nil
}

type sumRow struct {
	Total decimal.Decimal
}

func (r *StatementRepository) UserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.FinancialStatement{}).Distinct("user_id").Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
