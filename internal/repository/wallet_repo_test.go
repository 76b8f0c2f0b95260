package repository

import (
	"context"
	"testing"

	"rafflehub/internal/database/dbtest"
	"rafflehub/internal/domain"
	"rafflehub/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordWalletReads notes, for every query on wallets, whether it carried a
// row lock.
func recordWalletReads(t *testing.T, db *gorm.DB) *[]bool {
	t.Helper()
	var reads []bool
	err := db.Callback().Query().After("gorm:query").Register("rafflehub:record_wallet_reads", func(tx *gorm.DB) {
		if tx.Statement.Table != "wallets" {
			return
		}
		_, locked := tx.Statement.Clauses["FOR"]
		reads = append(reads, locked)
	})
	require.NoError(t, err)
	return &reads
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{UUID: uuid.NewString(), Username: "u-" + uuid.NewString()[:8], Role: domain.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestGetOrCreateLocksTheRowItCreates(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, db)
	reads := recordWalletReads(t, db)

	var first, second *models.Wallet
	err := db.Transaction(func(tx *gorm.DB) error {
		wallets := NewWalletRepository(db).WithTx(tx)
		var err error
		if first, err = wallets.GetOrCreate(ctx, u.ID); err != nil {
			return err
		}
		if second, err = wallets.GetOrCreate(ctx, u.ID); err != nil {
			return err
		}
		return wallets.Credit(ctx, u.ID, decimal.RequireFromString("12.50"))
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Balance.IsZero())
	// miss, locked re-read after insert, then plain hits for the second call and Credit
	require.GreaterOrEqual(t, len(*reads), 2)
	assert.Equal(t, []bool{false, true}, (*reads)[:2])

	var count int64
	require.NoError(t, db.Model(&models.Wallet{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	w, err := NewWalletRepository(db).GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.50", w.Balance.StringFixed(2))
}

func TestGetOrCreateReturnsExistingWallet(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	u := seedUser(t, db)
	existing := &models.Wallet{UserID: u.ID, Balance: decimal.NewFromInt(40)}
	require.NoError(t, db.Create(existing).Error)

	w, err := NewWalletRepository(db).GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, w.ID)
	assert.Equal(t, "40.00", w.Balance.StringFixed(2))
}
