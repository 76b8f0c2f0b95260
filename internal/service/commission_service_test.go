package service

import (
	"testing"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateWithoutSponsorsCreatesNothing(t *testing.T) {
	f := newFixture(t)
	u := f.user("solo", nil)
	order := f.approvedOrder(u, plan("100", "10", "5", "2"))

	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CommissionsCreated)
	assert.True(t, res.TotalAmount.IsZero())
}

func TestCalculateThreeLevels(t *testing.T) {
	f := newFixture(t)
	members := f.chain(4) // S3 <- S2 <- S1 <- U
	buyer := members[3]
	order := f.approvedOrder(buyer, plan("100", "10", "5", "2"))

	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.CommissionsCreated)
	assert.Equal(t, "17.00", res.TotalAmount.StringFixed(2))

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	want := []string{"10.00", "5.00", "2.00"}
	for i, c := range list {
		assert.Equal(t, i+1, c.Level)
		assert.Equal(t, members[2-i].ID, c.BeneficiaryID)
		assert.Equal(t, buyer.ID, c.BuyerID)
		assert.Equal(t, want[i], c.Amount.StringFixed(2))
		assert.False(t, c.Paid)
		assert.True(t, c.AvailableAt.Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	members := f.chain(4)
	order := f.approvedOrder(members[3], plan("100", "10", "5", "2"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CommissionsCreated)
	assert.Equal(t, 3, res.CommissionsUpdated)

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestCalculateRecomputeMovesAvailability(t *testing.T) {
	f := newFixture(t)
	members := f.chain(2)
	order := f.approvedOrder(members[1], plan("100", "10", "0", "0"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)

	f.calculator.now = func() time.Time { return time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC) }
	_, err = f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].AvailableAt.Equal(time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCalculateLeavesPaidCommissionsAlone(t *testing.T) {
	f := newFixture(t)
	members := f.chain(2)
	order := f.approvedOrder(members[1], plan("100", "10", "0", "0"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	ok, err := f.commissions.MarkPaid(f.ctx, list[0].ID, fixedNow)
	require.NoError(t, err)
	require.True(t, ok)

	// a changed plan must not rewrite the paid row
	changed := &models.Order{PlanMetadata: plan("100", "50", "0", "0")}
	require.NoError(t, f.db.Model(order).Select("plan_metadata").Updates(changed).Error)
	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommissionsUnchanged)
	assert.Equal(t, 0, res.CommissionsUpdated)

	list, err = f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", list[0].Amount.StringFixed(2))
}

func TestCalculateSkipsInactiveSponsorWithoutRenumbering(t *testing.T) {
	f := newFixture(t)
	members := f.chain(4) // S3 <- S2 <- S1 <- U
	require.NoError(t, f.users.Delete(f.ctx, members[1].ID))
	order := f.approvedOrder(members[3], plan("100", "10", "5", "2"))

	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CommissionsCreated)

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Level)
	assert.Equal(t, 3, list[1].Level)
	assert.Equal(t, "2.00", list[1].Amount.StringFixed(2))
}

func TestCalculateSkipsZeroRateLevels(t *testing.T) {
	f := newFixture(t)
	members := f.chain(4)
	order := f.approvedOrder(members[3], plan("100", "10", "0", "2"))

	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CommissionsCreated)
	assert.Equal(t, "12.00", res.TotalAmount.StringFixed(2))
}

func TestCalculateRoundsToCents(t *testing.T) {
	f := newFixture(t)
	members := f.chain(2)
	order := f.approvedOrder(members[1], plan("33.33", "7.5", "0", "0"))

	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.50", res.TotalAmount.StringFixed(2))
}

func TestCalculateRejectsUnapprovedOrder(t *testing.T) {
	f := newFixture(t)
	members := f.chain(2)
	order := &models.Order{UUID: "pending-order", UserID: members[1].ID, Status: domain.OrderStatusPending, PlanMetadata: plan("100", "10", "0", "0")}
	require.NoError(t, f.orders.Create(f.ctx, order))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotApproved)
}

func TestCalculateRejectsMissingPrice(t *testing.T) {
	f := newFixture(t)
	members := f.chain(2)
	order := f.approvedOrder(members[1], plan("0", "10", "0", "0"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	assert.ErrorIs(t, err, ErrMissingPrice)

	_, err = f.calculator.Calculate(f.ctx, 9999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func sumAmounts(list []models.Commission) string {
	total := dec("0")
	for _, c := range list {
		total = total.Add(c.Amount)
	}
	return total.StringFixed(2)
}

func TestCalculateVoidsLevelDroppedByPlanFix(t *testing.T) {
	f := newFixture(t)
	members := f.chain(4) // S3 <- S2 <- S1 <- U
	order := f.approvedOrder(members[3], plan("100", "10", "5", "2"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)

	fixed := &models.Order{PlanMetadata: plan("100", "10", "0", "2")}
	require.NoError(t, f.db.Model(order).Select("plan_metadata").Updates(fixed).Error)
	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CommissionsUpdated)
	assert.Equal(t, 1, res.CommissionsVoided)
	assert.Equal(t, "12.00", res.TotalAmount.StringFixed(2))

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, res.TotalAmount.StringFixed(2), sumAmounts(list))
	assert.Equal(t, members[1].ID, list[1].BeneficiaryID)
	assert.True(t, list[1].Amount.IsZero())
	assert.False(t, list[1].Paid)

	// a third run leaves the voided row as it is
	res, err = f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CommissionsVoided)

	f.payouts.now = func() time.Time { return time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC) }
	payout, err := f.payouts.PayAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, payout.Paid)
	assert.Equal(t, 2, payout.UsersProcessed)
	assert.Equal(t, "12.00", payout.TotalAmount.StringFixed(2))

	out, err := f.payouts.PayCommission(f.ctx, list[1].UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutVoid, out.Status)
	_, err = f.wallets.GetByUserID(f.ctx, members[1].ID)
	assert.Error(t, err, "voided commission must not open a wallet")
	f.requireConsistent(members[2])
	f.requireConsistent(members[0])
}

func TestCalculateVoidsSponsorDeactivatedBetweenRuns(t *testing.T) {
	f := newFixture(t)
	members := f.chain(3) // S2 <- S1 <- U
	order := f.approvedOrder(members[2], plan("100", "10", "5", "0"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(f.ctx, members[1].ID))

	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommissionsUpdated)
	assert.Equal(t, 1, res.CommissionsVoided)
	assert.Equal(t, "5.00", res.TotalAmount.StringFixed(2))

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Amount.IsZero())
	assert.Equal(t, "5.00", list[1].Amount.StringFixed(2))
	assert.Equal(t, 2, list[1].Level)
}

func TestCalculateVoidsLevelsBeyondReducedDepth(t *testing.T) {
	f := newFixture(t)
	members := f.chain(4)
	order := f.approvedOrder(members[3], plan("100", "10", "5", "2"))

	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)

	f.calculator.maxDepth = 2
	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CommissionsVoided)

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", sumAmounts(list))
}

func TestCalculateRestoresVoidedLevel(t *testing.T) {
	f := newFixture(t)
	members := f.chain(3)
	order := f.approvedOrder(members[2], plan("100", "10", "5", "0"))
	_, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(order).Select("plan_metadata").Updates(&models.Order{PlanMetadata: plan("100", "10", "0", "0")}).Error)
	_, err = f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(order).Select("plan_metadata").Updates(&models.Order{PlanMetadata: plan("100", "10", "4", "0")}).Error)
	res, err := f.calculator.Calculate(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CommissionsUpdated)
	assert.Equal(t, 0, res.CommissionsCreated)

	list, err := f.calculator.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "4.00", list[1].Amount.StringFixed(2))
	assert.Equal(t, "14.00", sumAmounts(list))
}
