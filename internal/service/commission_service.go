package service

import (
	"context"
	"fmt"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/metrics"
	"rafflehub/internal/models"
	"rafflehub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CalculationResult summarizes one commission run for an order.
type CalculationResult struct {
	OrderID              uint            `json:"order_id"`
	CommissionsCreated   int             `json:"commissions_created"`
	CommissionsUpdated   int             `json:"commissions_updated"`
	CommissionsUnchanged int             `json:"commissions_unchanged"`
	CommissionsVoided    int             `json:"commissions_voided"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
}

// CommissionService turns approved orders into per-sponsor commissions.
type CommissionService struct {
	db           *gorm.DB
	orders       *repository.OrderRepository
	commissions  *repository.CommissionRepository
	resolver     *UplineResolver
	maxDepth     int
	availability func(time.Time) time.Time
	now          func() time.Time
	logger       *zap.Logger
}

func NewCommissionService(
	db *gorm.DB,
	orders *repository.OrderRepository,
	commissions *repository.CommissionRepository,
	resolver *UplineResolver,
	maxDepth int,
	logger *zap.Logger,
) *CommissionService {
	if maxDepth <= 0 {
		maxDepth = domain.DefaultUplineDepth
	}
	return &CommissionService{
		db:           db,
		orders:       orders,
		commissions:  commissions,
		resolver:     resolver,
		maxDepth:     maxDepth,
		availability: nextMonthStart,
		now:          time.Now,
		logger:       logging.OrNop(logger).Named("commission"),
	}
}

// Calculate writes one commission per eligible sponsor of the order's buyer.
// Re-running it updates unpaid rows in place, voids unpaid rows of sponsors
// that no longer earn anything, and never touches paid ones.
func (s *CommissionService) Calculate(ctx context.Context, orderID uint) (*CalculationResult, error) {
	var result CalculationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result = CalculationResult{OrderID: orderID, TotalAmount: decimal.Zero}

		order, err := s.orders.WithTx(tx).LockByID(ctx, orderID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != domain.OrderStatusApproved {
			return ErrOrderNotApproved
		}
		plan := order.PlanMetadata
		if !plan.Price.IsPositive() {
			return ErrMissingPrice
		}

		uplines, err := s.resolver.WithTx(tx).Resolve(ctx, order.UserID, s.maxDepth)
		if err != nil {
			return err
		}
		availableAt := s.availability(s.now())
		commissions := s.commissions.WithTx(tx)
		earning := make(map[uint]bool, len(uplines))

		for _, up := range uplines {
			rate := plan.Rate(up.Level)
			if !rate.IsPositive() {
				continue
			}
			if !up.Active {
				s.logger.Info("skipping inactive sponsor",
					zap.Uint("order_id", order.ID),
					zap.Uint("sponsor_id", up.User.ID),
					zap.Int("level", up.Level))
				continue
			}
			amount := plan.Price.Mul(rate).Div(hundred).Round(2)
			if !amount.IsPositive() {
				continue
			}

			existing, err := commissions.LockByNaturalKey(ctx, order.ID, up.User.ID, order.UserID)
			switch {
			case err == nil:
				earning[up.User.ID] = true
				if existing.Paid {
					result.CommissionsUnchanged++
					metrics.CommissionsWritten.WithLabelValues("unchanged").Inc()
					continue
				}
				existing.Level = up.Level
				existing.Rate = rate
				existing.Amount = amount
				existing.AvailableAt = availableAt
				if err := commissions.Recompute(ctx, existing); err != nil {
					return fmt.Errorf("recompute commission %d: %w", existing.ID, err)
				}
				result.CommissionsUpdated++
				metrics.CommissionsWritten.WithLabelValues("updated").Inc()
			case repository.IsNotFound(err):
				c := &models.Commission{
					UUID:          uuid.NewString(),
					OrderID:       order.ID,
					BeneficiaryID: up.User.ID,
					BuyerID:       order.UserID,
					Level:         up.Level,
					Rate:          rate,
					Amount:        amount,
					AvailableAt:   availableAt,
				}
				if err := commissions.Create(ctx, c); err != nil {
					return fmt.Errorf("create commission for sponsor %d: %w", up.User.ID, err)
				}
				earning[up.User.ID] = true
				result.CommissionsCreated++
				metrics.CommissionsWritten.WithLabelValues("created").Inc()
			default:
				return err
			}
			result.TotalAmount = result.TotalAmount.Add(amount)
		}

		unpaid, err := commissions.LockUnpaidByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, c := range unpaid {
			if earning[c.BeneficiaryID] || !c.Amount.IsPositive() {
				continue
			}
			voided, err := commissions.Void(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("void commission %d: %w", c.ID, err)
			}
			if voided {
				result.CommissionsVoided++
				metrics.CommissionsWritten.WithLabelValues("voided").Inc()
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calculate commissions for order %d: %w", orderID, err)
	}

	s.logger.Info("commissions calculated",
		zap.Uint("order_id", orderID),
		zap.Int("created", result.CommissionsCreated),
		zap.Int("updated", result.CommissionsUpdated),
		zap.Int("unchanged", result.CommissionsUnchanged),
		zap.Int("voided", result.CommissionsVoided),
		zap.String("total", result.TotalAmount.StringFixed(2)))
	return &result, nil
}

func (s *CommissionService) ListByOrder(ctx context.Context, orderID uint) ([]models.Commission, error) {
	return s.commissions.ListByOrder(ctx, orderID)
}

func (s *CommissionService) ListByBeneficiary(ctx context.Context, userID uint, limit, offset int) ([]models.Commission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.commissions.ListByBeneficiary(ctx, userID, limit, offset)
}
