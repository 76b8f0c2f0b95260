package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rafflehub/internal/domain"
	"rafflehub/internal/logging"
	"rafflehub/internal/models"
	"rafflehub/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalResult reports what approving an order released.
type ApprovalResult struct {
	Order       *models.Order      `json:"order"`
	Credit      *CreditResult      `json:"credit,omitempty"`
	Commissions *CalculationResult `json:"commissions"`
}

type BatchError struct {
	OrderID uint   `json:"order_id"`
	Error   string `json:"error"`
}

// BatchResult aggregates a commission recalculation over many orders.
type BatchResult struct {
	Processed          int          `json:"processed"`
	Failed             int          `json:"failed"`
	CommissionsCreated int          `json:"commissions_created"`
	CommissionsUpdated int          `json:"commissions_updated"`
	CommissionsVoided  int          `json:"commissions_voided"`
	Errors             []BatchError `json:"errors"`
}

// OrderService drives plan orders through approval. Approval triggers the
// plan credit and the commission run.
type OrderService struct {
	db          *gorm.DB
	orders      *repository.OrderRepository
	users       *repository.UserRepository
	ledger      *LedgerService
	commissions *CommissionService
	validate    *validator.Validate
	now         func() time.Time
	logger      *zap.Logger
}

func NewOrderService(
	db *gorm.DB,
	orders *repository.OrderRepository,
	users *repository.UserRepository,
	ledger *LedgerService,
	commissions *CommissionService,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		db:          db,
		orders:      orders,
		users:       users,
		ledger:      ledger,
		commissions: commissions,
		validate:    validator.New(),
		now:         time.Now,
		logger:      logging.OrNop(logger).Named("order"),
	}
}

// Place records a pending order and its pending plan credit.
func (s *OrderService) Place(ctx context.Context, userID uint, plan models.PlanSnapshot) (*models.Order, error) {
	if !plan.Price.IsPositive() {
		return nil, ErrMissingPrice
	}
	if err := s.validate.Struct(plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	for level := 1; level <= 3; level++ {
		if plan.Rate(level).IsNegative() {
			return nil, fmt.Errorf("%w: negative rate at level %d", ErrInvalidPlan, level)
		}
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	order := &models.Order{
		UUID:         uuid.NewString(),
		UserID:       userID,
		Status:       domain.OrderStatusPending,
		PlanMetadata: plan,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		_, err := s.ledger.registerPending(ctx, tx, domain.StatementTypeCredit, Posting{
			UserID:        userID,
			Amount:        plan.Price,
			CorrelationID: order.UUID,
			Origin:        domain.OriginPlan,
			Description:   "plan purchase",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order placed", zap.Uint("order_id", order.ID), zap.Uint("user_id", userID), zap.String("price", plan.Price.StringFixed(2)))
	return order, nil
}

// Approve marks a pending order approved, releases its plan credit and
// computes commissions. Approving an already approved order resumes the
// steps that have not completed.
func (s *OrderService) Approve(ctx context.Context, orderID uint) (*ApprovalResult, error) {
	var (
		order   *models.Order
		resumed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		o, err := orders.LockByID(ctx, orderID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return err
		}
		switch o.Status {
		case domain.OrderStatusApproved:
			resumed = true
		case domain.OrderStatusPending:
			now := s.now()
			o.Status = domain.OrderStatusApproved
			o.ApprovedAt = &now
			if err := orders.UpdateStatus(ctx, o); err != nil {
				return err
			}
		default:
			return ErrOrderNotPending
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ApprovalResult{Order: order}
	credit, err := s.ledger.CreditFromApprovedOrder(ctx, orderID)
	switch {
	case err == nil:
		result.Credit = credit
	case errors.Is(err, ErrNothingToCredit):
		s.logger.Warn("no pending plan credit for approved order", zap.Uint("order_id", orderID), zap.Bool("resumed", resumed))
	default:
		return nil, fmt.Errorf("release plan credit: %w", err)
	}

	calc, err := s.commissions.Calculate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result.Commissions = calc
	return result, nil
}

func (s *OrderService) Reject(ctx context.Context, orderID uint) (*models.Order, error) {
	return s.close(ctx, orderID, domain.OrderStatusRejected)
}

func (s *OrderService) Cancel(ctx context.Context, orderID uint) (*models.Order, error) {
	return s.close(ctx, orderID, domain.OrderStatusCancelled)
}

// close ends a pending order and fails its pending plan credit.
func (s *OrderService) close(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		o, err := orders.LockByID(ctx, orderID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return err
		}
		if o.Status != domain.OrderStatusPending {
			return ErrOrderNotPending
		}
		o.Status = status
		if err := orders.UpdateStatus(ctx, o); err != nil {
			return err
		}
		if _, err := s.ledger.failPending(ctx, tx, o.UserID, o.UUID, domain.StatementTypeCredit, domain.OriginPlan); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order closed", zap.Uint("order_id", orderID), zap.String("status", status))
	return order, nil
}

// ReprocessApproved recalculates commissions for every approved order.
// A failing order is recorded and the batch moves on.
func (s *OrderService) ReprocessApproved(ctx context.Context) (*BatchResult, error) {
	ids, err := s.orders.IDsByStatus(ctx, domain.OrderStatusApproved)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{Errors: []BatchError{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		calc, err := s.commissions.Calculate(ctx, id)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{OrderID: id, Error: err.Error()})
			continue
		}
		result.Processed++
		result.CommissionsCreated += calc.CommissionsCreated
		result.CommissionsUpdated += calc.CommissionsUpdated
		result.CommissionsVoided += calc.CommissionsVoided
	}
	s.logger.Info("approved orders reprocessed",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *OrderService) Get(ctx context.Context, orderID uint) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}
