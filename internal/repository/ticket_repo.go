package repository

import (
	"context"

	"rafflehub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const unboundTicket = "NOT EXISTS (SELECT 1 FROM raffle_tickets rt WHERE rt.ticket_id = tickets.id)"

// PoolStats summarizes the global ticket pool.
type PoolStats struct {
	Total   int64 `json:"total"`
	Unbound int64 `json:"unbound"`
}

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) WithTx(tx *gorm.DB) *TicketRepository {
	return &TicketRepository{db: tx}
}

func (r *TicketRepository) CreateBatch(ctx context.Context, numbers []string) error {
	tickets := make([]models.Ticket, 0, len(numbers))
	for _, n := range numbers {
		tickets = append(tickets, models.Ticket{Number: n})
	}
	return r.db.WithContext(ctx).CreateInBatches(tickets, 500).Error
}

// IDRange returns the lowest and highest ticket id; both are zero for an empty pool.
func (r *TicketRepository) IDRange(ctx context.Context) (uint, uint, error) {
	var row struct {
		MinID uint
		MaxID uint
	}
	err := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Select("COALESCE(MIN(id), 0) AS min_id, COALESCE(MAX(id), 0) AS max_id").
		Scan(&row).Error
	return row.MinID, row.MaxID, err
}

// ClaimUnbound locks up to n unbound tickets, scanning upward from pivot and
// wrapping around to the start of the pool. Rows locked by a concurrent
// claimer are skipped on dialects that support SKIP LOCKED.
func (r *TicketRepository) ClaimUnbound(ctx context.Context, n int, pivot uint) ([]models.Ticket, error) {
	tickets, err := r.claimWhere(ctx, "id >= ?", pivot, n)
	if err != nil || len(tickets) >= n {
		return tickets, err
	}
	rest, err := r.claimWhere(ctx, "id < ?", pivot, n-len(tickets))
	if err != nil {
		return nil, err
	}
	return append(tickets, rest...), nil
}

func (r *TicketRepository) claimWhere(ctx context.Context, cond string, pivot uint, n int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where(cond, pivot).
		Where(unboundTicket).
		Order("id ASC").
		Limit(n).
		Find(&tickets).Error
	return tickets, err
}

func (r *TicketRepository) Stats(ctx context.Context) (PoolStats, error) {
	var s PoolStats
	if err := r.db.WithContext(ctx).Model(&models.Ticket{}).Count(&s.Total).Error; err != nil {
		return s, err
	}
	err := r.db.WithContext(ctx).Model(&models.Ticket{}).Where(unboundTicket).Count(&s.Unbound).Error
	return s, err
}
