package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

type integrityRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrityRepository instantiates repository.
func NewIntegrityRepository(pool *pgxpool.Pool) IntegrityRepository {
	return &integrityRepository{pool: pool}
}

func (r *integrityRepository) Check(ctx context.Context, staleAfter time.Duration) (*domain.IntegrityReport, error) {
	const query = `
        SELECT
            (SELECT COUNT(*) FROM customers),
            (SELECT COUNT(*) FROM tickets),
            (SELECT COUNT(*) FROM upgrade_orders),
            (SELECT COUNT(*) FROM tickets t
                WHERE NOT EXISTS (SELECT 1 FROM customers c WHERE c.id = t.customer_id)),
            (SELECT COUNT(*) FROM upgrade_orders o
                WHERE NOT EXISTS (SELECT 1 FROM tickets t WHERE t.id = o.ticket_id)
                   OR NOT EXISTS (SELECT 1 FROM customers c WHERE c.id = o.customer_id)),
            (SELECT COUNT(*) FROM (
                SELECT ticket_id FROM upgrade_orders WHERE status IN ('pending','awaiting_payment')
                GROUP BY ticket_id HAVING COUNT(*) > 1) d),
            (SELECT COUNT(*) FROM upgrade_orders
                WHERE status IN ('pending','awaiting_payment') AND created_at < NOW() - make_interval(secs => $1)),
            (SELECT COUNT(*) FROM upgrade_orders WHERE status='completed' AND confirmation_code IS NULL),
            NOW()`
	var report domain.IntegrityReport
	if err := r.pool.QueryRow(ctx, query, staleAfter.Seconds()).Scan(
		&report.TotalCustomers,
		&report.TotalTickets,
		&report.TotalOrders,
		&report.OrphanedTickets,
		&report.OrphanedOrders,
		&report.DuplicateOpen,
		&report.StaleOpenOrders,
		&report.CompletedNoCode,
		&report.CheckedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &report, nil
}
