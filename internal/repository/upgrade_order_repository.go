package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

type upgradeOrderRepository struct {
	pool *pgxpool.Pool
}

// NewUpgradeOrderRepository instantiates repository.
func NewUpgradeOrderRepository(pool *pgxpool.Pool) UpgradeOrderRepository {
	return &upgradeOrderRepository{pool: pool}
}

const orderColumns = `id::text, ticket_id::text, customer_id::text, requested_tier, original_tier,
               price_delta::text, total_amount::text, status, confirmation_code, idempotency_key,
               transaction_id, failure_reason, selected_date, created_at, updated_at, completed_at`

const confirmationCodeAttempts = 3

// Create locks the ticket row, checks for an open order and inserts in one
// transaction. The partial unique index on open orders backs the check up.
func (r *upgradeOrderRepository) Create(ctx context.Context, order *domain.UpgradeOrder) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, translate(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ticketID string
	if err := tx.QueryRow(ctx, `SELECT id::text FROM tickets WHERE id=$1 FOR UPDATE`, order.TicketID).Scan(&ticketID); err != nil {
		return false, translate(err)
	}

	if order.IdempotencyKey != nil {
		existing, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM upgrade_orders WHERE idempotency_key=$1`, *order.IdempotencyKey))
		switch {
		case err == nil:
			*order = *existing
			return false, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return false, translate(err)
		}
	}

	var openID string
	err = tx.QueryRow(ctx,
		`SELECT id::text FROM upgrade_orders WHERE ticket_id=$1 AND status IN ('pending','awaiting_payment') LIMIT 1`,
		order.TicketID).Scan(&openID)
	if err == nil {
		return false, ErrOpenOrderExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, translate(err)
	}

	const insert = `
        INSERT INTO upgrade_orders (ticket_id, customer_id, requested_tier, original_tier, price_delta, total_amount,
            status, idempotency_key, selected_date)
        VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8,$9)
        RETURNING id::text, status, created_at, updated_at`
	if err := tx.QueryRow(ctx, insert,
		order.TicketID,
		order.CustomerID,
		order.RequestedTier,
		order.OriginalTier,
		order.PriceDelta.String(),
		order.TotalAmount.String(),
		domain.OrderStatusPending,
		order.IdempotencyKey,
		order.SelectedDate,
	).Scan(&order.ID, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return false, translate(err)
	}

	if err := insertHistory(ctx, tx, order.ID, nil, domain.OrderStatusPending, map[string]any{
		"requested_tier": order.RequestedTier,
		"total_amount":   order.TotalAmount.String(),
	}); err != nil {
		return false, translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, translate(err)
	}
	return true, nil
}

func (r *upgradeOrderRepository) GetByID(ctx context.Context, id string) (*domain.UpgradeOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM upgrade_orders WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return order, nil
}

func (r *upgradeOrderRepository) FindOpenByTicket(ctx context.Context, ticketID string) (*domain.UpgradeOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM upgrade_orders
        WHERE ticket_id=$1 AND status IN ('pending','awaiting_payment')
        ORDER BY created_at DESC LIMIT 1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, ticketID))
	if err != nil {
		return nil, translate(err)
	}
	return order, nil
}

// Transition applies a lifecycle change and records it in order_history.
// Completion assigns the confirmation code and marks the ticket upgraded in
// the same transaction.
func (r *upgradeOrderRepository) Transition(ctx context.Context, t domain.OrderTransition) (*domain.UpgradeOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, translate(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM upgrade_orders WHERE id=$1 FOR UPDATE`, t.OrderID))
	if err != nil {
		return nil, translate(err)
	}
	if !domain.CanTransition(current.Status, t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, t.To)
	}

	details := map[string]any{}
	switch t.To {
	case domain.OrderStatusCompleted:
		code, err := r.complete(ctx, tx, t)
		if err != nil {
			return nil, translate(err)
		}
		if _, err := tx.Exec(ctx, `
            UPDATE tickets SET status='upgraded',
                metadata=COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('upgraded_tier', $1::text),
                updated_at=NOW()
            WHERE id=$2`, current.RequestedTier, current.TicketID); err != nil {
			return nil, translate(err)
		}
		details["confirmation_code"] = code
	case domain.OrderStatusFailed:
		if _, err := tx.Exec(ctx, `
            UPDATE upgrade_orders SET status=$1, failure_reason=$2, transaction_id=COALESCE($3, transaction_id), updated_at=NOW()
            WHERE id=$4`, t.To, t.Reason, t.TransactionID, t.OrderID); err != nil {
			return nil, translate(err)
		}
		if t.Reason != nil {
			details["reason"] = *t.Reason
		}
	default:
		if _, err := tx.Exec(ctx, `
            UPDATE upgrade_orders SET status=$1, transaction_id=COALESCE($2, transaction_id), updated_at=NOW()
            WHERE id=$3`, t.To, t.TransactionID, t.OrderID); err != nil {
			return nil, translate(err)
		}
	}
	if t.TransactionID != nil {
		details["transaction_id"] = *t.TransactionID
	}

	from := current.Status
	if err := insertHistory(ctx, tx, t.OrderID, &from, t.To, details); err != nil {
		return nil, translate(err)
	}

	updated, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM upgrade_orders WHERE id=$1`, t.OrderID))
	if err != nil {
		return nil, translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

// complete retries on the rare confirmation code collision using savepoints.
func (r *upgradeOrderRepository) complete(ctx context.Context, tx pgx.Tx, t domain.OrderTransition) (string, error) {
	const update = `
        UPDATE upgrade_orders SET status='completed', confirmation_code=$1,
            transaction_id=COALESCE($2, transaction_id), completed_at=NOW(), updated_at=NOW()
        WHERE id=$3`
	var lastErr error
	for i := 0; i < confirmationCodeAttempts; i++ {
		code := newConfirmationCode()
		sp, err := tx.Begin(ctx)
		if err != nil {
			return "", err
		}
		if _, err := sp.Exec(ctx, update, code, t.TransactionID, t.OrderID); err != nil {
			_ = sp.Rollback(ctx)
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				lastErr = err
				continue
			}
			return "", err
		}
		if err := sp.Commit(ctx); err != nil {
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("assign confirmation code: %w", lastErr)
}

func (r *upgradeOrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	const query = `
        SELECT id::text, order_id::text, from_status, to_status, details, created_at
        FROM order_history WHERE order_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	result := []domain.OrderHistory{}
	for rows.Next() {
		var h domain.OrderHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.Details, &h.CreatedAt); err != nil {
			return nil, translate(err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID string, from *domain.OrderStatus, to domain.OrderStatus, details map[string]any) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_history (order_id, from_status, to_status, details) VALUES ($1,$2,$3,$4)`,
		orderID, from, to, details)
	return err
}

func scanOrder(row pgx.Row) (*domain.UpgradeOrder, error) {
	var o domain.UpgradeOrder
	if err := row.Scan(
		&o.ID,
		&o.TicketID,
		&o.CustomerID,
		&o.RequestedTier,
		&o.OriginalTier,
		&o.PriceDelta,
		&o.TotalAmount,
		&o.Status,
		&o.ConfirmationCode,
		&o.IdempotencyKey,
		&o.TransactionID,
		&o.FailureReason,
		&o.SelectedDate,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
