package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

func seededStore(t *testing.T) (*MemoryStore, *Store) {
	t.Helper()
	mem := NewMemoryStore()
	SeedDemo(mem, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
	return mem, mem.Store()
}

func newOrder(ticket *domain.Ticket) *domain.UpgradeOrder {
	return &domain.UpgradeOrder{
		TicketID:      ticket.ID,
		CustomerID:    ticket.CustomerID,
		RequestedTier: domain.TierStandard,
		OriginalTier:  ticket.Category,
		PriceDelta:    domain.MustMoney("25.00"),
		TotalAmount:   ticket.OriginalPrice.Add(domain.MustMoney("25.00")),
	}
}

func TestMemoryOrders_ConcurrentCreateYieldsOneOpenOrder(t *testing.T) {
	_, store := seededStore(t)
	ctx := context.Background()
	ticket, err := store.Tickets.GetByNumber(ctx, "TKT-20240101")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Orders.Create(ctx, newOrder(ticket))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrOpenOrderExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, callers-1, conflicts)

	open, err := store.Orders.FindOpenByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, open.Status)
}

func TestMemoryOrders_IdempotencyKeyReplaysExistingOrder(t *testing.T) {
	_, store := seededStore(t)
	ctx := context.Background()
	ticket, err := store.Tickets.GetByNumber(ctx, "TKT-20240201")
	require.NoError(t, err)

	key := "sel-123"
	first := newOrder(ticket)
	first.IdempotencyKey = &key
	created, err := store.Orders.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	replay := newOrder(ticket)
	replay.IdempotencyKey = &key
	created, err = store.Orders.Create(ctx, replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replay.ID)
}

func TestMemoryOrders_CompletionAssignsCodeAndUpgradesTicket(t *testing.T) {
	_, store := seededStore(t)
	ctx := context.Background()
	ticket, err := store.Tickets.GetByNumber(ctx, "TKT-20240301")
	require.NoError(t, err)

	order := newOrder(ticket)
	_, err = store.Orders.Create(ctx, order)
	require.NoError(t, err)

	_, err = store.Orders.Transition(ctx, domain.OrderTransition{OrderID: order.ID, To: domain.OrderStatusCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = store.Orders.Transition(ctx, domain.OrderTransition{OrderID: order.ID, To: domain.OrderStatusAwaitingPayment})
	require.NoError(t, err)
	txn := "txn_1"
	done, err := store.Orders.Transition(ctx, domain.OrderTransition{OrderID: order.ID, To: domain.OrderStatusCompleted, TransactionID: &txn})
	require.NoError(t, err)

	require.NotNil(t, done.ConfirmationCode)
	assert.Regexp(t, `^CONF[0-9A-F]{8}$`, *done.ConfirmationCode)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "txn_1", *done.TransactionID)

	upgraded, err := store.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusUpgraded, upgraded.Status)
	assert.Equal(t, "standard", upgraded.Metadata["upgraded_tier"])

	history, err := store.Orders.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, domain.OrderStatusCompleted, history[2].ToStatus)

	// terminal states are final
	_, err = store.Orders.Transition(ctx, domain.OrderTransition{OrderID: order.ID, To: domain.OrderStatusFailed})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryIntegrity_ReportsOrphans(t *testing.T) {
	mem, store := seededStore(t)
	ctx := context.Background()

	report, err := store.Integrity.Check(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.TotalCustomers)
	assert.EqualValues(t, 6, report.TotalTickets)
	assert.True(t, report.Healthy())

	mem.PutTicket(domain.Ticket{CustomerID: "missing", TicketNumber: "TKT-9", Category: domain.TicketCategoryGeneral})
	mem.PutOrder(domain.UpgradeOrder{TicketID: "gone", CustomerID: "gone", Status: domain.OrderStatusCompleted})

	report, err = store.Integrity.Check(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.OrphanedTickets)
	assert.EqualValues(t, 1, report.OrphanedOrders)
	assert.EqualValues(t, 1, report.CompletedNoCode)
	assert.False(t, report.Healthy())
}

func TestMemoryTickets_ListIsStable(t *testing.T) {
	_, store := seededStore(t)
	ctx := context.Background()

	first, err := store.Tickets.ListByCustomer(ctx, "8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a01")
	require.NoError(t, err)
	second, err := store.Tickets.ListByCustomer(ctx, "8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a01")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, first, second)

	_, err = store.Tickets.GetByID(ctx, "333")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(context.DeadlineExceeded), ErrUnavailable)
	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain))
}
