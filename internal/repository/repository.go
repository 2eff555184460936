package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// CustomerRepository encapsulates customer persistence.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// Create inserts a customer; the email must not be registered yet.
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	Update(ctx context.Context, id string, update domain.CustomerUpdate) (*domain.Customer, error)
}

// TicketRepository reads tickets. Tickets are written by the sales system,
// and only order completion changes their status.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error)
}

// UpgradeOrderRepository persists upgrade orders and their status history.
type UpgradeOrderRepository interface {
	// Create inserts a pending order unless the ticket already has an open one.
	// When the order carries an idempotency key that was used before, the
	// existing order is copied into order and created is false.
	Create(ctx context.Context, order *domain.UpgradeOrder) (created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.UpgradeOrder, error)
	FindOpenByTicket(ctx context.Context, ticketID string) (*domain.UpgradeOrder, error)
	Transition(ctx context.Context, transition domain.OrderTransition) (*domain.UpgradeOrder, error)
	ListHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error)
}

// IntegrityRepository runs aggregate consistency checks over the store.
type IntegrityRepository interface {
	Check(ctx context.Context, staleAfter time.Duration) (*domain.IntegrityReport, error)
}

// Store bundles the repositories backed by one store.
type Store struct {
	Customers CustomerRepository
	Tickets   TicketRepository
	Orders    UpgradeOrderRepository
	Integrity IntegrityRepository
}

// NewPostgresStore builds the pgx-backed repositories.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Customers: NewCustomerRepository(pool),
		Tickets:   NewTicketRepository(pool),
		Orders:    NewUpgradeOrderRepository(pool),
		Integrity: NewIntegrityRepository(pool),
	}
}

// newConfirmationCode returns "CONF" followed by eight upper-case hex digits.
func newConfirmationCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CONF" + strings.ToUpper(hex[:8])
}
