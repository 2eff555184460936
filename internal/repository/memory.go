package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// MemoryStore keeps every record in process memory behind one lock. It
// upholds the same invariants as the Postgres store and backs tests and
// local runs without POSTGRES_DSN.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	tickets   map[string]domain.Ticket
	orders    map[string]domain.UpgradeOrder
	history   map[string][]domain.OrderHistory
	historyID int64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]domain.Customer),
		tickets:   make(map[string]domain.Ticket),
		orders:    make(map[string]domain.UpgradeOrder),
		history:   make(map[string][]domain.OrderHistory),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the memory store through the repository interfaces.
func (m *MemoryStore) Store() *Store {
	return &Store{
		Customers: memoryCustomers{m},
		Tickets:   memoryTickets{m},
		Orders:    memoryOrders{m},
		Integrity: memoryIntegrity{m},
	}
}

// PutCustomer inserts or replaces a customer, assigning an id when empty.
func (m *MemoryStore) PutCustomer(c domain.Customer) domain.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := m.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.customers[c.ID] = c
	return c
}

// PutTicket inserts or replaces a ticket, assigning an id when empty.
func (m *MemoryStore) PutTicket(t domain.Ticket) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusActive
	}
	now := m.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.PurchaseDate.IsZero() {
		t.PurchaseDate = now
	}
	t.UpdatedAt = now
	m.tickets[t.ID] = cloneTicket(t)
	return t
}

// PutOrder inserts an order as-is, bypassing lifecycle checks. Used for fixtures.
func (m *MemoryStore) PutOrder(o domain.UpgradeOrder) domain.UpgradeOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.now()
	}
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = o
	return o
}

// SetClock overrides the timestamp source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.Metadata != nil {
		meta := make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			meta[k] = v
		}
		t.Metadata = meta
	}
	return t
}

type memoryCustomers struct{ m *MemoryStore }

func (r memoryCustomers) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r memoryCustomers) Create(ctx context.Context, in domain.Customer) (*domain.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.customers {
		if c.Email == in.Email {
			return nil, ErrEmailTaken
		}
	}
	c := domain.Customer{
		ID:        uuid.NewString(),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		CreatedAt: r.m.now(),
	}
	c.UpdatedAt = c.CreatedAt
	r.m.customers[c.ID] = c
	return &c, nil
}

func (r memoryCustomers) Update(ctx context.Context, id string, update domain.CustomerUpdate) (*domain.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.FirstName != nil {
		c.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		c.LastName = *update.LastName
	}
	if update.Phone != nil {
		phone := *update.Phone
		c.Phone = &phone
	}
	c.UpdatedAt = r.m.now()
	r.m.customers[id] = c
	return &c, nil
}

type memoryTickets struct{ m *MemoryStore }

func (r memoryTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	t, ok := r.m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

func (r memoryTickets) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, t := range r.m.tickets {
		if t.TicketNumber == number {
			out := cloneTicket(t)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTickets) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := []domain.Ticket{}
	for _, t := range r.m.tickets {
		if t.CustomerID == customerID {
			result = append(result, cloneTicket(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PurchaseDate.Equal(result[j].PurchaseDate) {
			return result[i].PurchaseDate.Before(result[j].PurchaseDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type memoryOrders struct{ m *MemoryStore }

func (r memoryOrders) Create(ctx context.Context, order *domain.UpgradeOrder) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.tickets[order.TicketID]; !ok {
		return false, ErrNotFound
	}
	if order.IdempotencyKey != nil {
		for _, existing := range r.m.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *order.IdempotencyKey {
				*order = existing
				return false, nil
			}
		}
	}
	if r.m.openOrderLocked(order.TicketID) != nil {
		return false, ErrOpenOrderExists
	}

	now := r.m.now()
	order.ID = uuid.NewString()
	order.Status = domain.OrderStatusPending
	order.ConfirmationCode = nil
	order.CompletedAt = nil
	order.CreatedAt = now
	order.UpdatedAt = now
	r.m.orders[order.ID] = *order
	r.m.appendHistoryLocked(order.ID, nil, domain.OrderStatusPending, map[string]any{
		"requested_tier": order.RequestedTier,
		"total_amount":   order.TotalAmount.String(),
	})
	return true, nil
}

func (r memoryOrders) GetByID(ctx context.Context, id string) (*domain.UpgradeOrder, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r memoryOrders) FindOpenByTicket(ctx context.Context, ticketID string) (*domain.UpgradeOrder, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if o := r.m.openOrderLocked(ticketID); o != nil {
		return o, nil
	}
	return nil, ErrNotFound
}

func (r memoryOrders) Transition(ctx context.Context, t domain.OrderTransition) (*domain.UpgradeOrder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	o, ok := r.m.orders[t.OrderID]
	if !ok {
		return nil, ErrNotFound
	}
	if !domain.CanTransition(o.Status, t.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, t.To)
	}

	now := r.m.now()
	from := o.Status
	details := map[string]any{}
	o.Status = t.To
	o.UpdatedAt = now
	if t.TransactionID != nil {
		o.TransactionID = t.TransactionID
		details["transaction_id"] = *t.TransactionID
	}
	switch t.To {
	case domain.OrderStatusCompleted:
		code := r.m.uniqueCodeLocked()
		o.ConfirmationCode = &code
		o.CompletedAt = &now
		details["confirmation_code"] = code
		if ticket, ok := r.m.tickets[o.TicketID]; ok {
			ticket = cloneTicket(ticket)
			ticket.Status = domain.TicketStatusUpgraded
			if ticket.Metadata == nil {
				ticket.Metadata = map[string]any{}
			}
			ticket.Metadata["upgraded_tier"] = string(o.RequestedTier)
			ticket.UpdatedAt = now
			r.m.tickets[ticket.ID] = ticket
		}
	case domain.OrderStatusFailed:
		o.FailureReason = t.Reason
		if t.Reason != nil {
			details["reason"] = *t.Reason
		}
	}
	r.m.orders[o.ID] = o
	r.m.appendHistoryLocked(o.ID, &from, t.To, details)
	return &o, nil
}

func (r memoryOrders) ListHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return append([]domain.OrderHistory{}, r.m.history[orderID]...), nil
}

func (m *MemoryStore) openOrderLocked(ticketID string) *domain.UpgradeOrder {
	for _, o := range m.orders {
		if o.TicketID == ticketID && o.Status.IsOpen() {
			out := o
			return &out
		}
	}
	return nil
}

func (m *MemoryStore) uniqueCodeLocked() string {
	for {
		code := newConfirmationCode()
		taken := false
		for _, o := range m.orders {
			if o.ConfirmationCode != nil && *o.ConfirmationCode == code {
				taken = true
				break
			}
		}
		if !taken {
			return code
		}
	}
}

func (m *MemoryStore) appendHistoryLocked(orderID string, from *domain.OrderStatus, to domain.OrderStatus, details map[string]any) {
	m.historyID++
	m.history[orderID] = append(m.history[orderID], domain.OrderHistory{
		ID:         strconv.FormatInt(m.historyID, 10),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Details:    details,
		CreatedAt:  m.now(),
	})
}

type memoryIntegrity struct{ m *MemoryStore }

func (r memoryIntegrity) Check(ctx context.Context, staleAfter time.Duration) (*domain.IntegrityReport, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	now := r.m.now()
	report := domain.IntegrityReport{
		TotalCustomers: int64(len(r.m.customers)),
		TotalTickets:   int64(len(r.m.tickets)),
		TotalOrders:    int64(len(r.m.orders)),
		CheckedAt:      now,
	}
	for _, t := range r.m.tickets {
		if _, ok := r.m.customers[t.CustomerID]; !ok {
			report.OrphanedTickets++
		}
	}
	openPerTicket := map[string]int{}
	for _, o := range r.m.orders {
		_, ticketOK := r.m.tickets[o.TicketID]
		_, customerOK := r.m.customers[o.CustomerID]
		if !ticketOK || !customerOK {
			report.OrphanedOrders++
		}
		if o.Status.IsOpen() {
			openPerTicket[o.TicketID]++
			if now.Sub(o.CreatedAt) > staleAfter {
				report.StaleOpenOrders++
			}
		}
		if o.Status == domain.OrderStatusCompleted && o.ConfirmationCode == nil {
			report.CompletedNoCode++
		}
	}
	for _, n := range openPerTicket {
		if n > 1 {
			report.DuplicateOpen++
		}
	}
	return &report, nil
}
