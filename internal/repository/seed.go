package repository

import (
	"fmt"
	"time"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// SeedDemo loads a small fixed data set into the memory store for local runs:
// three customers, two tickets each, ticket numbers TKT-2024CCTT.
func SeedDemo(m *MemoryStore, now time.Time) {
	people := []struct {
		id, email, first, last, phone string
	}{
		{"8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a01", "john.doe@example.com", "John", "Doe", "+1-555-0101"},
		{"8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a02", "jane.smith@example.com", "Jane", "Smith", "+1-555-0102"},
		{"8f2c0d4e-1b6a-4c3e-9a57-0c1d2e3f4a03", "bob.johnson@example.com", "Bob", "Johnson", "+1-555-0103"},
	}
	categories := []domain.TicketCategory{domain.TicketCategoryGeneral, domain.TicketCategoryVIP}
	eventBase := now.AddDate(0, 0, 30)

	for i, p := range people {
		phone := p.phone
		m.PutCustomer(domain.Customer{ID: p.id, Email: p.email, FirstName: p.first, LastName: p.last, Phone: &phone})
		for j, category := range categories {
			m.PutTicket(domain.Ticket{
				ID:            fmt.Sprintf("5b0c8c1e-7f0e-4d43-9d7c-2d7f9c1a%02d%02d", i+1, j+1),
				CustomerID:    p.id,
				TicketNumber:  fmt.Sprintf("TKT-2024%02d%02d", i+1, j+1),
				Category:      category,
				OriginalPrice: domain.NewMoney(50+int64(j)*25, 0),
				PurchaseDate:  now.AddDate(0, 0, -14),
				EventDate:     eventBase.AddDate(0, 0, j*7),
				Status:        domain.TicketStatusActive,
			})
		}
	}
}
