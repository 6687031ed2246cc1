package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"event-ticketing/internal/models"
)

// InMemoryStore backs local runs (DB_DRIVER=memory) and service tests. A
// single mutex makes every method one atomic step.
type InMemoryStore struct {
	mutex        sync.RWMutex
	events       map[string]*models.Event
	ticketTypes  map[string]*models.TicketType
	tickets      map[string]*models.Ticket
	transactions map[string]*models.PaymentTransaction // keyed by reference
	wallets      map[string]*models.OrganizerWallet
	audit        map[string][]*models.CheckInAudit
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:       make(map[string]*models.Event),
		ticketTypes:  make(map[string]*models.TicketType),
		tickets:      make(map[string]*models.Ticket),
		transactions: make(map[string]*models.PaymentTransaction),
		wallets:      make(map[string]*models.OrganizerWallet),
		audit:        make(map[string][]*models.CheckInAudit),
	}
}

func (s *InMemoryStore) SaveEvent(_ context.Context, event *models.Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e := *event
	s.events[event.ID] = &e
	return nil
}

func (s *InMemoryStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	event, exists := s.events[id]
	if !exists {
		return nil, ErrNotFound
	}
	e := *event
	return &e, nil
}

func (s *InMemoryStore) SaveTicketType(_ context.Context, tt *models.TicketType) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := *tt
	s.ticketTypes[tt.ID] = &c
	return nil
}

func (s *InMemoryStore) UpdateTicketType(_ context.Context, tt *models.TicketType) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, exists := s.ticketTypes[tt.ID]
	if !exists {
		return ErrNotFound
	}
	if tt.Quantity < stored.Sold {
		return ErrQuantityBelowSold
	}
	c := *tt
	c.Sold = stored.Sold
	s.ticketTypes[tt.ID] = &c
	return nil
}

func (s *InMemoryStore) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tt, exists := s.ticketTypes[id]
	if !exists {
		return nil, ErrNotFound
	}
	c := *tt
	return &c, nil
}

func (s *InMemoryStore) GetActiveTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	tt, err := s.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tt.IsActive {
		return nil, ErrNotFound
	}
	return tt, nil
}

func (s *InMemoryStore) ListTicketTypes(_ context.Context, eventID string) ([]*models.TicketType, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var list []*models.TicketType
	for _, tt := range s.ticketTypes {
		if tt.EventID == eventID {
			c := *tt
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *InMemoryStore) IssueTicket(_ context.Context, ticket *models.Ticket, entry *models.PurchaseEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, dup := s.transactions[entry.Reference]; dup {
		return ErrDuplicateReference
	}
	tt, exists := s.ticketTypes[ticket.TicketTypeID]
	if !exists || !tt.IsActive || tt.Sold >= tt.Quantity {
		return ErrSoldOut
	}

	tt.Sold++
	t := *ticket
	s.tickets[ticket.ID] = &t
	s.transactions[entry.Reference] = entry.Transaction()

	if delta := entry.BalanceDelta(); !delta.IsZero() {
		s.creditLocked(entry.OrganizerID, delta, entry.PaidAt)
	}
	return nil
}

func (s *InMemoryStore) creditLocked(organizerID string, delta decimal.Decimal, at time.Time) {
	wallet, exists := s.wallets[organizerID]
	if !exists {
		wallet = &models.OrganizerWallet{OrganizerID: organizerID, Balance: decimal.Zero}
		s.wallets[organizerID] = wallet
	}
	wallet.Balance = wallet.Balance.Add(delta)
	wallet.LastUpdated = at
}

func (s *InMemoryStore) GetTransactionByReference(_ context.Context, reference string) (*models.PaymentTransaction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tx, exists := s.transactions[reference]
	if !exists {
		return nil, ErrNotFound
	}
	c := *tx
	return &c, nil
}

func (s *InMemoryStore) GetTicket(_ context.Context, id string) (*models.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ticket, exists := s.tickets[id]
	if !exists {
		return nil, ErrNotFound
	}
	c := *ticket
	return &c, nil
}

func (s *InMemoryStore) GetTicketByQRCode(_ context.Context, qrCode string) (*models.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, ticket := range s.tickets {
		if ticket.QRCode == qrCode {
			c := *ticket
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) ListTicketsByUser(_ context.Context, userID string) ([]*models.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var list []*models.Ticket
	for _, ticket := range s.tickets {
		if ticket.UserID == userID {
			c := *ticket
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PurchaseDate.After(list[j].PurchaseDate) })
	return list, nil
}

func (s *InMemoryStore) ApplyCheckIn(_ context.Context, ticketID string, checkedIn bool, at *time.Time, audit *models.CheckInAudit) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ticket, exists := s.tickets[ticketID]
	if !exists {
		return ErrNotFound
	}
	if ticket.CheckedIn == checkedIn {
		return ErrStaleCheckIn
	}
	ticket.CheckedIn = checkedIn
	ticket.CheckedInAt = at
	a := *audit
	s.audit[ticketID] = append(s.audit[ticketID], &a)
	return nil
}

func (s *InMemoryStore) ListCheckInAudit(_ context.Context, ticketID string) ([]*models.CheckInAudit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	list := make([]*models.CheckInAudit, 0, len(s.audit[ticketID]))
	for _, a := range s.audit[ticketID] {
		c := *a
		list = append(list, &c)
	}
	return list, nil
}

func (s *InMemoryStore) GetWallet(_ context.Context, organizerID string) (*models.OrganizerWallet, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	wallet, exists := s.wallets[organizerID]
	if !exists {
		return &models.OrganizerWallet{OrganizerID: organizerID, Balance: decimal.Zero}, nil
	}
	c := *wallet
	return &c, nil
}

func (s *InMemoryStore) Withdraw(_ context.Context, entry *models.WithdrawalEntry) (*models.OrganizerWallet, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, dup := s.transactions[entry.Reference]; dup {
		return nil, ErrDuplicateReference
	}
	wallet, exists := s.wallets[entry.OrganizerID]
	if !exists || wallet.Balance.LessThan(entry.Amount) {
		return nil, ErrInsufficientFunds
	}
	s.creditLocked(entry.OrganizerID, entry.BalanceDelta(), entry.RequestedAt)
	s.transactions[entry.Reference] = entry.Transaction()

	c := *s.wallets[entry.OrganizerID]
	return &c, nil
}

func (s *InMemoryStore) ListLedger(_ context.Context, organizerID string, limit, offset int) ([]*models.PaymentTransaction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var all []*models.PaymentTransaction
	for _, tx := range s.transactions {
		if tx.OrganizerID == organizerID {
			c := *tx
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PaymentDate.After(all[j].PaymentDate) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Counts reports row totals, used by tests to assert absence of side effects.
func (s *InMemoryStore) Counts() (tickets, transactions int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.tickets), len(s.transactions)
}

func (s *InMemoryStore) HealthCheck(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }
