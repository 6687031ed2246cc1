package services

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"event-ticketing/internal/config"
	"event-ticketing/internal/gateway"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/mailer"
	"event-ticketing/internal/models"
	"event-ticketing/internal/storage"
)

type fakeGateway struct {
	initCalls   int32
	verifyCalls int32

	mu          sync.Mutex
	lastInit    *gateway.InitializeRequest
	initErr     error
	verify      func(reference string) (*gateway.VerifyResult, error)
	webhook     *gateway.WebhookEvent
	webhookErr  error
	verifyDelay time.Duration
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Initialize(_ context.Context, req *gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	atomic.AddInt32(&g.initCalls, 1)
	g.mu.Lock()
	g.lastInit = req
	g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &gateway.InitializeResult{AuthorizationURL: "https://pay.example/" + req.Reference, Reference: req.Reference}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*gateway.VerifyResult, error) {
	atomic.AddInt32(&g.verifyCalls, 1)
	if g.verifyDelay > 0 {
		time.Sleep(g.verifyDelay)
	}
	return g.verify(reference)
}

func (g *fakeGateway) ParseWebhook([]byte, http.Header) (*gateway.WebhookEvent, error) {
	return g.webhook, g.webhookErr
}

func paidResult(ticketTypeID string, amount int64) func(string) (*gateway.VerifyResult, error) {
	return func(reference string) (*gateway.VerifyResult, error) {
		return &gateway.VerifyResult{
			Reference: reference,
			Status:    models.StatusSuccess,
			Amount:    decimal.NewFromInt(amount),
			Currency:  "NGN",
			PaidAt:    time.Now(),
			Metadata: map[string]string{
				models.MetaUserID:       "buyer-1",
				models.MetaEventID:      "ev-1",
				models.MetaTicketTypeID: ticketTypeID,
				models.MetaOrganizerID:  "org-1",
				models.MetaEmail:        "buyer@example.com",
			},
		}, nil
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.DomainEvent
}

func (p *fakePublisher) Publish(event *models.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeQueue struct {
	mock     bool
	mu       sync.Mutex
	enqueued []*models.WebhookMessage
}

func (q *fakeQueue) MockMode() bool { return q.mock }

func (q *fakeQueue) EnqueueWebhook(msg *models.WebhookMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, msg)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	event     []string
	organizer []string
}

func (n *fakeNotifier) EventChanged(eventID string, change *models.ChangeNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.event = append(n.event, eventID+":"+change.Entity)
}

func (n *fakeNotifier) OrganizerChanged(organizerID string, change *models.ChangeNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.organizer = append(n.organizer, organizerID+":"+change.Entity)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) SendTicketReceipt(to string, r *mailer.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+":"+r.TicketID)
	return nil
}

type fakeLock struct {
	mu   sync.Mutex
	held map[string]string
	err  error
}

func newFakeLock() *fakeLock { return &fakeLock{held: map[string]string{}} }

func (l *fakeLock) AcquireVerification(_ context.Context, reference, owner string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[reference]; ok {
		return false, nil
	}
	l.held[reference] = owner
	return true, nil
}

func (l *fakeLock) ReleaseVerification(_ context.Context, reference, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[reference] == owner {
		delete(l.held, reference)
	}
	return nil
}

// fixture is an event "ev-1" owned by "org-1" with three ticket types:
// tt-paid (5000, 3 of 10 sold), tt-free (0, 9 of 10 sold) and tt-last
// (5000, 0 of 1 sold).
type fixture struct {
	store    *storage.InMemoryStore
	gw       *fakeGateway
	events   *fakePublisher
	queue    *fakeQueue
	notifier *fakeNotifier
	mail     *fakeMailer
	lock     *fakeLock
	log      *logger.Logger

	payments *PaymentService
	tickets  *TicketService
	catalog  *CatalogService
	wallets  *WalletService
}

var (
	buyer     = models.Session{UserID: "buyer-1", Email: "buyer@example.com", Role: models.RoleAttendee}
	organizer = models.Session{UserID: "org-1", Email: "org@example.com", Role: models.RoleOrganizer}
	stranger  = models.Session{UserID: "org-2", Email: "other@example.com", Role: models.RoleOrganizer}
	admin     = models.Session{UserID: "admin-1", Role: models.RoleAdmin}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    storage.NewInMemoryStore(),
		gw:       &fakeGateway{verify: paidResult("tt-paid", 5000)},
		events:   &fakePublisher{},
		queue:    &fakeQueue{mock: true},
		notifier: &fakeNotifier{},
		mail:     &fakeMailer{},
		lock:     newFakeLock(),
		log:      logger.NewLoggerWithWriter(io.Discard, logger.LevelError),
	}

	require.NoError(t, f.store.SaveEvent(ctx, &models.Event{ID: "ev-1", OrganizerID: "org-1", Title: "Launch Night", CreatedAt: time.Now()}))
	for _, tt := range []*models.TicketType{
		{ID: "tt-paid", EventID: "ev-1", Name: "Regular", Price: decimal.NewFromInt(5000), Quantity: 10, Sold: 3, IsActive: true},
		{ID: "tt-free", EventID: "ev-1", Name: "Community", Price: decimal.Zero, Quantity: 10, Sold: 9, IsActive: true},
		{ID: "tt-last", EventID: "ev-1", Name: "VIP", Price: decimal.NewFromInt(5000), Quantity: 1, Sold: 0, IsActive: true},
	} {
		require.NoError(t, f.store.SaveTicketType(ctx, tt))
	}

	cfg := config.PaymentConfig{Gateway: "fake", Currency: "NGN", CallbackURL: "https://app.example/callback"}
	f.payments = NewPaymentService(f.store, f.gw, f.events, f.queue, f.notifier, f.mail, f.lock, cfg, f.log)
	f.tickets = NewTicketService(f.store, f.events, f.notifier, f.log)
	f.catalog = NewCatalogService(f.store, f.events, f.notifier, f.log)
	f.wallets = NewWalletService(f.store, f.events, f.notifier, "NGN", f.log)
	return f
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func (f *fixture) soldOf(t *testing.T, id string) int {
	t.Helper()
	tt, err := f.store.GetTicketType(context.Background(), id)
	require.NoError(t, err)
	return tt.Sold
}

func (f *fixture) balance(t *testing.T, organizerID string) decimal.Decimal {
	t.Helper()
	w, err := f.store.GetWallet(context.Background(), organizerID)
	require.NoError(t, err)
	return w.Balance
}
