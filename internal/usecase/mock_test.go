//go:build !integration

package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- Mock TransactionManager ----

type noTx struct{}

type mockTxManager struct{}

func newMockTxManager() *mockTxManager { return &mockTxManager{} }

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}

// ---- Mock PlanRepository ----

type mockPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.Plan

	SaveFunc           func(ctx context.Context, tx repository.Tx, p *model.Plan) error
	FindActiveByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*mockPlanRepo)(nil)

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: map[string]*model.Plan{}}
}

func (m *mockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockPlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPlanRepo) FindActiveByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindActiveByIDFunc != nil {
		return m.FindActiveByIDFunc(ctx, tx, id)
	}
	p, err := m.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPlanRepo) ListActive(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationMonths < out[j].DurationMonths })
	return out, nil
}

func (m *mockPlanRepo) ListAll(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationMonths < out[j].DurationMonths })
	return out, nil
}

// ---- Mock SubscriptionRepository ----

type mockSubRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription

	SaveFunc                func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindActiveByUserFunc    func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
	FindByTransactionIDFunc func(ctx context.Context, tx repository.Tx, transactionID string) (*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*mockSubRepo)(nil)

func newMockSubRepo() *mockSubRepo {
	return &mockSubRepo{subs: map[string]*model.Subscription{}}
}

func (m *mockSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *mockSubRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Subscription, error) {
	if m.FindByTransactionIDFunc != nil {
		return m.FindByTransactionIDFunc(ctx, tx, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.Payment.TransactionID == transactionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockSubRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if m.FindActiveByUserFunc != nil {
		return m.FindActiveByUserFunc(ctx, tx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var best *model.Subscription
	for _, s := range m.subs {
		if s.UserID != userID || !s.IsActive || s.Payment.Status != model.PaymentStatusCompleted {
			continue
		}
		if s.EndDate.Before(now) {
			continue
		}
		if best == nil || s.EndDate.After(best.EndDate) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockSubRepo) ListByUser(_ context.Context, _ repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockSubRepo) DeactivateOthers(_ context.Context, _ repository.Tx, userID, keepID, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, s := range m.subs {
		if s.UserID == userID && s.IsActive && s.ID != keepID {
			s.IsActive = false
			s.CancelledAt = &now
			s.CancellationReason = reason
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *mockSubRepo) ExpireDue(_ context.Context, _ repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.IsActive && s.EndDate.Before(now) {
			s.IsActive = false
			cancelled := now
			s.CancelledAt = &cancelled
			s.CancellationReason = "Subscription expired"
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *mockSubRepo) ListExpiring(_ context.Context, _ repository.Tx, withinDays int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	limit := now.AddDate(0, 0, withinDays)
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.IsActive && s.Payment.Status == model.PaymentStatusCompleted &&
			s.EndDate.After(now) && !s.EndDate.After(limit) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSubRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, cutoff time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.Payment.Status == model.PaymentStatusPending && s.CreatedAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockSubRepo) CountByStatus(_ context.Context, _ repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.SubscriptionStatus]int{}
	now := time.Now()
	for _, s := range m.subs {
		out[s.Status(now)]++
	}
	return out, nil
}

func (m *mockSubRepo) CountActiveByPlan(_ context.Context, _ repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	now := time.Now()
	for _, s := range m.subs {
		if s.IsActive && s.Payment.Status == model.PaymentStatusCompleted && s.EndDate.After(now) {
			out[s.PlanID]++
		}
	}
	return out, nil
}

// countActive is a test helper, not part of the port.
func (m *mockSubRepo) countActive(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if s.UserID == userID && s.IsActive {
			n++
		}
	}
	return n
}

func (m *mockSubRepo) get(id string) *model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// ---- Mock UserRepository ----

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*model.User{}}
}

func (m *mockUserRepo) Save(_ context.Context, _ repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ repository.Tx, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Mock OutboxRepository ----

type mockOutboxRepo struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

var _ repository.OutboxRepository = (*mockOutboxRepo)(nil)

func newMockOutboxRepo() *mockOutboxRepo { return &mockOutboxRepo{} }

func (m *mockOutboxRepo) Enqueue(_ context.Context, _ repository.Tx, ev *model.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.SubscriptionID == ev.SubscriptionID && e.Kind == ev.Kind {
			return nil // duplicate pair is silently dropped
		}
	}
	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *mockOutboxRepo) ListUnsent(_ context.Context, _ repository.Tx, limit int) ([]*model.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range m.events {
		if e.SentAt == nil {
			cp := *e
			out = append(out, &cp)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockOutboxRepo) MarkSent(_ context.Context, _ repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			sent := at
			e.SentAt = &sent
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockOutboxRepo) IncAttempts(_ context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Attempts++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockOutboxRepo) Exists(_ context.Context, _ repository.Tx, subscriptionID string, kind model.NotificationKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.SubscriptionID == subscriptionID && e.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOutboxRepo) all() []*model.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.OutboxEvent, len(m.events))
	for i, e := range m.events {
		cp := *e
		out[i] = &cp
	}
	return out
}

// ---- Mock PaymentGateway ----

type mockGateway struct {
	InitiateSessionFunc   func(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error)
	ValidatePaymentFunc   func(ctx context.Context, valID string) (*adapter.ValidationResult, error)
	VerifyTransactionFunc func(ctx context.Context, transactionID string) (*adapter.ValidationResult, error)
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) InitiateSession(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error) {
	if g.InitiateSessionFunc != nil {
		return g.InitiateSessionFunc(ctx, req)
	}
	return &adapter.Session{GatewayURL: "https://gateway.test/pay", SessionKey: "sess-1"}, nil
}

func (g *mockGateway) ValidatePayment(ctx context.Context, valID string) (*adapter.ValidationResult, error) {
	if g.ValidatePaymentFunc != nil {
		return g.ValidatePaymentFunc(ctx, valID)
	}
	return &adapter.ValidationResult{Status: "VALID", ValID: valID}, nil
}

func (g *mockGateway) VerifyTransaction(ctx context.Context, transactionID string) (*adapter.ValidationResult, error) {
	if g.VerifyTransactionFunc != nil {
		return g.VerifyTransactionFunc(ctx, transactionID)
	}
	return &adapter.ValidationResult{Status: "VALID", TransactionID: transactionID}, nil
}

func (g *mockGateway) InitiateRefund(context.Context, string, int64, string) error { return nil }

func (g *mockGateway) VerifySignature(string, string, string, string) bool { return true }

// ---- Mock Mailer ----

type mockMailer struct {
	mu       sync.Mutex
	sent     []adapter.Email
	SendFunc func(ctx context.Context, e adapter.Email) error
}

var _ adapter.Mailer = (*mockMailer)(nil)

func (m *mockMailer) Send(ctx context.Context, e adapter.Email) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
