//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"paysession/internal/domain"
	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/adapter"
	"paysession/internal/domain/ports/repository"
	"paysession/internal/infra/token"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestIssuer() *token.Issuer {
	return token.NewIssuer("test-secret-test-secret-test-sec", 15*time.Minute)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Began      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Tests
// that care about transactional behavior assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Began++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrActiveSessionExists
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu sync.Mutex

	GetPaymentStatusFunc func(ctx context.Context, gatewayPaymentID string) (*model.GatewayResult, error)
	CancelPaymentFunc    func(ctx context.Context, gatewayPaymentID string, amount int64, reason string) error

	StatusCalls int
	Cancelled   []string
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (*model.GatewayResult, error) {
	g.mu.Lock()
	g.StatusCalls++
	g.mu.Unlock()
	if g.GetPaymentStatusFunc != nil {
		return g.GetPaymentStatusFunc(ctx, gatewayPaymentID)
	}
	return nil, domain.ErrNotFound
}

func (g *MockGateway) CancelPayment(ctx context.Context, gatewayPaymentID string, amount int64, reason string) error {
	g.mu.Lock()
	g.Cancelled = append(g.Cancelled, gatewayPaymentID)
	g.mu.Unlock()
	if g.CancelPaymentFunc != nil {
		return g.CancelPaymentFunc(ctx, gatewayPaymentID, amount, reason)
	}
	return nil
}

// ---- Mock ContentGenerator ----

type MockGenerator struct {
	mu           sync.Mutex
	GenerateFunc func(ctx context.Context, req adapter.GenerateRequest) (string, error)
	Calls        int
}

var _ adapter.ContentGenerator = (*MockGenerator)(nil)

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "generated: " + req.Input, nil
}

// =============================
// In-memory repositories
// =============================

type memOrderRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Order
	SaveFunc func(ctx context.Context, tx repository.Tx, o *model.Order) error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{store: map[string]*model.Order{}}
}

var _ repository.OrderRepository = (*memOrderRepo)(nil)

func (m *memOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Order
	for _, o := range m.store {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderRepo) SetMeta(ctx context.Context, tx repository.Tx, id string, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Meta == nil {
		o.Meta = map[string]interface{}{}
	}
	o.Meta[key] = value
	return nil
}

type memPaymentRepo struct {
	mu              sync.RWMutex
	store           map[string]*model.Payment
	joins           map[string]*model.SessionPayment // by session id
	SaveFunc        func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateIfPending func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, method *string, paidAt *time.Time) (bool, error)
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: map[string]*model.Payment{}, joins: map[string]*model.SessionPayment{}}
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByGatewayRef(ctx context.Context, tx repository.Tx, ref string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.GatewayRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) SetGatewayRef(ctx context.Context, tx repository.Tx, id string, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.GatewayRef = ref
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, method *string, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	if method != nil {
		p.Method = *method
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, method *string, paidAt *time.Time) (bool, error) {
	if m.UpdateIfPending != nil {
		return m.UpdateIfPending(ctx, tx, id, status, method, paidAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if method != nil {
		p.Method = *method
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPaymentRepo) SaveSessionPayment(ctx context.Context, tx repository.Tx, sp *model.SessionPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sp
	m.joins[sp.SessionID] = &cp
	return nil
}

func (m *memPaymentRepo) FindSessionPaymentBySession(ctx context.Context, tx repository.Tx, sessionID string) (*model.SessionPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sp, ok := m.joins[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

type memSessionRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Session
	messages map[string][]model.SessionMessage
	payments *memPaymentRepo // owns the session/payment join table
	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.Session) error
}

func newMemSessionRepo(payments *memPaymentRepo) *memSessionRepo {
	return &memSessionRepo{
		store:    map[string]*model.Session{},
		messages: map[string][]model.SessionMessage{},
		payments: payments,
	}
}

var _ repository.SessionRepository = (*memSessionRepo)(nil)

func (m *memSessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Session) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) FindActiveByUserAndCategory(ctx context.Context, tx repository.Tx, userID, category string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID && s.Category == category && s.Active {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.SessionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *memSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string, limit int) ([]model.SessionMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.SessionMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *memSessionRepo) SetArtifact(ctx context.Context, tx repository.Tx, id string, artifactID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.ArtifactID = &artifactID
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memSessionRepo) Finish(ctx context.Context, tx repository.Tx, id string, status model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.Active = false
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memSessionRepo) AddBudget(ctx context.Context, tx repository.Tx, id string, seconds int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.BudgetSecs += seconds
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *memSessionRepo) ConsumeBudget(ctx context.Context, tx repository.Tx, id string, seconds int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || !s.Active {
		return 0, domain.ErrSessionNotActive
	}
	s.BudgetSecs -= seconds
	if s.BudgetSecs < 0 {
		s.BudgetSecs = 0
	}
	s.UpdatedAt = time.Now()
	return s.BudgetSecs, nil
}

func (m *memSessionRepo) ExpireOlderThan(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.Active && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			s.Status = model.SessionExpired
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (m *memSessionRepo) DeactivateByOrder(ctx context.Context, tx repository.Tx, orderID string) error {
	var ids []string
	m.payments.mu.RLock()
	for sid, sp := range m.payments.joins {
		if sp.OrderID == orderID {
			ids = append(ids, sid)
		}
	}
	m.payments.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if s, ok := m.store[id]; ok && s.Active {
			s.Status = model.SessionCancelled
			s.Active = false
			s.UpdatedAt = time.Now()
		}
	}
	return nil
}

type memCreditRepo struct {
	mu    sync.RWMutex
	store map[string]*model.TimeCredit // key user|day
}

func newMemCreditRepo() *memCreditRepo {
	return &memCreditRepo{store: map[string]*model.TimeCredit{}}
}

var _ repository.TimeCreditRepository = (*memCreditRepo)(nil)

func creditKey(userID string, day time.Time) string {
	return userID + "|" + model.CreditDay(day).Format("2006-01-02")
}

func (m *memCreditRepo) Find(ctx context.Context, tx repository.Tx, userID string, day time.Time) (*model.TimeCredit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tc, ok := m.store[creditKey(userID, day)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tc
	return &cp, nil
}

func (m *memCreditRepo) MarkFreeUsed(ctx context.Context, tx repository.Tx, userID string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := creditKey(userID, day)
	tc, ok := m.store[k]
	if !ok {
		m.store[k] = &model.TimeCredit{UserID: userID, Day: model.CreditDay(day), FreeUsed: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		return true, nil
	}
	if tc.FreeUsed {
		return false, nil
	}
	tc.FreeUsed = true
	tc.UpdatedAt = time.Now()
	return true, nil
}

func (m *memCreditRepo) AddPurchasedMinutes(ctx context.Context, tx repository.Tx, userID string, day time.Time, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := creditKey(userID, day)
	tc, ok := m.store[k]
	if !ok {
		m.store[k] = &model.TimeCredit{UserID: userID, Day: model.CreditDay(day), PurchasedMinutes: minutes, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		return nil
	}
	tc.PurchasedMinutes += minutes
	tc.UpdatedAt = time.Now()
	return nil
}
