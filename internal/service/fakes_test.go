package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed bool
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected *apperror.AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ---- in-memory PaymentStore ----

type memStore struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
	audit    map[string][]domain.AuditEntry
	seq      int64
	now      func() time.Time
}

var _ ports.PaymentStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		payments: map[string]domain.Payment{},
		audit:    map[string][]domain.AuditEntry{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *memStore) Create(_ context.Context, p *domain.Payment, message string) (*domain.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.payments[p.PaymentID]; ok {
		if existing.Fingerprint != p.Fingerprint {
			return nil, false, apperror.ErrIdempotencyConflict()
		}
		return &existing, false, nil
	}
	m.payments[p.PaymentID] = *p
	m.appendLocked(p.PaymentID, p.Status, message, p.CreatedAt)
	stored := m.payments[p.PaymentID]
	return &stored, true, nil
}

func (m *memStore) Get(_ context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, apperror.ErrNotFound("Payment")
	}
	return &p, nil
}

func (m *memStore) Transition(_ context.Context, id string, expected, next domain.PaymentStatus, message string) (*domain.Payment, error) {
	if err := domain.ValidateTransition(expected, next); err != nil {
		return nil, apperror.InternalError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, apperror.ErrNotFound("Payment")
	}
	if p.Status != expected {
		return nil, apperror.ErrTransitionConflict(string(expected), string(next), string(p.Status))
	}

	now := m.now()
	p.Status = next
	p.UpdatedAt = now
	if next == domain.PaymentStatusCompleted {
		p.CompletedAt = &now
	}
	m.payments[id] = p
	m.appendLocked(id, next, message, now)
	return &p, nil
}

func (m *memStore) ListAudit(_ context.Context, id string) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[id]; !ok {
		return nil, apperror.ErrNotFound("Payment")
	}
	return append([]domain.AuditEntry{}, m.audit[id]...), nil
}

func (m *memStore) ListByStatus(_ context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Payment
	for _, p := range m.payments {
		for _, s := range statuses {
			if p.Status == s && p.UpdatedAt.Before(updatedBefore) {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) appendLocked(id string, status domain.PaymentStatus, message string, at time.Time) {
	m.seq++
	m.audit[id] = append(m.audit[id], domain.AuditEntry{
		ID:        m.seq,
		PaymentID: id,
		Status:    status,
		Message:   message,
		Timestamp: at,
	})
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memStore) put(p domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.PaymentID] = p
}

// ---- collaborators ----

type fakeIdentity struct {
	mu      sync.Mutex
	tokens  map[string]string // token -> user ID
	users   map[string]*domain.User
	userErr error
	delay   time.Duration
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{tokens: map[string]string{}, users: map[string]*domain.User{}}
}

func (f *fakeIdentity) addUser(token, userID string, kyc domain.KYCStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = userID
	f.users[userID] = &domain.User{UserID: userID, KYCStatus: kyc}
}

func (f *fakeIdentity) VerifyToken(_ context.Context, token string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.tokens[token]
	if !ok {
		return nil, apperror.ErrAuthentication()
	}
	return &domain.Identity{UserID: id}, nil
}

func (f *fakeIdentity) GetUser(ctx context.Context, userID, _ string) (*domain.User, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, apperror.ErrCollaboratorUnavailable("identity-service", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.ErrNotFound("User")
	}
	cp := *u
	return &cp, nil
}

type fakeWallets struct {
	mu        sync.Mutex
	wallets   map[string]*domain.Wallet
	balances  map[string]domain.Balance
	walletErr map[string]error
	balErr    error
	settleErr error
	settled   []domain.Settlement
	applied   map[string]bool
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{
		wallets:   map[string]*domain.Wallet{},
		balances:  map[string]domain.Balance{},
		walletErr: map[string]error{},
		applied:   map[string]bool{},
	}
}

func (f *fakeWallets) addWallet(id, owner, currency string, status domain.WalletStatus, balance string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets[id] = &domain.Wallet{ID: id, OwnerID: owner, Currency: currency, Status: status}
	f.balances[id] = domain.Balance{WalletID: id, Amount: amount(balance), Currency: currency}
}

func (f *fakeWallets) GetWallet(_ context.Context, walletID, _ string) (*domain.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.walletErr[walletID]; err != nil {
		return nil, err
	}
	w, ok := f.wallets[walletID]
	if !ok {
		return nil, apperror.ErrNotFound("Wallet")
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWallets) GetBalance(_ context.Context, walletID, _ string) (*domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.balErr != nil {
		return nil, f.balErr
	}
	b, ok := f.balances[walletID]
	if !ok {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return &b, nil
}

func (f *fakeWallets) Settle(_ context.Context, s domain.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.settleErr != nil {
		return f.settleErr
	}
	f.settled = append(f.settled, s)
	if f.applied[s.Reference] {
		return nil
	}
	f.applied[s.Reference] = true

	from := f.balances[s.FromWallet]
	from.Amount = from.Amount.Sub(s.Amount)
	f.balances[s.FromWallet] = from
	to := f.balances[s.ToWallet]
	to.Amount = to.Amount.Add(s.Amount)
	f.balances[s.ToWallet] = to
	return nil
}

func (f *fakeWallets) settleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settled)
}

type memCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.values[key], nil
}

func (c *memCache) Set(_ context.Context, key, fingerprint string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if _, ok := c.values[key]; !ok {
		c.values[key] = fingerprint
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

// recordingQueue captures enqueued IDs without settling them.
type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
}

func (q *recordingQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.ids...)
}
