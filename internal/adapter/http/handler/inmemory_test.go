package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[string]domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.PaymentID]; ok {
		return false, nil
	}
	r.payments[p.PaymentID] = *p
	return true, nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, expected, next domain.PaymentStatus, completedAt *time.Time) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != expected {
		return nil, nil
	}
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	r.payments[id] = p
	return &p, nil
}

func (r *inMemoryPaymentRepo) ListByStatus(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.payments {
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

func (r *inMemoryPaymentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.AuditEntry
}

func (r *inMemoryAuditRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryAuditRepo) ListByPayment(ctx context.Context, paymentID string) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.AuditEntry{}
	for _, e := range r.entries {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func (inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx; the in-memory repos ignore it.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *noopTx) Conn() *pgx.Conn                                               { return nil }

// --- Fake collaborators ---

type fakeWallet struct {
	owner    string
	currency string
	status   string
	balance  decimal.Decimal
	frozen   bool
}

type fakeSettlement struct {
	Reference    string `json:"reference"`
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	Amount       string `json:"amount"`
}

// collaborators serves the identity and wallet HTTP contracts from memory.
type collaborators struct {
	mu      sync.Mutex
	tokens  map[string]string // token -> user ID
	kyc     map[string]string // user ID -> kyc_status
	wallets map[string]*fakeWallet
	settled map[string]fakeSettlement // by reference

	identity *httptest.Server
	wallet   *httptest.Server
}

func newCollaborators() *collaborators {
	c := &collaborators{
		tokens:  map[string]string{},
		kyc:     map[string]string{},
		wallets: map[string]*fakeWallet{},
		settled: map[string]fakeSettlement{},
	}
	c.identity = httptest.NewServer(c.identityMux())
	c.wallet = httptest.NewServer(c.walletMux())
	return c
}

func (c *collaborators) close() {
	c.identity.Close()
	c.wallet.Close()
}

func (c *collaborators) addUser(id, token, kyc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token] = id
	c.kyc[id] = kyc
}

func (c *collaborators) addWallet(id, owner, currency, balance string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets[id] = &fakeWallet{owner: owner, currency: currency, status: "active", balance: decimal.RequireFromString(balance)}
}

func (c *collaborators) freeze(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets[id].frozen = true
}

func (c *collaborators) balance(id string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallets[id].balance
}

func (c *collaborators) settlements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.settled)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (c *collaborators) identityMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/auth/verify-token", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		uid, ok := c.tokens[bearerOf(r)]
		c.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"user_id": uid})
	})
	mux.HandleFunc("GET /api/auth/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		kyc, ok := c.kyc[r.PathValue("id")]
		c.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id"), "kyc_status": kyc})
	})
	return mux
}

func (c *collaborators) walletMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/wallet/{id}", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		wl, ok := c.wallets[r.PathValue("id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id": r.PathValue("id"), "owner_id": wl.owner, "currency": wl.currency, "status": wl.status,
		})
	})
	mux.HandleFunc("GET /api/wallet/{id}/balance", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		wl, ok := c.wallets[r.PathValue("id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"balance": wl.balance.String(), "currency": wl.currency})
	})
	mux.HandleFunc("GET /api/wallet/settlements", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec, ok := c.settled[r.URL.Query().Get("reference")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})
	mux.HandleFunc("POST /api/wallet/settlements", func(w http.ResponseWriter, r *http.Request) {
		var body fakeSettlement
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || bearerOf(r) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.settled[body.Reference]; ok {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "already settled"})
			return
		}
		amount := decimal.RequireFromString(body.Amount)
		from, to := c.wallets[body.FromWalletID], c.wallets[body.ToWalletID]
		if from.frozen || to.frozen {
			writeJSON(w, http.StatusConflict, map[string]string{"detail": "wallet frozen: concurrent modification"})
			return
		}
		if from.balance.LessThan(amount) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "insufficient funds"})
			return
		}
		from.balance = from.balance.Sub(amount)
		to.balance = to.balance.Add(amount)
		c.settled[body.Reference] = body
		writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
	})
	return mux
}
