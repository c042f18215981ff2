package postgres

import (
	"context"
	"testing"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	ts := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.AuditEntry{
		PaymentID: "pay-001",
		Status:    domain.PaymentStatusPending,
		Message:   domain.AuditMessageCreated,
		Timestamp: ts,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO payment_audit_log .+ RETURNING id").
		WithArgs("pay-001", domain.PaymentStatusPending, "Payment created", ts).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Append(context.Background(), dbTx, entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ListByPayment_Ordered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	ts := time.Now().UTC().Truncate(time.Microsecond)

	// The second writer's clock ran behind the first one.
	mock.ExpectQuery("SELECT .+ FROM payment_audit_log\\s+WHERE payment_id = \\$1\\s+ORDER BY id ASC").
		WithArgs("pay-001").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payment_id", "status", "message", "created_at"}).
			AddRow(int64(1), "pay-001", domain.PaymentStatusPending, domain.AuditMessageCreated, ts).
			AddRow(int64(2), "pay-001", domain.PaymentStatusProcessing, domain.AuditMessageProcessing, ts.Add(-time.Minute)).
			AddRow(int64(3), "pay-001", domain.PaymentStatusCompleted, domain.AuditMessageCompleted, ts.Add(time.Second)))

	entries, err := repo.ListByPayment(context.Background(), "pay-001")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.PaymentStatusPending, entries[0].Status)
	assert.Equal(t, domain.PaymentStatusProcessing, entries[1].Status)
	assert.Equal(t, "Payment completed successfully", entries[2].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_ListByPayment_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM payment_audit_log").
		WithArgs("pay-404").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payment_id", "status", "message", "created_at"}))

	entries, err := repo.ListByPayment(context.Background(), "pay-404")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestTransactor_BeginUsesReadCommitted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(NewTransactor(mock).opts)

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())

	mock.ExpectExec("SELECT 1 FROM payments").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	assert.NoError(t, hc.Ping(context.Background()))

	mock.ExpectExec("SELECT 1 FROM payments").WillReturnError(assert.AnError)
	assert.ErrorContains(t, hc.Ping(context.Background()), "postgres ping")
}
