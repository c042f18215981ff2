package service

import (
	"context"
	"sync"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
)

// SettlementConfig tunes the background settlement worker.
type SettlementConfig struct {
	Workers       int
	QueueSize     int
	SettleTimeout time.Duration
	SweepInterval time.Duration
	PendingGrace  time.Duration // PENDING older than this is re-enqueued
	StuckAfter    time.Duration // PROCESSING older than this is re-enqueued
	SweepBatch    int
}

// SettlementWorker drives payments from PENDING to COMPLETED or FAILED.
// It implements ports.SettlementQueue. All work runs on the context given
// to Run, never on the context of the request that created the payment.
type SettlementWorker struct {
	store   ports.PaymentStore
	wallets ports.WalletClient
	events  ports.EventPublisher
	cfg     SettlementConfig
	queue   chan string
	queued  sync.Map // payment IDs queued or in flight
	log     zerolog.Logger
	now     func() time.Time
}

// NewSettlementWorker creates a new SettlementWorker. Call Run to start it.
func NewSettlementWorker(
	store ports.PaymentStore,
	wallets ports.WalletClient,
	events ports.EventPublisher,
	cfg SettlementConfig,
	log zerolog.Logger,
) *SettlementWorker {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 10 * time.Second
	}
	if cfg.SweepBatch < 1 {
		cfg.SweepBatch = 100
	}
	return &SettlementWorker{
		store:   store,
		wallets: wallets,
		events:  events,
		cfg:     cfg,
		queue:   make(chan string, cfg.QueueSize),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue schedules paymentID for settlement without blocking. A full
// queue drops the ID; the sweeper picks the payment up later.
func (w *SettlementWorker) Enqueue(paymentID string) {
	if _, loaded := w.queued.LoadOrStore(paymentID, struct{}{}); loaded {
		return
	}
	select {
	case w.queue <- paymentID:
	default:
		w.queued.Delete(paymentID)
		w.log.Warn().Str("payment_id", paymentID).Msg("settlement queue full, deferring to sweeper")
	}
}

// Run starts the workers and the sweeper and blocks until ctx is cancelled
// and every in-flight settlement has returned.
func (w *SettlementWorker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	if w.cfg.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.sweepLoop(ctx)
		}()
	}

	w.log.Info().Int("workers", w.cfg.Workers).Msg("settlement worker started")
	wg.Wait()
	w.log.Info().Msg("settlement worker stopped")
}

func (w *SettlementWorker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-w.queue:
			w.Process(ctx, id)
			w.queued.Delete(id)
		}
	}
}

// Process settles one payment. PENDING payments are moved to PROCESSING
// first; PROCESSING payments (recovered by the sweeper) are settled again
// under the same reference. Anything else is left alone.
func (w *SettlementWorker) Process(ctx context.Context, paymentID string) {
	log := w.log.With().Str("payment_id", paymentID).Logger()

	p, err := w.store.Get(ctx, paymentID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load payment for settlement")
		return
	}

	switch p.Status {
	case domain.PaymentStatusPending:
		p, err = w.store.Transition(ctx, paymentID, domain.PaymentStatusPending, domain.PaymentStatusProcessing, domain.AuditMessageProcessing)
		if err != nil {
			w.logTransitionError(log, err)
			return
		}
	case domain.PaymentStatusProcessing:
		log.Info().Msg("resuming settlement")
	default:
		log.Debug().Str("status", string(p.Status)).Msg("payment already settled, skipping")
		return
	}

	settleCtx, cancel := context.WithTimeout(ctx, w.cfg.SettleTimeout)
	err = w.wallets.Settle(settleCtx, domain.Settlement{
		Reference:  p.PaymentID,
		FromWallet: p.FromWallet,
		ToWallet:   p.ToWallet,
		Amount:     p.Amount,
		Currency:   p.Currency,
	})
	cancel()

	if err != nil && ctx.Err() != nil {
		log.Warn().Err(err).Msg("shutdown during settlement, payment stays processing")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("settlement failed")
		w.finish(ctx, p, domain.PaymentStatusFailed, err.Error())
		return
	}
	w.finish(ctx, p, domain.PaymentStatusCompleted, domain.AuditMessageCompleted)
}

// finish records the outcome even if ctx is being cancelled, since the
// wallet call has already returned.
func (w *SettlementWorker) finish(ctx context.Context, p *domain.Payment, next domain.PaymentStatus, message string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.SettleTimeout)
	defer cancel()

	updated, err := w.store.Transition(fctx, p.PaymentID, domain.PaymentStatusProcessing, next, message)
	if err != nil {
		w.logTransitionError(w.log.With().Str("payment_id", p.PaymentID).Logger(), err)
		return
	}
	publishOutcome(fctx, w.events, w.log, updated, w.now())
}

func (w *SettlementWorker) logTransitionError(log zerolog.Logger, err error) {
	if apperror.HasCode(err, apperror.CodeTransitionConflict) {
		log.Info().Err(err).Msg("lost transition race, dropping")
		return
	}
	log.Error().Err(err).Msg("payment transition failed")
}

func (w *SettlementWorker) sweepLoop(ctx context.Context) {
	w.sweep(ctx)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep re-enqueues PENDING payments that missed the queue and PROCESSING
// payments whose worker died.
func (w *SettlementWorker) sweep(ctx context.Context) {
	now := w.now()
	passes := []struct {
		status domain.PaymentStatus
		age    time.Duration
	}{
		{domain.PaymentStatusPending, w.cfg.PendingGrace},
		{domain.PaymentStatusProcessing, w.cfg.StuckAfter},
	}

	for _, pass := range passes {
		payments, err := w.store.ListByStatus(ctx, []domain.PaymentStatus{pass.status}, now.Add(-pass.age), w.cfg.SweepBatch)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Str("status", string(pass.status)).Msg("settlement sweep failed")
			}
			continue
		}
		for _, p := range payments {
			w.Enqueue(p.PaymentID)
		}
		if len(payments) > 0 {
			w.log.Info().Str("status", string(pass.status)).Int("count", len(payments)).Msg("re-enqueued payments")
		}
	}
}

// publishOutcome emits the event for p's status. Failures are logged only.
func publishOutcome(ctx context.Context, events ports.EventPublisher, log zerolog.Logger, p *domain.Payment, at time.Time) {
	ev, ok := domain.NewPaymentEvent(p, at)
	if !ok {
		return
	}
	if err := events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("payment_id", p.PaymentID).Str("event_type", ev.EventType).Msg("failed to publish payment event")
	}
}
