// Package archive streams settled transactions to durable storage. The
// in-memory ledger stays the source of truth; the archive is a write-only,
// best-effort copy for reporting and audit.
package archive

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbongo-ledger/mbongo/internal/ledger"
)

const insertTransaction = `INSERT INTO transactions
    (tx_id, account_id, sequence, kind, amount, counterparty, balance_after, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (account_id, sequence) DO NOTHING`

type entry struct {
	accountID string
	tx        ledger.Transaction
}

// Postgres archives settled transactions through a buffered queue drained by
// a single background worker, keeping inserts off the settlement path.
type Postgres struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	queue   chan entry
	stopped chan struct{}
}

// NewPostgres builds an archiver over the given pool. Call Run to start the
// drain loop and Close to stop it.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	return &Postgres{
		pool:    pool,
		logger:  logger,
		queue:   make(chan entry, 1024),
		stopped: make(chan struct{}),
	}
}

// Archive enqueues a settled transaction. When the queue is full the entry is
// dropped rather than blocking settlement.
func (p *Postgres) Archive(accountID string, tx ledger.Transaction) {
	select {
	case p.queue <- entry{accountID: accountID, tx: tx}:
	default:
		p.logger.Warn("archive queue full, dropping transaction",
			"account_id", accountID, "tx_id", tx.TxID, "sequence", tx.Sequence)
	}
}

// Run drains the queue until ctx is cancelled and Close is called, then
// flushes whatever remains buffered.
func (p *Postgres) Run(ctx context.Context) {
	defer close(p.stopped)
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case e := <-p.queue:
			p.insert(ctx, e)
		}
	}
}

// Wait blocks until the drain loop has exited.
func (p *Postgres) Wait() {
	<-p.stopped
}

func (p *Postgres) flush() {
	for {
		select {
		case e := <-p.queue:
			p.insert(context.Background(), e)
		default:
			return
		}
	}
}

func (p *Postgres) insert(ctx context.Context, e entry) {
	_, err := p.pool.Exec(ctx, insertTransaction,
		e.tx.TxID, e.accountID, e.tx.Sequence, string(e.tx.Kind),
		e.tx.Amount, e.tx.Counterparty, e.tx.BalanceAfter, e.tx.Timestamp)
	if err != nil {
		p.logger.Error("archive transaction", "account_id", e.accountID, "tx_id", e.tx.TxID, "error", err)
	}
}
