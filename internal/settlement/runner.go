// Package settlement consumes the exchange's settled-fill stream and routes
// each fill to the profit ledger. Events for addresses the engine does not
// manage are skipped, not errors: the stream carries the whole venue's fills.
package settlement

import (
	"context"
	"errors"
	"log"
	"os"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/exchange"
	"agent-funding-engine/internal/ledger"
	"agent-funding-engine/internal/observability"
	"agent-funding-engine/internal/storage"
)

// Runner pumps fill events from the stream into the ledger.
type Runner struct {
	stream   exchange.FillStream
	accounts storage.PoolAccountStore
	ledger   *ledger.Ledger
	logger   *log.Logger
}

// NewRunner creates a settlement runner.
func NewRunner(stream exchange.FillStream, accounts storage.PoolAccountStore, l *ledger.Ledger, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(os.Stdout, "[settlement] ", log.LstdFlags|log.Lshortfile)
	}
	return &Runner{
		stream:   stream,
		accounts: accounts,
		ledger:   l,
		logger:   logger,
	}
}

// Run consumes the stream until ctx is cancelled or the stream closes. Each
// event is applied independently; a failure on one event is logged and the
// next event is processed, since the ledger's fill-ID dedup makes redelivery
// safe.
func (r *Runner) Run(ctx context.Context) error {
	events, err := r.stream.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				r.logger.Printf("settlement stream closed")
				return nil
			}
			r.handle(ctx, event)
		}
	}
}

// handle applies one fill event to the owning agent's ledger.
func (r *Runner) handle(ctx context.Context, event domain.FillEvent) {
	observability.RecordSettlementEvent()

	if event.FillID == "" {
		r.logger.Printf("fill event without fill ID skipped: account=%s", event.AccountAddress)
		observability.RecordSettlementSkip("missing_fill_id")
		return
	}

	acct, err := r.accounts.GetByAddress(ctx, event.AccountAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordSettlementSkip("unknown_account")
			return
		}
		r.logger.Printf("account lookup failed: account=%s fill=%s err=%v", event.AccountAddress, event.FillID, err)
		observability.RecordSettlementSkip("lookup_error")
		return
	}
	if acct.Free() {
		// A funded account with no agent yet; its fills belong to nobody.
		observability.RecordSettlementSkip("unassigned_account")
		return
	}

	app, err := r.ledger.ApplyFill(ctx, acct.AssignedTo, event.FillID, event.ClosedPnl)
	if err != nil {
		r.logger.Printf("fill application failed: agent=%s fill=%s err=%v", acct.AssignedTo, event.FillID, err)
		observability.RecordSettlementSkip("apply_error")
		return
	}
	if app.Result == ledger.ApplyResultApplied && event.ClosedPnl != 0 {
		r.logger.Printf("fill applied: agent=%s fill=%s pnl=%.2f agent_share=%.2f",
			acct.AssignedTo, event.FillID, event.ClosedPnl, app.AgentShare)
	}
}
