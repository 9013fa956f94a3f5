// Package exchange defines the contracts the engine consumes from the
// trading venue: historical fills, balance snapshots, and the settlement
// stream. Implementations must distinguish transient unavailability
// (ErrUnavailable) from "account has no data" (empty results), since call
// sites degrade differently on each.
package exchange

import (
	"context"
	"errors"

	"agent-funding-engine/internal/domain"
)

// ErrUnavailable signals a transient exchange failure (timeout, 5xx,
// connection refused). Callers apply their documented fallback policy
// instead of failing the whole operation.
var ErrUnavailable = errors.New("exchange unavailable")

// Balance is a point-in-time account value snapshot.
type Balance struct {
	AccountValue float64
}

// Client reads account state from the exchange.
type Client interface {
	// FetchFills returns the chronologically ordered fill history for an
	// address. An account with no trading history returns an empty slice,
	// not an error.
	FetchFills(ctx context.Context, address string) ([]domain.Fill, error)

	// FetchBalance returns the current account value for an address.
	FetchBalance(ctx context.Context, address string) (*Balance, error)
}

// FillStream delivers settled fills pushed by the exchange. Redelivery
// after reconnects is expected; consumers de-duplicate by FillID.
type FillStream interface {
	// Subscribe starts delivery of settled fills. The channel closes when
	// the stream shuts down.
	Subscribe(ctx context.Context) (<-chan domain.FillEvent, error)

	// Close tears down the stream.
	Close() error
}
