// Package stub provides in-memory exchange doubles for tests.
package stub

import (
	"context"
	"sync"

	"agent-funding-engine/internal/domain"
	"agent-funding-engine/internal/exchange"
)

// Client implements exchange.Client for testing.
type Client struct {
	mu sync.Mutex

	Fills    map[string][]domain.Fill
	Balances map[string]float64

	// FillsErr and BalanceErr, when set, are returned by the corresponding
	// call instead of data.
	FillsErr   error
	BalanceErr error

	BalanceCalls int
}

// NewClient creates a new stub exchange client.
func NewClient() *Client {
	return &Client{
		Fills:    make(map[string][]domain.Fill),
		Balances: make(map[string]float64),
	}
}

// FetchFills returns the configured fill history for an address.
func (c *Client) FetchFills(_ context.Context, address string) ([]domain.Fill, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FillsErr != nil {
		return nil, c.FillsErr
	}
	return c.Fills[address], nil
}

// FetchBalance returns the configured balance for an address.
func (c *Client) FetchBalance(_ context.Context, address string) (*exchange.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.BalanceCalls++
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	return &exchange.Balance{AccountValue: c.Balances[address]}, nil
}

// SetBalance updates the balance returned for an address.
func (c *Client) SetBalance(address string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Balances[address] = value
}

// Compile-time interface check.
var _ exchange.Client = (*Client)(nil)

// FillStream implements exchange.FillStream over a caller-fed channel.
type FillStream struct {
	Events chan domain.FillEvent

	closeOnce sync.Once
}

// NewFillStream creates a stub settlement stream.
func NewFillStream(buffer int) *FillStream {
	return &FillStream{Events: make(chan domain.FillEvent, buffer)}
}

// Subscribe returns the caller-fed event channel.
func (s *FillStream) Subscribe(_ context.Context) (<-chan domain.FillEvent, error) {
	return s.Events, nil
}

// Close closes the event channel.
func (s *FillStream) Close() error {
	s.closeOnce.Do(func() { close(s.Events) })
	return nil
}

// Compile-time interface check.
var _ exchange.FillStream = (*FillStream)(nil)
