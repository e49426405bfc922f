// Package payment defines the contract the reservation engine consumes
// from the external payment provider. The engine never talks to the
// provider while holding a database transaction: it initiates and
// verifies first, then writes the result in an independent transaction.
package payment

import (
    "context"
    "errors"
    "sync"

    "github.com/google/uuid"
)

// Result is the provider's verdict for one transaction.
type Result struct {
    TransactionID string
    Success       bool
    AmountCents   uint32
}

// Provider is the opaque payment capability. Initiate opens a charge
// for the given amount against the payer's handle and returns the
// provider transaction ID. Verify reports whether that transaction
// ultimately succeeded and for what amount. Void cancels a settled
// charge; the engine calls it when the seat was lost between
// verification and confirmation so the passenger is not billed for a
// ticket they did not get.
type Provider interface {
    Initiate(ctx context.Context, amountCents uint32, payerHandle string) (string, error)
    Verify(ctx context.Context, transactionID string) (Result, error)
    Void(ctx context.Context, transactionID string) error
}

// ErrUnknownTransaction is returned by Verify and Void for a
// transaction ID the provider never issued.
var ErrUnknownTransaction = errors.New("unknown transaction")

// MockProvider simulates a gateway for tests and local development.
// Every initiated charge verifies successfully unless the payer handle
// appears in FailFor. Concurrent payment requests share one provider
// instance, so charge state is guarded by a mutex.
type MockProvider struct {
    FailFor map[string]bool

    mu      sync.Mutex
    charges map[string]charge
    voided  map[string]bool
}

type charge struct {
    amountCents uint32
    payerHandle string
}

// NewMockProvider returns an empty MockProvider.
func NewMockProvider() *MockProvider {
    return &MockProvider{
        FailFor: make(map[string]bool),
        charges: make(map[string]charge),
        voided:  make(map[string]bool),
    }
}

func (p *MockProvider) Initiate(ctx context.Context, amountCents uint32, payerHandle string) (string, error) {
    id := uuid.NewString()
    p.mu.Lock()
    p.charges[id] = charge{amountCents: amountCents, payerHandle: payerHandle}
    p.mu.Unlock()
    return id, nil
}

func (p *MockProvider) Verify(ctx context.Context, transactionID string) (Result, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    c, ok := p.charges[transactionID]
    if !ok {
        return Result{}, ErrUnknownTransaction
    }
    return Result{
        TransactionID: transactionID,
        Success:       !p.FailFor[c.payerHandle],
        AmountCents:   c.amountCents,
    }, nil
}

func (p *MockProvider) Void(ctx context.Context, transactionID string) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if _, ok := p.charges[transactionID]; !ok {
        return ErrUnknownTransaction
    }
    p.voided[transactionID] = true
    return nil
}

// Voided reports whether the charge has been voided.
func (p *MockProvider) Voided(transactionID string) bool {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.voided[transactionID]
}

var _ Provider = (*MockProvider)(nil)
