// Package booking implements the reservation engine: seat allocation,
// payment transitions, cancellation, expiry reclamation and check-in.
// It owns no SQL itself; atomicity lives in the repository.Store
// implementations, while this package sequences the operations around
// them (reclaim before allocate, provider calls outside transactions,
// events after commit).
package booking

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/train-seat-reservation/internal/model"
    "github.com/iliyamo/train-seat-reservation/internal/payment"
    "github.com/iliyamo/train-seat-reservation/internal/queue"
    "github.com/iliyamo/train-seat-reservation/internal/repository"
)

// ErrPaymentDeclined is returned by Pay when the provider reports a
// failed transaction. The ticket has already been cancelled and its
// seat released by the time the caller sees this.
var ErrPaymentDeclined = errors.New("payment declined")

// Publisher delivers ticket lifecycle events to the message broker.
// Publish failures must never fail the triggering operation.
type Publisher interface {
    PublishTicketStatus(ctx context.Context, ev queue.TicketStatusEvent) error
}

// PublisherFunc adapts a plain function to the Publisher interface.
type PublisherFunc func(ctx context.Context, ev queue.TicketStatusEvent) error

func (f PublisherFunc) PublishTicketStatus(ctx context.Context, ev queue.TicketStatusEvent) error {
    return f(ctx, ev)
}

// Service wires the storage, the payment provider and the event
// publisher into the booking operations exposed to handlers.
type Service struct {
    store     repository.Store
    provider  payment.Provider
    publisher Publisher
}

// NewService constructs a Service. The publisher may be nil, in which
// case events are silently skipped (useful for tests and local runs
// without a broker).
func NewService(store repository.Store, provider payment.Provider, publisher Publisher) *Service {
    if store == nil || provider == nil {
        panic("nil dependency passed to booking.NewService")
    }
    return &Service{store: store, provider: provider, publisher: publisher}
}

// Reserve books one seat for the holder. Before evaluating
// availability it sweeps lapsed pending tickets on the journey so
// stale occupancy cannot cause false rejections. A sweep failure is
// logged rather than failing the booking; the allocation then runs
// against possibly stale availability and may itself reject, which is
// the accepted degraded outcome.
func (s *Service) Reserve(ctx context.Context, holderID, journeyID, unitID uint64, seatCode string) (*model.Ticket, error) {
    if n, err := s.store.ReclaimExpired(ctx, journeyID); err != nil {
        if !errors.Is(err, repository.ErrJourneyNotFound) {
            log.Printf("booking: reclaim before allocate failed for journey %d: %v", journeyID, err)
        }
    } else if n > 0 {
        log.Printf("booking: reclaimed %d lapsed tickets on journey %d", n, journeyID)
    }

    hash, err := newReservationHash()
    if err != nil {
        return nil, err
    }
    code, err := newVerificationCode()
    if err != nil {
        return nil, err
    }
    return s.store.Allocate(ctx, repository.AllocateParams{
        HolderID:         holderID,
        JourneyID:        journeyID,
        UnitID:           unitID,
        SeatCode:         seatCode,
        ReservationHash:  hash,
        VerificationCode: code,
    })
}

// Pay runs the payment for a pending ticket. The provider is invoked
// and awaited outside any reservation transaction; only the verified
// result is written back. On success the ticket moves to
// CONFIRMED/COMPLETED. On a declined transaction the ticket is
// cancelled, its seat released, and ErrPaymentDeclined returned. If the
// ticket lapsed while the provider was charging, the settled charge is
// voided before the state error is returned.
func (s *Service) Pay(ctx context.Context, holderID uint64, hash, payerHandle string) (*model.Ticket, error) {
    t, err := s.store.GetTicketByHash(ctx, hash)
    if err != nil {
        return nil, err
    }
    if t.HolderID != holderID {
        return nil, repository.ErrTicketNotFound
    }
    if t.ReservationStatus != model.ReservationBooked || t.PaymentStatus != model.PaymentPending {
        return nil, repository.ErrInvalidTicketState
    }

    txnID, err := s.provider.Initiate(ctx, t.PriceCents, payerHandle)
    if err != nil {
        return nil, err
    }
    result, err := s.provider.Verify(ctx, txnID)
    if err != nil {
        return nil, err
    }

    if !result.Success {
        cancelled, err := s.store.FailPayment(ctx, hash)
        if err != nil {
            return nil, err
        }
        s.publish(ctx, queue.EventTicketCancelled, cancelled)
        return cancelled, ErrPaymentDeclined
    }

    confirmed, err := s.store.CompletePayment(ctx, hash, txnID)
    if err != nil {
        // The charge settled but the ticket could not be confirmed,
        // which happens when the payment window lapsed mid-payment and
        // the reclaimer took the seat back. Void the charge so the
        // passenger is not billed for a ticket they did not get.
        if vErr := s.provider.Void(ctx, txnID); vErr != nil {
            log.Printf("booking: void of charge %s after failed confirmation: %v", txnID, vErr)
        }
        return nil, err
    }
    s.publish(ctx, queue.EventTicketConfirmed, confirmed)
    return confirmed, nil
}

// Cancel cancels the holder's ticket and releases its seat.
func (s *Service) Cancel(ctx context.Context, holderID uint64, hash string) (*model.Ticket, error) {
    t, err := s.store.Cancel(ctx, holderID, hash)
    if err != nil {
        return nil, err
    }
    s.publish(ctx, queue.EventTicketCancelled, t)
    return t, nil
}

// CheckIn consumes a confirmed ticket at time of travel, recording the
// operator and location of the verification.
func (s *Service) CheckIn(ctx context.Context, hash string, operatorID uint64, location string) (*model.Ticket, error) {
    t, err := s.store.CheckIn(ctx, hash, operatorID, location)
    if err != nil {
        return nil, err
    }
    s.publish(ctx, queue.EventTicketUsed, t)
    return t, nil
}

// Ticket returns one of the holder's tickets by reservation hash.
func (s *Service) Ticket(ctx context.Context, holderID uint64, hash string) (*model.Ticket, error) {
    t, err := s.store.GetTicketByHash(ctx, hash)
    if err != nil {
        return nil, err
    }
    if t.HolderID != holderID {
        return nil, repository.ErrTicketNotFound
    }
    return t, nil
}

// Tickets returns all of the holder's tickets, newest first.
func (s *Service) Tickets(ctx context.Context, holderID uint64) ([]model.Ticket, error) {
    return s.store.ListTicketsByHolder(ctx, holderID)
}

func (s *Service) publish(ctx context.Context, eventType string, t *model.Ticket) {
    if s.publisher == nil {
        return
    }
    ev := queue.TicketStatusEvent{
        Type:             eventType,
        TicketID:         t.ID,
        ReservationHash:  t.ReservationHash,
        VerificationCode: t.VerificationCode,
        HolderID:         t.HolderID,
        JourneyID:        t.JourneyID,
        SeatCode:         t.SeatCode,
        PriceCents:       t.PriceCents,
        PaymentStatus:    t.PaymentStatus,
        OccurredAt:       time.Now().UTC().Format(time.RFC3339),
    }
    if err := s.publisher.PublishTicketStatus(ctx, ev); err != nil {
        log.Printf("booking: publish %s for ticket %d failed: %v", eventType, t.ID, err)
    }
}
