package repository

import (
    "context"
    "time"

    "github.com/iliyamo/train-seat-reservation/internal/model"
)

// AllocateParams carries everything the allocator writes for a new
// reservation. The hash and verification code are generated by the
// caller before the transaction opens so nothing slow happens while
// rows are locked.
type AllocateParams struct {
    HolderID         uint64
    JourneyID        uint64
    UnitID           uint64
    SeatCode         string
    ReservationHash  string
    VerificationCode string
}

// Store is the storage contract of the reservation engine. Each
// mutating method is one atomic unit: all of its row changes commit
// together or none do, and the preconditions it documents hold at
// commit time even under concurrent calls.
//
// Two implementations exist: MySQLStore for production and MemoryStore
// for tests and local development.
type Store interface {
    // GetJourney returns a journey by ID or ErrJourneyNotFound.
    GetJourney(ctx context.Context, journeyID uint64) (*model.Journey, error)

    // ListJourneys returns all journeys ordered by departure time.
    ListJourneys(ctx context.Context) ([]model.Journey, error)

    // ListUnits returns the inventory units of a journey.
    ListUnits(ctx context.Context, journeyID uint64) ([]model.Unit, error)

    // Allocate performs the booking transaction. Preconditions checked
    // in order: the journey exists and is bookable; it has seats
    // remaining; the holder has no other active ticket on it; the seat
    // code is free on the unit. On success the ticket is created in
    // BOOKED/PENDING state, the unit is occupied and the journey's
    // available seat count drops by one. Any precondition violation
    // returns the matching sentinel and writes nothing.
    Allocate(ctx context.Context, p AllocateParams) (*model.Ticket, error)

    // ReclaimExpired cancels every BOOKED/PENDING ticket on the journey
    // whose payment window has lapsed, releasing its seat and restoring
    // the availability counter. It returns the number of tickets
    // reclaimed and is idempotent.
    ReclaimExpired(ctx context.Context, journeyID uint64) (int, error)

    // JourneysWithExpired returns the IDs of journeys that currently
    // carry at least one reclaimable ticket. Used by the background
    // sweeper.
    JourneysWithExpired(ctx context.Context) ([]uint64, error)

    // CompletePayment transitions BOOKED/PENDING to CONFIRMED/COMPLETED
    // and records the provider transaction reference. Inventory is
    // untouched; the seat was claimed at booking time.
    CompletePayment(ctx context.Context, hash, paymentRef string) (*model.Ticket, error)

    // FailPayment cancels a BOOKED/PENDING ticket after a failed
    // payment, running the same release sequence as reclamation.
    FailPayment(ctx context.Context, hash string) (*model.Ticket, error)

    // Cancel cancels a holder's booked or confirmed ticket and releases
    // its seat. Used and already-cancelled tickets return
    // ErrInvalidTicketState.
    Cancel(ctx context.Context, holderID uint64, hash string) (*model.Ticket, error)

    // CheckIn consumes a confirmed ticket: it records the verification
    // event and moves the reservation to its terminal USED state.
    // Gates, in order: ErrTicketNotFound, ErrAlreadyUsed,
    // ErrTicketCancelled, ErrPaymentIncomplete.
    CheckIn(ctx context.Context, hash string, operatorID uint64, location string) (*model.Ticket, error)

    // GetTicketByHash returns a ticket by reservation hash or
    // ErrTicketNotFound.
    GetTicketByHash(ctx context.Context, hash string) (*model.Ticket, error)

    // ListTicketsByHolder returns the holder's tickets, newest first.
    ListTicketsByHolder(ctx context.Context, holderID uint64) ([]model.Ticket, error)
}

// PaymentWindow is the default business TTL for pending payments.
// Tickets still PENDING this long after issue stop counting as active
// and become reclaimable.
const PaymentWindow = 30 * time.Minute
