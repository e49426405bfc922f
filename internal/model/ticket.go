package model

import "time"

// Reservation lifecycle values for tickets.reservation_status.
// BOOKED is the only initial state. USED and CANCELLED are terminal:
// no operation ever moves a ticket out of either.
//
//   BOOKED --payment success--> CONFIRMED --check-in--> USED
//   BOOKED --expiry|cancel----> CANCELLED
//   CONFIRMED --cancel--------> CANCELLED
const (
    ReservationBooked    = "BOOKED"
    ReservationConfirmed = "CONFIRMED"
    ReservationUsed      = "USED"
    ReservationCancelled = "CANCELLED"
)

// Payment lifecycle values for tickets.payment_status.
const (
    PaymentPending   = "PENDING"
    PaymentCompleted = "COMPLETED"
    PaymentCancelled = "CANCELLED"
    PaymentFailed    = "FAILED"
)

// Ticket records one reservation attempt. Tickets are never deleted;
// cancelled and used tickets remain as an audit trail.
//
// Fields:
//  ID                – primary key identifier.
//  HolderID          – passenger who made the reservation (opaque
//                      identity supplied by the session layer).
//  JourneyID         – journey being travelled.
//  UnitID            – inventory unit backing the held seat.
//  SeatCode          – seat held on the unit.
//  PriceCents        – price charged at booking time.
//  ReservationHash   – unique, stable identifier handed to the client;
//                      the presentation layer renders it as a scannable
//                      code.
//  VerificationCode  – short human-readable code shown alongside the
//                      scannable one.
//  ReservationStatus – see constants above.
//  PaymentStatus     – see constants above.
//  PaymentRef        – provider transaction ID once payment ran.
//  IssuedAt          – booking timestamp; the payment window is
//                      measured from here.
//  UpdatedAt         – last state change.
type Ticket struct {
    ID                uint64    // tickets.id
    HolderID          uint64    // tickets.holder_id
    JourneyID         uint64    // tickets.journey_id
    UnitID            uint64    // tickets.unit_id
    SeatCode          string    // tickets.seat_code
    PriceCents        uint32    // tickets.price_cents
    ReservationHash   string    // tickets.reservation_hash
    VerificationCode  string    // tickets.verification_code
    ReservationStatus string    // tickets.reservation_status
    PaymentStatus     string    // tickets.payment_status
    PaymentRef        *string   // tickets.payment_ref (nullable)
    IssuedAt          time.Time // tickets.issued_at
    UpdatedAt         time.Time // tickets.updated_at
}

// Active reports whether the ticket currently holds its seat. A ticket
// is active when its reservation is not cancelled and its payment is
// either completed or still pending inside the payment window. Pending
// tickets past the window stop counting as active even before the
// reclaimer has swept them.
func (t *Ticket) Active(window time.Duration, now time.Time) bool {
    if t.ReservationStatus == ReservationCancelled {
        return false
    }
    switch t.PaymentStatus {
    case PaymentCompleted:
        return true
    case PaymentPending:
        return now.Sub(t.IssuedAt) < window
    }
    return false
}
