// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published for ticket lifecycle changes.
const (
    EventTicketConfirmed = "ticket.confirmed"
    EventTicketCancelled = "ticket.cancelled"
    EventTicketUsed      = "ticket.used"
)

// TicketStatusEvent is published whenever a ticket changes state after
// booking. It carries enough information for downstream consumers to
// log, notify or feed analytics without querying the primary database.
type TicketStatusEvent struct {
    Type             string `json:"type"`
    TicketID         uint64 `json:"ticket_id"`
    ReservationHash  string `json:"reservation_hash"`
    VerificationCode string `json:"verification_code"`
    HolderID         uint64 `json:"holder_id"`
    JourneyID        uint64 `json:"journey_id"`
    SeatCode         string `json:"seat_code"`
    PriceCents       uint32 `json:"price_cents"`
    PaymentStatus    string `json:"payment_status"`
    OccurredAt       string `json:"occurred_at"`
}
