package model

import "time"

// CheckInEvent records the verification of a ticket at time of travel.
// Exactly one event exists per used ticket; a second check-in attempt
// is rejected before an event is written.
type CheckInEvent struct {
    ID         uint64    // checkin_events.id
    TicketID   uint64    // checkin_events.ticket_id
    OperatorID uint64    // checkin_events.operator_id
    Location   string    // checkin_events.location
    CheckedAt  time.Time // checkin_events.checked_at
}
