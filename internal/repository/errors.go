// Package repository defines the storage contract for the reservation
// engine together with the sentinel errors shared by its
// implementations. The sentinels make up the engine's whole error
// taxonomy: every one of them is recoverable by the caller (pick a
// different seat, or report the state to the user) and handlers map
// them onto HTTP statuses with errors.Is.
package repository

import "errors"

// ErrJourneyNotFound is returned when the requested journey does not
// exist.
var ErrJourneyNotFound = errors.New("journey not found")

// ErrJourneyNotBookable is returned when booking is attempted against a
// cancelled or completed journey.
var ErrJourneyNotBookable = errors.New("journey not open for booking")

// ErrNoSeatsRemaining is returned when the journey's available seat
// count has reached zero.
var ErrNoSeatsRemaining = errors.New("no seats remaining")

// ErrDuplicateReservation is returned when the holder already has an
// active ticket on the journey. One active reservation per passenger
// per journey.
var ErrDuplicateReservation = errors.New("holder already has an active ticket on this journey")

// ErrSeatAlreadyHeld is returned when the requested seat code is backed
// by an active ticket, typically because a concurrent booking won the
// race.
var ErrSeatAlreadyHeld = errors.New("seat already held")

// ErrUnitNotFound is returned when the referenced inventory unit does
// not exist on the journey.
var ErrUnitNotFound = errors.New("inventory unit not found")

// ErrUnknownSeat is returned when the seat code is not offered by the
// referenced unit.
var ErrUnknownSeat = errors.New("unknown seat code for unit")

// ErrTicketNotFound is returned when no ticket matches the given
// reservation hash.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrInvalidTicketState is returned when an operation is illegal for
// the ticket's current lifecycle state, e.g. cancelling a used ticket.
var ErrInvalidTicketState = errors.New("operation invalid for ticket state")

// ErrAlreadyUsed is returned by check-in when the ticket was already
// consumed. Replays of the same reservation hash are rejected with it.
var ErrAlreadyUsed = errors.New("ticket already used")

// ErrTicketCancelled is returned by check-in when the ticket was
// cancelled before travel.
var ErrTicketCancelled = errors.New("ticket cancelled")

// ErrPaymentIncomplete is returned by check-in when the ticket's
// payment has not completed.
var ErrPaymentIncomplete = errors.New("payment not completed")
