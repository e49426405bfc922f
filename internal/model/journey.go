package model

import "time"

// Journey status values. A journey only accepts bookings while it is
// SCHEDULED or DELAYED; CANCELLED and COMPLETED journeys reject new
// reservations.
const (
    JourneyScheduled = "SCHEDULED"
    JourneyDelayed   = "DELAYED"
    JourneyCancelled = "CANCELLED"
    JourneyCompleted = "COMPLETED"
)

// Journey represents one scheduled run of a train between two stations
// on a specific date. Journeys are created by schedule administration;
// this service only reads them and maintains the AvailableSeats counter
// through booking, cancellation and reclamation.
//
// Fields:
//  ID                   – primary key identifier.
//  TrainID              – train operating this journey.
//  OriginStationID      – station where the journey starts.
//  DestinationStationID – station where the journey ends.
//  DepartsAt            – scheduled departure time (UTC).
//  ArrivesAt            – scheduled arrival time (UTC).
//  JourneyDate          – service date in YYYY-MM-DD form.
//  AvailableSeats       – cached count of seats not held by an active
//                         ticket; must equal total unit capacity minus
//                         active tickets at all times.
//  Status               – lifecycle status (see constants above).
//  CreatedAt            – creation timestamp.
//  UpdatedAt            – last update timestamp.
type Journey struct {
    ID                   uint64    // journeys.id
    TrainID              uint64    // journeys.train_id
    OriginStationID      uint64    // journeys.origin_station_id
    DestinationStationID uint64    // journeys.destination_station_id
    DepartsAt            time.Time // journeys.departs_at
    ArrivesAt            time.Time // journeys.arrives_at
    JourneyDate          string    // journeys.journey_date
    AvailableSeats       uint32    // journeys.available_seats
    Status               string    // journeys.status
    CreatedAt            time.Time // journeys.created_at
    UpdatedAt            time.Time // journeys.updated_at
}

// Bookable reports whether the journey accepts new reservations.
func (j *Journey) Bookable() bool {
    return j.Status == JourneyScheduled || j.Status == JourneyDelayed
}
