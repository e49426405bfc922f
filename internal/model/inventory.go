package model

import "errors"

// Unit kinds as stored in inventory_units.kind. A SEAT unit is one
// physical seat with a boolean occupancy flag. A COACH unit is a berth
// group: many seat codes sharing one price, with occupancy tracked as
// the set of currently held codes.
const (
    UnitKindSeat  = "SEAT"
    UnitKindCoach = "COACH"
)

// ErrUnknownSeat is returned when a seat code does not belong to the
// unit it was requested on.
var ErrUnknownSeat = errors.New("seat code not part of unit")

// ErrSeatOccupied is returned by Occupy when the requested seat code is
// already held.
var ErrSeatOccupied = errors.New("seat code already occupied")

// ErrCoachFull is returned by Occupy on a coach unit whose occupied set
// has reached capacity.
var ErrCoachFull = errors.New("coach at capacity")

// Unit is the single abstraction the allocator and reclaimer operate
// on. Both unit shapes implement it so booking code needs only one
// path regardless of whether a seat is sold individually or as part of
// a coach.
type Unit interface {
    // UnitID returns the inventory_units primary key.
    UnitID() uint64
    // JourneyID returns the owning journey.
    JourneyID() uint64
    // PriceCents returns the price charged per seat on this unit.
    PriceCents() uint32
    // Capacity returns the number of physical seats on the unit.
    Capacity() int
    // SeatCodes returns every seat code the unit offers.
    SeatCodes() []string
    // IsOccupied reports whether the given seat code is currently held.
    IsOccupied(seatCode string) bool
    // Occupy marks the seat code as held. It fails with ErrUnknownSeat,
    // ErrSeatOccupied or ErrCoachFull and performs no change on failure.
    Occupy(seatCode string) error
    // Release clears the hold on the seat code. Releasing a free or
    // unknown code is a no-op so reclamation stays idempotent.
    Release(seatCode string)
}

// SeatUnit is a single bookable seat.
type SeatUnit struct {
    ID        uint64 // inventory_units.id
    Journey   uint64 // inventory_units.journey_id
    ClassCode string // inventory_units.class_code (seat-class catalog ref)
    Code      string // inventory_units.seat_code
    Price     uint32 // inventory_units.price_cents
    Held      bool   // inventory_units.occupied
}

func (u *SeatUnit) UnitID() uint64      { return u.ID }
func (u *SeatUnit) JourneyID() uint64   { return u.Journey }
func (u *SeatUnit) PriceCents() uint32  { return u.Price }
func (u *SeatUnit) Capacity() int       { return 1 }
func (u *SeatUnit) SeatCodes() []string { return []string{u.Code} }

func (u *SeatUnit) IsOccupied(seatCode string) bool {
    return seatCode == u.Code && u.Held
}

func (u *SeatUnit) Occupy(seatCode string) error {
    if seatCode != u.Code {
        return ErrUnknownSeat
    }
    if u.Held {
        return ErrSeatOccupied
    }
    u.Held = true
    return nil
}

func (u *SeatUnit) Release(seatCode string) {
    if seatCode == u.Code {
        u.Held = false
    }
}

// CoachUnit is a coach or berth group. All seats share one price and
// occupancy is the set of held seat codes. The set is persisted as a
// JSON array; it must only ever be read-modify-written while the unit
// row is locked.
type CoachUnit struct {
    ID        uint64   // inventory_units.id
    Journey   uint64   // inventory_units.journey_id
    ClassCode string   // inventory_units.class_code
    Codes     []string // inventory_units.seat_codes (JSON)
    Price     uint32   // inventory_units.price_cents
    Occupied  []string // inventory_units.occupied_codes (JSON)
}

func (u *CoachUnit) UnitID() uint64      { return u.ID }
func (u *CoachUnit) JourneyID() uint64   { return u.Journey }
func (u *CoachUnit) PriceCents() uint32  { return u.Price }
func (u *CoachUnit) Capacity() int       { return len(u.Codes) }
func (u *CoachUnit) SeatCodes() []string { return u.Codes }

func (u *CoachUnit) IsOccupied(seatCode string) bool {
    for _, c := range u.Occupied {
        if c == seatCode {
            return true
        }
    }
    return false
}

func (u *CoachUnit) offers(seatCode string) bool {
    for _, c := range u.Codes {
        if c == seatCode {
            return true
        }
    }
    return false
}

func (u *CoachUnit) Occupy(seatCode string) error {
    if !u.offers(seatCode) {
        return ErrUnknownSeat
    }
    if u.IsOccupied(seatCode) {
        return ErrSeatOccupied
    }
    if len(u.Occupied) >= len(u.Codes) {
        return ErrCoachFull
    }
    u.Occupied = append(u.Occupied, seatCode)
    return nil
}

func (u *CoachUnit) Release(seatCode string) {
    for i, c := range u.Occupied {
        if c == seatCode {
            u.Occupied = append(u.Occupied[:i], u.Occupied[i+1:]...)
            return
        }
    }
}

// OccupiedCount returns the number of seats currently held on the unit
// regardless of shape.
func OccupiedCount(u Unit) int {
    n := 0
    for _, code := range u.SeatCodes() {
        if u.IsOccupied(code) {
            n++
        }
    }
    return n
}
