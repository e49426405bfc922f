package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/train-seat-reservation/internal/model"
)

// MemoryStore is an in-memory implementation of Store intended for
// tests and local development. A single mutex serializes every
// operation, which gives each method the same atomicity the MySQL
// implementation gets from its transactions.
type MemoryStore struct {
    mu       sync.Mutex
    window   time.Duration
    journeys map[uint64]*model.Journey
    units    map[uint64]model.Unit
    tickets  map[string]*model.Ticket // by reservation hash
    events   []model.CheckInEvent
    nextID   uint64

    // now is swappable so tests can move the clock.
    now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. When window is zero the
// default PaymentWindow is used.
func NewMemoryStore(window time.Duration) *MemoryStore {
    if window <= 0 {
        window = PaymentWindow
    }
    return &MemoryStore{
        window:   window,
        journeys: make(map[uint64]*model.Journey),
        units:    make(map[uint64]model.Unit),
        tickets:  make(map[string]*model.Ticket),
        now:      func() time.Time { return time.Now().UTC() },
    }
}

// SetClock replaces the store's clock. Tests use it to lapse payment
// windows without sleeping.
func (s *MemoryStore) SetClock(now func() time.Time) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.now = now
}

// AddJourney seeds a journey.
func (s *MemoryStore) AddJourney(j model.Journey) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.journeys[j.ID] = &j
}

// AddUnit seeds an inventory unit.
func (s *MemoryStore) AddUnit(u model.Unit) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.units[u.UnitID()] = u
}

// CheckInEvents returns a copy of the recorded verification events.
func (s *MemoryStore) CheckInEvents() []model.CheckInEvent {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.CheckInEvent, len(s.events))
    copy(out, s.events)
    return out
}

func (s *MemoryStore) GetJourney(ctx context.Context, journeyID uint64) (*model.Journey, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    j, ok := s.journeys[journeyID]
    if !ok {
        return nil, ErrJourneyNotFound
    }
    cp := *j
    return &cp, nil
}

func (s *MemoryStore) ListJourneys(ctx context.Context) ([]model.Journey, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Journey, 0, len(s.journeys))
    for _, j := range s.journeys {
        out = append(out, *j)
    }
    sort.Slice(out, func(i, k int) bool { return out[i].DepartsAt.Before(out[k].DepartsAt) })
    return out, nil
}

func (s *MemoryStore) ListUnits(ctx context.Context, journeyID uint64) ([]model.Unit, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Unit, 0)
    for _, u := range s.units {
        if u.JourneyID() == journeyID {
            out = append(out, cloneUnit(u))
        }
    }
    sort.Slice(out, func(i, k int) bool { return out[i].UnitID() < out[k].UnitID() })
    return out, nil
}

// cloneUnit deep-copies a unit so callers never observe occupancy
// mutations happening under the store mutex. Journeys and tickets are
// copied out the same way.
func cloneUnit(u model.Unit) model.Unit {
    switch v := u.(type) {
    case *model.SeatUnit:
        cp := *v
        return &cp
    case *model.CoachUnit:
        cp := *v
        cp.Codes = append([]string(nil), v.Codes...)
        cp.Occupied = append([]string(nil), v.Occupied...)
        return &cp
    }
    return u
}

func (s *MemoryStore) Allocate(ctx context.Context, p AllocateParams) (*model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    j, ok := s.journeys[p.JourneyID]
    if !ok {
        return nil, ErrJourneyNotFound
    }
    if !j.Bookable() {
        return nil, ErrJourneyNotBookable
    }
    if j.AvailableSeats == 0 {
        return nil, ErrNoSeatsRemaining
    }
    now := s.now()
    for _, t := range s.tickets {
        if t.JourneyID == p.JourneyID && t.HolderID == p.HolderID && t.Active(s.window, now) {
            return nil, ErrDuplicateReservation
        }
    }
    unit, ok := s.units[p.UnitID]
    if !ok || unit.JourneyID() != p.JourneyID {
        return nil, ErrUnitNotFound
    }
    if err := unit.Occupy(p.SeatCode); err != nil {
        switch err {
        case model.ErrUnknownSeat:
            return nil, ErrUnknownSeat
        default:
            return nil, ErrSeatAlreadyHeld
        }
    }

    s.nextID++
    t := &model.Ticket{
        ID:                s.nextID,
        HolderID:          p.HolderID,
        JourneyID:         p.JourneyID,
        UnitID:            p.UnitID,
        SeatCode:          p.SeatCode,
        PriceCents:        unit.PriceCents(),
        ReservationHash:   p.ReservationHash,
        VerificationCode:  p.VerificationCode,
        ReservationStatus: model.ReservationBooked,
        PaymentStatus:     model.PaymentPending,
        IssuedAt:          now,
        UpdatedAt:         now,
    }
    s.tickets[t.ReservationHash] = t
    j.AvailableSeats--
    cp := *t
    return &cp, nil
}

func (s *MemoryStore) ReclaimExpired(ctx context.Context, journeyID uint64) (int, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    j, ok := s.journeys[journeyID]
    if !ok {
        return 0, ErrJourneyNotFound
    }
    now := s.now()
    reclaimed := 0
    for _, t := range s.tickets {
        if t.JourneyID != journeyID ||
            t.ReservationStatus != model.ReservationBooked ||
            t.PaymentStatus != model.PaymentPending ||
            now.Sub(t.IssuedAt) < s.window {
            continue
        }
        t.ReservationStatus = model.ReservationCancelled
        t.PaymentStatus = model.PaymentCancelled
        t.UpdatedAt = now
        if u, ok := s.units[t.UnitID]; ok {
            u.Release(t.SeatCode)
        }
        j.AvailableSeats++
        reclaimed++
    }
    return reclaimed, nil
}

func (s *MemoryStore) JourneysWithExpired(ctx context.Context) ([]uint64, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    seen := make(map[uint64]struct{})
    var ids []uint64
    for _, t := range s.tickets {
        if t.ReservationStatus == model.ReservationBooked &&
            t.PaymentStatus == model.PaymentPending &&
            now.Sub(t.IssuedAt) >= s.window {
            if _, ok := seen[t.JourneyID]; !ok {
                seen[t.JourneyID] = struct{}{}
                ids = append(ids, t.JourneyID)
            }
        }
    }
    return ids, nil
}

func (s *MemoryStore) CompletePayment(ctx context.Context, hash, paymentRef string) (*model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    t, ok := s.tickets[hash]
    if !ok {
        return nil, ErrTicketNotFound
    }
    if t.ReservationStatus != model.ReservationBooked || t.PaymentStatus != model.PaymentPending {
        return nil, ErrInvalidTicketState
    }
    t.ReservationStatus = model.ReservationConfirmed
    t.PaymentStatus = model.PaymentCompleted
    ref := paymentRef
    t.PaymentRef = &ref
    t.UpdatedAt = s.now()
    cp := *t
    return &cp, nil
}

func (s *MemoryStore) FailPayment(ctx context.Context, hash string) (*model.Ticket, error) {
    return s.cancelTicket(0, hash, model.PaymentFailed)
}

func (s *MemoryStore) Cancel(ctx context.Context, holderID uint64, hash string) (*model.Ticket, error) {
    return s.cancelTicket(holderID, hash, model.PaymentCancelled)
}

func (s *MemoryStore) cancelTicket(holderID uint64, hash, paymentStatus string) (*model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    t, ok := s.tickets[hash]
    if !ok {
        return nil, ErrTicketNotFound
    }
    if holderID != 0 && t.HolderID != holderID {
        return nil, ErrTicketNotFound
    }
    if t.ReservationStatus == model.ReservationUsed || t.ReservationStatus == model.ReservationCancelled {
        return nil, ErrInvalidTicketState
    }
    t.ReservationStatus = model.ReservationCancelled
    t.PaymentStatus = paymentStatus
    t.UpdatedAt = s.now()
    if u, ok := s.units[t.UnitID]; ok {
        u.Release(t.SeatCode)
    }
    if j, ok := s.journeys[t.JourneyID]; ok {
        j.AvailableSeats++
    }
    cp := *t
    return &cp, nil
}

func (s *MemoryStore) CheckIn(ctx context.Context, hash string, operatorID uint64, location string) (*model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    t, ok := s.tickets[hash]
    if !ok {
        return nil, ErrTicketNotFound
    }
    switch {
    case t.ReservationStatus == model.ReservationUsed:
        return nil, ErrAlreadyUsed
    case t.ReservationStatus == model.ReservationCancelled:
        return nil, ErrTicketCancelled
    case t.PaymentStatus != model.PaymentCompleted:
        return nil, ErrPaymentIncomplete
    }
    now := s.now()
    s.events = append(s.events, model.CheckInEvent{
        ID:         uint64(len(s.events) + 1),
        TicketID:   t.ID,
        OperatorID: operatorID,
        Location:   location,
        CheckedAt:  now,
    })
    t.ReservationStatus = model.ReservationUsed
    t.UpdatedAt = now
    cp := *t
    return &cp, nil
}

func (s *MemoryStore) GetTicketByHash(ctx context.Context, hash string) (*model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    t, ok := s.tickets[hash]
    if !ok {
        return nil, ErrTicketNotFound
    }
    cp := *t
    return &cp, nil
}

func (s *MemoryStore) ListTicketsByHolder(ctx context.Context, holderID uint64) ([]model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Ticket, 0)
    for _, t := range s.tickets {
        if t.HolderID == holderID {
            out = append(out, *t)
        }
    }
    sort.Slice(out, func(i, k int) bool { return out[i].IssuedAt.After(out[k].IssuedAt) })
    return out, nil
}

var _ Store = (*MemoryStore)(nil)
