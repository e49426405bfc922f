package repository

import (
    "context"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/train-seat-reservation/internal/model"
)

// seedStore builds a store with one bookable journey carrying two seat
// units and one three-berth coach.
func seedStore(window time.Duration) *MemoryStore {
    s := NewMemoryStore(window)
    s.AddJourney(model.Journey{
        ID:             1,
        TrainID:        10,
        DepartsAt:      time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
        AvailableSeats: 5,
        Status:         model.JourneyScheduled,
    })
    s.AddUnit(&model.SeatUnit{ID: 1, Journey: 1, Code: "12A", Price: 4500})
    s.AddUnit(&model.SeatUnit{ID: 2, Journey: 1, Code: "12B", Price: 4500})
    s.AddUnit(&model.CoachUnit{ID: 3, Journey: 1, Codes: []string{"B1", "B2", "B3"}, Price: 8000})
    return s
}

func alloc(holder, journey, unit uint64, seat string) AllocateParams {
    return AllocateParams{
        HolderID:         holder,
        JourneyID:        journey,
        UnitID:           unit,
        SeatCode:         seat,
        ReservationHash:  fmt.Sprintf("hash-%d-%s", holder, seat),
        VerificationCode: "CODE1234",
    }
}

func TestAllocate(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    tk, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)
    assert.Equal(t, model.ReservationBooked, tk.ReservationStatus)
    assert.Equal(t, model.PaymentPending, tk.PaymentStatus)
    assert.Equal(t, uint32(4500), tk.PriceCents)

    j, err := s.GetJourney(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, uint32(4), j.AvailableSeats)

    // same seat again, different holder
    _, err = s.Allocate(ctx, alloc(101, 1, 1, "12A"))
    assert.ErrorIs(t, err, ErrSeatAlreadyHeld)

    // same holder, different seat, same journey
    _, err = s.Allocate(ctx, alloc(100, 1, 2, "12B"))
    assert.ErrorIs(t, err, ErrDuplicateReservation)

    // seat code the unit does not offer
    _, err = s.Allocate(ctx, alloc(102, 1, 1, "99Z"))
    assert.ErrorIs(t, err, ErrUnknownSeat)

    // unknown journey and unit
    _, err = s.Allocate(ctx, alloc(102, 9, 1, "12A"))
    assert.ErrorIs(t, err, ErrJourneyNotFound)
    _, err = s.Allocate(ctx, alloc(102, 1, 9, "12A"))
    assert.ErrorIs(t, err, ErrUnitNotFound)

    // counter invariant held: one active ticket, four seats left
    units, err := s.ListUnits(ctx, 1)
    require.NoError(t, err)
    occupied := 0
    for _, u := range units {
        occupied += model.OccupiedCount(u)
    }
    assert.Equal(t, 1, occupied)
}

func TestAllocateClosedJourney(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)
    s.AddJourney(model.Journey{ID: 2, AvailableSeats: 1, Status: model.JourneyCancelled})
    s.AddUnit(&model.SeatUnit{ID: 4, Journey: 2, Code: "1A", Price: 3000})

    _, err := s.Allocate(ctx, alloc(100, 2, 4, "1A"))
    assert.ErrorIs(t, err, ErrJourneyNotBookable)
}

func TestAllocateNoSeatsRemaining(t *testing.T) {
    ctx := context.Background()
    s := NewMemoryStore(0)
    s.AddJourney(model.Journey{ID: 1, AvailableSeats: 0, Status: model.JourneyScheduled})
    s.AddUnit(&model.SeatUnit{ID: 1, Journey: 1, Code: "1A", Price: 3000})

    _, err := s.Allocate(ctx, alloc(100, 1, 1, "1A"))
    assert.ErrorIs(t, err, ErrNoSeatsRemaining)
}

// TestAllocateConcurrent races many holders for one seat. Exactly one
// allocation may win; everyone else must get a clean rejection and the
// availability counter must drop by exactly one.
func TestAllocateConcurrent(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    const racers = 50
    var wg sync.WaitGroup
    errs := make(chan error, racers)

    for i := 0; i < racers; i++ {
        wg.Add(1)
        go func(holder uint64) {
            defer wg.Done()
            _, err := s.Allocate(ctx, alloc(holder, 1, 3, "B2"))
            errs <- err
        }(uint64(1000 + i))
    }
    wg.Wait()
    close(errs)

    wins := 0
    for err := range errs {
        if err == nil {
            wins++
        } else {
            assert.ErrorIs(t, err, ErrSeatAlreadyHeld)
        }
    }
    assert.Equal(t, 1, wins)

    j, err := s.GetJourney(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, uint32(4), j.AvailableSeats)
}

// TestListUnitsConcurrentWithAllocate has a browse reader walking seat
// maps while bookings land on the same coach. ListUnits must hand out
// copies, so the reader never observes occupancy mid-mutation. Run
// with -race.
func TestListUnitsConcurrentWithAllocate(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    done := make(chan struct{})
    go func() {
        defer close(done)
        for _, seat := range []string{"B1", "B2", "B3"} {
            _, err := s.Allocate(ctx, alloc(uint64(200)+uint64(seat[1]), 1, 3, seat))
            assert.NoError(t, err)
        }
    }()

    for i := 0; i < 100; i++ {
        units, err := s.ListUnits(ctx, 1)
        if !assert.NoError(t, err) {
            break
        }
        for _, u := range units {
            n := model.OccupiedCount(u)
            assert.LessOrEqual(t, n, u.Capacity())
        }
    }
    <-done

    // the copies are detached: mutating one must not leak into the store
    units, err := s.ListUnits(ctx, 1)
    require.NoError(t, err)
    for _, u := range units {
        u.Release("B1")
    }
    units, err = s.ListUnits(ctx, 1)
    require.NoError(t, err)
    total := 0
    for _, u := range units {
        total += model.OccupiedCount(u)
    }
    assert.Equal(t, 3, total)
}

func TestReclaimExpired(t *testing.T) {
    ctx := context.Background()
    s := seedStore(30 * time.Minute)

    base := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
    now := base
    s.SetClock(func() time.Time { return now })

    _, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)
    paid, err := s.Allocate(ctx, alloc(101, 1, 2, "12B"))
    require.NoError(t, err)
    _, err = s.CompletePayment(ctx, paid.ReservationHash, "txn-1")
    require.NoError(t, err)

    // inside the window nothing is reclaimable
    n, err := s.ReclaimExpired(ctx, 1)
    require.NoError(t, err)
    assert.Zero(t, n)

    now = base.Add(31 * time.Minute)

    n, err = s.ReclaimExpired(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, 1, n)

    // the pending ticket is cancelled and its seat free again
    tk, err := s.GetTicketByHash(ctx, "hash-100-12A")
    require.NoError(t, err)
    assert.Equal(t, model.ReservationCancelled, tk.ReservationStatus)
    assert.Equal(t, model.PaymentCancelled, tk.PaymentStatus)

    // the paid ticket is untouched
    tk, err = s.GetTicketByHash(ctx, paid.ReservationHash)
    require.NoError(t, err)
    assert.Equal(t, model.ReservationConfirmed, tk.ReservationStatus)

    j, err := s.GetJourney(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, uint32(4), j.AvailableSeats)

    // reclamation is idempotent
    n, err = s.ReclaimExpired(ctx, 1)
    require.NoError(t, err)
    assert.Zero(t, n)

    // the freed seat can be booked again
    _, err = s.Allocate(ctx, alloc(102, 1, 1, "12A"))
    require.NoError(t, err)
}

func TestJourneysWithExpired(t *testing.T) {
    ctx := context.Background()
    s := seedStore(30 * time.Minute)

    base := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
    now := base
    s.SetClock(func() time.Time { return now })

    _, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)

    ids, err := s.JourneysWithExpired(ctx)
    require.NoError(t, err)
    assert.Empty(t, ids)

    now = base.Add(time.Hour)
    ids, err = s.JourneysWithExpired(ctx)
    require.NoError(t, err)
    assert.Equal(t, []uint64{1}, ids)
}

func TestPaymentTransitions(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    tk, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)

    got, err := s.CompletePayment(ctx, tk.ReservationHash, "txn-9")
    require.NoError(t, err)
    assert.Equal(t, model.ReservationConfirmed, got.ReservationStatus)
    assert.Equal(t, model.PaymentCompleted, got.PaymentStatus)
    require.NotNil(t, got.PaymentRef)
    assert.Equal(t, "txn-9", *got.PaymentRef)

    // a second completion is rejected
    _, err = s.CompletePayment(ctx, tk.ReservationHash, "txn-10")
    assert.ErrorIs(t, err, ErrInvalidTicketState)

    _, err = s.CompletePayment(ctx, "no-such-hash", "txn-11")
    assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestFailPaymentReleasesSeat(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    tk, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)

    got, err := s.FailPayment(ctx, tk.ReservationHash)
    require.NoError(t, err)
    assert.Equal(t, model.ReservationCancelled, got.ReservationStatus)
    assert.Equal(t, model.PaymentFailed, got.PaymentStatus)

    j, err := s.GetJourney(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, uint32(5), j.AvailableSeats)

    // seat is free for the next holder
    _, err = s.Allocate(ctx, alloc(101, 1, 1, "12A"))
    require.NoError(t, err)
}

func TestCancel(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    tk, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)

    // another holder cannot cancel it
    _, err = s.Cancel(ctx, 999, tk.ReservationHash)
    assert.ErrorIs(t, err, ErrTicketNotFound)

    got, err := s.Cancel(ctx, 100, tk.ReservationHash)
    require.NoError(t, err)
    assert.Equal(t, model.ReservationCancelled, got.ReservationStatus)

    // cancelling twice is invalid
    _, err = s.Cancel(ctx, 100, tk.ReservationHash)
    assert.ErrorIs(t, err, ErrInvalidTicketState)

    j, err := s.GetJourney(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, uint32(5), j.AvailableSeats)
}

func TestCheckInGates(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    tk, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)

    _, err = s.CheckIn(ctx, "no-such-hash", 7, "platform 2")
    assert.ErrorIs(t, err, ErrTicketNotFound)

    // unpaid ticket cannot board
    _, err = s.CheckIn(ctx, tk.ReservationHash, 7, "platform 2")
    assert.ErrorIs(t, err, ErrPaymentIncomplete)

    _, err = s.CompletePayment(ctx, tk.ReservationHash, "txn-1")
    require.NoError(t, err)

    got, err := s.CheckIn(ctx, tk.ReservationHash, 7, "platform 2")
    require.NoError(t, err)
    assert.Equal(t, model.ReservationUsed, got.ReservationStatus)

    events := s.CheckInEvents()
    require.Len(t, events, 1)
    assert.Equal(t, tk.ID, events[0].TicketID)
    assert.Equal(t, uint64(7), events[0].OperatorID)
    assert.Equal(t, "platform 2", events[0].Location)

    // replaying the scan is rejected and no second event is written
    _, err = s.CheckIn(ctx, tk.ReservationHash, 7, "platform 2")
    assert.ErrorIs(t, err, ErrAlreadyUsed)
    assert.Len(t, s.CheckInEvents(), 1)

    // a used ticket cannot be cancelled either
    _, err = s.Cancel(ctx, 100, tk.ReservationHash)
    assert.ErrorIs(t, err, ErrInvalidTicketState)

    // a cancelled ticket reports its own gate
    other, err := s.Allocate(ctx, alloc(101, 1, 2, "12B"))
    require.NoError(t, err)
    _, err = s.Cancel(ctx, 101, other.ReservationHash)
    require.NoError(t, err)
    _, err = s.CheckIn(ctx, other.ReservationHash, 7, "platform 2")
    assert.ErrorIs(t, err, ErrTicketCancelled)
}

func TestListTicketsByHolder(t *testing.T) {
    ctx := context.Background()
    s := seedStore(0)

    base := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
    now := base
    s.SetClock(func() time.Time { return now })

    first, err := s.Allocate(ctx, alloc(100, 1, 1, "12A"))
    require.NoError(t, err)
    _, err = s.Cancel(ctx, 100, first.ReservationHash)
    require.NoError(t, err)

    now = base.Add(time.Minute)
    second, err := s.Allocate(ctx, alloc(100, 1, 2, "12B"))
    require.NoError(t, err)

    list, err := s.ListTicketsByHolder(ctx, 100)
    require.NoError(t, err)
    require.Len(t, list, 2)
    // newest first; cancelled tickets stay visible
    assert.Equal(t, second.ID, list[0].ID)
    assert.Equal(t, first.ID, list[1].ID)
    assert.Equal(t, model.ReservationCancelled, list[1].ReservationStatus)

    list, err = s.ListTicketsByHolder(ctx, 999)
    require.NoError(t, err)
    assert.Empty(t, list)
}
