package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/train-seat-reservation/internal/model"
)

// MySQLStore implements Store on top of database/sql with the MySQL
// driver. Every mutating method runs inside its own transaction and
// takes row-level locks (SELECT ... FOR UPDATE) on the journey and the
// inventory unit it touches, so the documented preconditions hold at
// commit time even when two requests race for the same seat. A unique
// index on the active (journey_id, seat_code) pair acts as a backstop;
// a duplicate-key error from it is surfaced as ErrSeatAlreadyHeld.
//
// Lock order is journey row first, then ticket rows, then unit rows.
// All timestamps are stored and compared in UTC.
type MySQLStore struct {
    db     *sql.DB
    window time.Duration
}

// NewMySQLStore returns a MySQLStore bound to the given database. When
// window is zero the default PaymentWindow is used.
func NewMySQLStore(db *sql.DB, window time.Duration) *MySQLStore {
    if window <= 0 {
        window = PaymentWindow
    }
    return &MySQLStore{db: db, window: window}
}

// activePredicate selects tickets that still hold their seat: not
// cancelled, and either paid or pending inside the payment window. It
// expects one argument: the pending cutoff (now minus window).
const activePredicate = `reservation_status <> 'CANCELLED'
    AND (payment_status = 'COMPLETED' OR (payment_status = 'PENDING' AND issued_at > ?))`

const ticketColumns = `id, holder_id, journey_id, unit_id, seat_code, price_cents,
    reservation_hash, verification_code, reservation_status, payment_status,
    payment_ref, issued_at, updated_at`

func (s *MySQLStore) pendingCutoff() time.Time {
    return time.Now().UTC().Add(-s.window)
}

// GetJourney returns a journey by ID.
func (s *MySQLStore) GetJourney(ctx context.Context, journeyID uint64) (*model.Journey, error) {
    const q = `SELECT id, train_id, origin_station_id, destination_station_id,
                      departs_at, arrives_at, journey_date, available_seats, status,
                      created_at, updated_at
               FROM journeys WHERE id = ?`
    j, err := scanJourney(s.db.QueryRowContext(ctx, q, journeyID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrJourneyNotFound
    }
    return j, err
}

// ListJourneys returns all journeys ordered by departure time.
func (s *MySQLStore) ListJourneys(ctx context.Context) ([]model.Journey, error) {
    const q = `SELECT id, train_id, origin_station_id, destination_station_id,
                      departs_at, arrives_at, journey_date, available_seats, status,
                      created_at, updated_at
               FROM journeys ORDER BY departs_at`
    rows, err := s.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    journeys := make([]model.Journey, 0)
    for rows.Next() {
        j, err := scanJourney(rows)
        if err != nil {
            return nil, err
        }
        journeys = append(journeys, *j)
    }
    return journeys, rows.Err()
}

// ListUnits returns the inventory units of a journey.
func (s *MySQLStore) ListUnits(ctx context.Context, journeyID uint64) ([]model.Unit, error) {
    const q = `SELECT id, journey_id, class_code, kind, seat_code, occupied,
                      seat_codes, occupied_codes, price_cents
               FROM inventory_units WHERE journey_id = ? ORDER BY id`
    rows, err := s.db.QueryContext(ctx, q, journeyID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    units := make([]model.Unit, 0)
    for rows.Next() {
        u, err := scanUnit(rows)
        if err != nil {
            return nil, err
        }
        units = append(units, u)
    }
    return units, rows.Err()
}

// Allocate performs the booking transaction. See Store for the
// contract.
func (s *MySQLStore) Allocate(ctx context.Context, p AllocateParams) (*model.Ticket, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Lock the journey row for the duration of the transaction. This
    // serializes every write against the journey, including the
    // counter update below.
    const jq = `SELECT id, available_seats, status FROM journeys WHERE id = ? FOR UPDATE`
    var jID uint64
    var available uint32
    var status string
    if err := tx.QueryRowContext(ctx, jq, p.JourneyID).Scan(&jID, &available, &status); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrJourneyNotFound
        }
        return nil, err
    }
    if status != model.JourneyScheduled && status != model.JourneyDelayed {
        return nil, ErrJourneyNotBookable
    }
    if available == 0 {
        return nil, ErrNoSeatsRemaining
    }

    // One active reservation per holder per journey.
    const dupQ = `SELECT COUNT(*) FROM tickets
                  WHERE journey_id = ? AND holder_id = ? AND ` + activePredicate
    var held int
    if err := tx.QueryRowContext(ctx, dupQ, p.JourneyID, p.HolderID, s.pendingCutoff()).Scan(&held); err != nil {
        return nil, err
    }
    if held > 0 {
        return nil, ErrDuplicateReservation
    }

    unit, err := s.getUnitForUpdateTx(ctx, tx, p.JourneyID, p.UnitID)
    if err != nil {
        return nil, err
    }
    if err := unit.Occupy(p.SeatCode); err != nil {
        switch {
        case errors.Is(err, model.ErrUnknownSeat):
            return nil, ErrUnknownSeat
        case errors.Is(err, model.ErrSeatOccupied), errors.Is(err, model.ErrCoachFull):
            return nil, ErrSeatAlreadyHeld
        }
        return nil, err
    }

    now := time.Now().UTC()
    const ins = `INSERT INTO tickets (holder_id, journey_id, unit_id, seat_code, price_cents,
                     reservation_hash, verification_code, reservation_status, payment_status, issued_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, 'BOOKED', 'PENDING', ?)`
    res, err := tx.ExecContext(ctx, ins,
        p.HolderID, p.JourneyID, p.UnitID, p.SeatCode, unit.PriceCents(),
        p.ReservationHash, p.VerificationCode, now)
    if err != nil {
        // The unique index on the active (journey, seat_code) pair is
        // the backstop for races the row locks did not cover.
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return nil, ErrSeatAlreadyHeld
        }
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }

    if err := s.saveUnitTx(ctx, tx, unit); err != nil {
        return nil, err
    }
    const dec = `UPDATE journeys SET available_seats = available_seats - 1 WHERE id = ?`
    if _, err := tx.ExecContext(ctx, dec, p.JourneyID); err != nil {
        return nil, err
    }

    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return &model.Ticket{
        ID:                uint64(id),
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
    }, nil
}

// ReclaimExpired cancels lapsed pending tickets on the journey and
// releases their inventory. Running it twice in a row is a no-op the
// second time.
func (s *MySQLStore) ReclaimExpired(ctx context.Context, journeyID uint64) (int, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Same lock order as Allocate: journey first.
    const jq = `SELECT id FROM journeys WHERE id = ? FOR UPDATE`
    var jID uint64
    if err := tx.QueryRowContext(ctx, jq, journeyID).Scan(&jID); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return 0, ErrJourneyNotFound
        }
        return 0, err
    }

    const expQ = `SELECT id, unit_id, seat_code FROM tickets
                  WHERE journey_id = ? AND reservation_status = 'BOOKED'
                    AND payment_status = 'PENDING' AND issued_at <= ?
                  FOR UPDATE`
    rows, err := tx.QueryContext(ctx, expQ, journeyID, s.pendingCutoff())
    if err != nil {
        return 0, err
    }
    type lapsed struct {
        ticketID uint64
        unitID   uint64
        seatCode string
    }
    var expired []lapsed
    for rows.Next() {
        var l lapsed
        if err := rows.Scan(&l.ticketID, &l.unitID, &l.seatCode); err != nil {
            rows.Close()
            return 0, err
        }
        expired = append(expired, l)
    }
    if err := rows.Close(); err != nil {
        return 0, err
    }
    if len(expired) == 0 {
        committed = true
        return 0, tx.Commit()
    }

    for _, l := range expired {
        const upd = `UPDATE tickets
                     SET reservation_status = 'CANCELLED', payment_status = 'CANCELLED',
                         updated_at = UTC_TIMESTAMP()
                     WHERE id = ?`
        if _, err := tx.ExecContext(ctx, upd, l.ticketID); err != nil {
            return 0, err
        }
        if err := s.releaseSeatTx(ctx, tx, journeyID, l.unitID, l.seatCode); err != nil {
            return 0, err
        }
    }
    const inc = `UPDATE journeys SET available_seats = available_seats + ? WHERE id = ?`
    if _, err := tx.ExecContext(ctx, inc, len(expired), journeyID); err != nil {
        return 0, err
    }
    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true
    return len(expired), nil
}

// JourneysWithExpired returns journeys carrying at least one
// reclaimable ticket.
func (s *MySQLStore) JourneysWithExpired(ctx context.Context) ([]uint64, error) {
    const q = `SELECT DISTINCT journey_id FROM tickets
               WHERE reservation_status = 'BOOKED' AND payment_status = 'PENDING'
                 AND issued_at <= ?`
    rows, err := s.db.QueryContext(ctx, q, s.pendingCutoff())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

// CompletePayment records a successful payment. Inventory stays
// untouched: the seat was claimed when the ticket was booked.
func (s *MySQLStore) CompletePayment(ctx context.Context, hash, paymentRef string) (*model.Ticket, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    t, err := s.getTicketForUpdateTx(ctx, tx, hash)
    if err != nil {
        return nil, err
    }
    if t.ReservationStatus != model.ReservationBooked || t.PaymentStatus != model.PaymentPending {
        return nil, ErrInvalidTicketState
    }
    const upd = `UPDATE tickets
                 SET reservation_status = 'CONFIRMED', payment_status = 'COMPLETED',
                     payment_ref = ?, updated_at = UTC_TIMESTAMP()
                 WHERE id = ?`
    if _, err := tx.ExecContext(ctx, upd, paymentRef, t.ID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    t.ReservationStatus = model.ReservationConfirmed
    t.PaymentStatus = model.PaymentCompleted
    t.PaymentRef = &paymentRef
    return t, nil
}

// FailPayment cancels a pending ticket after a failed payment and
// releases its seat.
func (s *MySQLStore) FailPayment(ctx context.Context, hash string) (*model.Ticket, error) {
    return s.cancelTicket(ctx, 0, hash, model.PaymentFailed)
}

// Cancel cancels the holder's ticket and releases its seat. A holderID
// of zero skips the ownership check (internal callers).
func (s *MySQLStore) Cancel(ctx context.Context, holderID uint64, hash string) (*model.Ticket, error) {
    return s.cancelTicket(ctx, holderID, hash, model.PaymentCancelled)
}

// cancelTicket is the shared release sequence behind Cancel and
// FailPayment: mark the ticket cancelled, free its seat and hand the
// availability back to the journey, all in one transaction.
func (s *MySQLStore) cancelTicket(ctx context.Context, holderID uint64, hash, paymentStatus string) (*model.Ticket, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Resolve the journey without a lock, then lock in Allocate's
    // order: journey, ticket, unit.
    var journeyID uint64
    const pre = `SELECT journey_id FROM tickets WHERE reservation_hash = ?`
    if err := tx.QueryRowContext(ctx, pre, hash).Scan(&journeyID); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrTicketNotFound
        }
        return nil, err
    }
    const jq = `SELECT id FROM journeys WHERE id = ? FOR UPDATE`
    var jID uint64
    if err := tx.QueryRowContext(ctx, jq, journeyID).Scan(&jID); err != nil {
        return nil, err
    }

    t, err := s.getTicketForUpdateTx(ctx, tx, hash)
    if err != nil {
        return nil, err
    }
    if holderID != 0 && t.HolderID != holderID {
        return nil, ErrTicketNotFound
    }
    if t.ReservationStatus == model.ReservationUsed || t.ReservationStatus == model.ReservationCancelled {
        return nil, ErrInvalidTicketState
    }

    const upd = `UPDATE tickets
                 SET reservation_status = 'CANCELLED', payment_status = ?,
                     updated_at = UTC_TIMESTAMP()
                 WHERE id = ?`
    if _, err := tx.ExecContext(ctx, upd, paymentStatus, t.ID); err != nil {
        return nil, err
    }
    if err := s.releaseSeatTx(ctx, tx, t.JourneyID, t.UnitID, t.SeatCode); err != nil {
        return nil, err
    }
    const inc = `UPDATE journeys SET available_seats = available_seats + 1 WHERE id = ?`
    if _, err := tx.ExecContext(ctx, inc, t.JourneyID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    t.ReservationStatus = model.ReservationCancelled
    t.PaymentStatus = paymentStatus
    return t, nil
}

// CheckIn consumes a confirmed ticket at time of travel.
func (s *MySQLStore) CheckIn(ctx context.Context, hash string, operatorID uint64, location string) (*model.Ticket, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    t, err := s.getTicketForUpdateTx(ctx, tx, hash)
    if err != nil {
        return nil, err
    }
    switch {
    case t.ReservationStatus == model.ReservationUsed:
        return nil, ErrAlreadyUsed
    case t.ReservationStatus == model.ReservationCancelled:
        return nil, ErrTicketCancelled
    case t.PaymentStatus != model.PaymentCompleted:
        return nil, ErrPaymentIncomplete
    }

    const ev = `INSERT INTO checkin_events (ticket_id, operator_id, location, checked_at)
                VALUES (?, ?, ?, UTC_TIMESTAMP())`
    if _, err := tx.ExecContext(ctx, ev, t.ID, operatorID, location); err != nil {
        return nil, err
    }
    const upd = `UPDATE tickets SET reservation_status = 'USED', updated_at = UTC_TIMESTAMP() WHERE id = ?`
    if _, err := tx.ExecContext(ctx, upd, t.ID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    t.ReservationStatus = model.ReservationUsed
    return t, nil
}

// GetTicketByHash returns a ticket by reservation hash.
func (s *MySQLStore) GetTicketByHash(ctx context.Context, hash string) (*model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE reservation_hash = ?`
    t, err := scanTicket(s.db.QueryRowContext(ctx, q, hash))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTicketNotFound
    }
    return t, err
}

// ListTicketsByHolder returns the holder's tickets, newest first.
func (s *MySQLStore) ListTicketsByHolder(ctx context.Context, holderID uint64) ([]model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE holder_id = ? ORDER BY issued_at DESC`
    rows, err := s.db.QueryContext(ctx, q, holderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    tickets := make([]model.Ticket, 0)
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        tickets = append(tickets, *t)
    }
    return tickets, rows.Err()
}

// getUnitForUpdateTx loads and row-locks one inventory unit.
func (s *MySQLStore) getUnitForUpdateTx(ctx context.Context, tx *sql.Tx, journeyID, unitID uint64) (model.Unit, error) {
    const q = `SELECT id, journey_id, class_code, kind, seat_code, occupied,
                      seat_codes, occupied_codes, price_cents
               FROM inventory_units WHERE id = ? AND journey_id = ? FOR UPDATE`
    u, err := scanUnit(tx.QueryRowContext(ctx, q, unitID, journeyID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrUnitNotFound
    }
    return u, err
}

// saveUnitTx writes a unit's occupancy back. The caller must hold the
// row lock taken by getUnitForUpdateTx.
func (s *MySQLStore) saveUnitTx(ctx context.Context, tx *sql.Tx, u model.Unit) error {
    switch unit := u.(type) {
    case *model.SeatUnit:
        const q = `UPDATE inventory_units SET occupied = ? WHERE id = ?`
        _, err := tx.ExecContext(ctx, q, unit.Held, unit.ID)
        return err
    case *model.CoachUnit:
        occupied, err := json.Marshal(unit.Occupied)
        if err != nil {
            return err
        }
        const q = `UPDATE inventory_units SET occupied_codes = ? WHERE id = ?`
        _, err = tx.ExecContext(ctx, q, string(occupied), unit.ID)
        return err
    }
    return ErrUnitNotFound
}

// releaseSeatTx locks the unit row, clears the seat's occupancy and
// writes the unit back.
func (s *MySQLStore) releaseSeatTx(ctx context.Context, tx *sql.Tx, journeyID, unitID uint64, seatCode string) error {
    unit, err := s.getUnitForUpdateTx(ctx, tx, journeyID, unitID)
    if err != nil {
        return err
    }
    unit.Release(seatCode)
    return s.saveUnitTx(ctx, tx, unit)
}

// getTicketForUpdateTx loads and row-locks one ticket by hash.
func (s *MySQLStore) getTicketForUpdateTx(ctx context.Context, tx *sql.Tx, hash string) (*model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE reservation_hash = ? FOR UPDATE`
    t, err := scanTicket(tx.QueryRowContext(ctx, q, hash))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrTicketNotFound
    }
    return t, err
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanJourney(row rowScanner) (*model.Journey, error) {
    var j model.Journey
    err := row.Scan(
        &j.ID, &j.TrainID, &j.OriginStationID, &j.DestinationStationID,
        &j.DepartsAt, &j.ArrivesAt, &j.JourneyDate, &j.AvailableSeats, &j.Status,
        &j.CreatedAt, &j.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    return &j, nil
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
    var t model.Ticket
    var paymentRef sql.NullString
    err := row.Scan(
        &t.ID, &t.HolderID, &t.JourneyID, &t.UnitID, &t.SeatCode, &t.PriceCents,
        &t.ReservationHash, &t.VerificationCode, &t.ReservationStatus, &t.PaymentStatus,
        &paymentRef, &t.IssuedAt, &t.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if paymentRef.Valid {
        ref := paymentRef.String
        t.PaymentRef = &ref
    }
    return &t, nil
}

// scanUnit builds the right unit shape from an inventory_units row.
// seat_code/occupied populate SEAT units; seat_codes/occupied_codes are
// JSON arrays for COACH units.
func scanUnit(row rowScanner) (model.Unit, error) {
    var (
        id, journeyID uint64
        classCode     string
        kind          string
        seatCode      sql.NullString
        occupied      sql.NullBool
        seatCodes     sql.NullString
        occupiedCodes sql.NullString
        priceCents    uint32
    )
    err := row.Scan(&id, &journeyID, &classCode, &kind, &seatCode, &occupied,
        &seatCodes, &occupiedCodes, &priceCents)
    if err != nil {
        return nil, err
    }
    if kind == model.UnitKindSeat {
        return &model.SeatUnit{
            ID:        id,
            Journey:   journeyID,
            ClassCode: classCode,
            Code:      seatCode.String,
            Price:     priceCents,
            Held:      occupied.Valid && occupied.Bool,
        }, nil
    }
    coach := &model.CoachUnit{
        ID:        id,
        Journey:   journeyID,
        ClassCode: classCode,
        Price:     priceCents,
    }
    if seatCodes.Valid && seatCodes.String != "" {
        if err := json.Unmarshal([]byte(seatCodes.String), &coach.Codes); err != nil {
            return nil, err
        }
    }
    if occupiedCodes.Valid && occupiedCodes.String != "" {
        if err := json.Unmarshal([]byte(occupiedCodes.String), &coach.Occupied); err != nil {
            return nil, err
        }
    }
    return coach, nil
}

var _ Store = (*MySQLStore)(nil)
