package handler // handler defines http handlers

import (
    "errors"  // errors provides sentinel values used in getUserID
    "net/http"
    "strconv" // strconv converts strings to numeric types
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/booking"
    "github.com/iliyamo/train-seat-reservation/internal/model"
    "github.com/iliyamo/train-seat-reservation/internal/repository"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// ticketView is the JSON shape of a ticket in every response that
// returns one. The payment reference is omitted until payment ran.
type ticketView struct {
    ID                uint64  `json:"id"`
    JourneyID         uint64  `json:"journey_id"`
    UnitID            uint64  `json:"unit_id"`
    SeatCode          string  `json:"seat_code"`
    PriceCents        uint32  `json:"price_cents"`
    ReservationHash   string  `json:"reservation_hash"`
    VerificationCode  string  `json:"verification_code"`
    ReservationStatus string  `json:"reservation_status"`
    PaymentStatus     string  `json:"payment_status"`
    PaymentRef        *string `json:"payment_ref,omitempty"`
    IssuedAt          string  `json:"issued_at"`
    UpdatedAt         string  `json:"updated_at"`
}

func viewOf(t *model.Ticket) ticketView {
    return ticketView{
        ID:                t.ID,
        JourneyID:         t.JourneyID,
        UnitID:            t.UnitID,
        SeatCode:          t.SeatCode,
        PriceCents:        t.PriceCents,
        ReservationHash:   t.ReservationHash,
        VerificationCode:  t.VerificationCode,
        ReservationStatus: t.ReservationStatus,
        PaymentStatus:     t.PaymentStatus,
        PaymentRef:        t.PaymentRef,
        IssuedAt:          t.IssuedAt.UTC().Format(time.RFC3339),
        UpdatedAt:         t.UpdatedAt.UTC().Format(time.RFC3339),
    }
}

// writeStoreErr maps the repository and booking error taxonomy onto
// HTTP responses. Every sentinel gets a stable machine-readable error
// string so clients can branch without parsing messages.
func writeStoreErr(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrJourneyNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "journey not found"})
    case errors.Is(err, repository.ErrUnitNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "unit not found"})
    case errors.Is(err, repository.ErrTicketNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
    case errors.Is(err, repository.ErrUnknownSeat):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat code not part of unit"})
    case errors.Is(err, repository.ErrJourneyNotBookable):
        return c.JSON(http.StatusConflict, echo.Map{"error": "journey not open for booking"})
    case errors.Is(err, repository.ErrNoSeatsRemaining):
        return c.JSON(http.StatusConflict, echo.Map{"error": "no seats remaining"})
    case errors.Is(err, repository.ErrDuplicateReservation):
        return c.JSON(http.StatusConflict, echo.Map{"error": "holder already has an active ticket on this journey"})
    case errors.Is(err, repository.ErrSeatAlreadyHeld):
        return c.JSON(http.StatusConflict, echo.Map{"error": "seat already held"})
    case errors.Is(err, repository.ErrInvalidTicketState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket not in a valid state for this operation"})
    case errors.Is(err, repository.ErrAlreadyUsed):
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket already used"})
    case errors.Is(err, repository.ErrTicketCancelled):
        return c.JSON(http.StatusConflict, echo.Map{"error": "ticket cancelled"})
    case errors.Is(err, repository.ErrPaymentIncomplete):
        return c.JSON(http.StatusConflict, echo.Map{"error": "payment not completed"})
    case errors.Is(err, booking.ErrPaymentDeclined):
        return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment declined"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
