package handler

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/booking"
)

// TicketHandler serves the authenticated passenger endpoints: booking a
// seat, paying for it, cancelling it and listing held tickets. All
// methods assume JWT authentication and role validation already ran in
// middleware and may return 401 when no user ID is present in the
// context. Atomicity lives below in the store; handlers only validate
// input and translate errors.
type TicketHandler struct {
    Svc *booking.Service
}

// NewTicketHandler constructs a TicketHandler. The service must be non-nil.
func NewTicketHandler(svc *booking.Service) *TicketHandler {
    if svc == nil {
        panic("nil service passed to NewTicketHandler")
    }
    return &TicketHandler{Svc: svc}
}

// Reserve handles POST /v1/journeys/:id/tickets. The body names the
// inventory unit and seat code to book. On success it returns 201 with
// the full ticket, including the reservation hash the client needs for
// every later operation, and the payment deadline starts running.
func (h *TicketHandler) Reserve(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    journeyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || journeyID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid journey id"})
    }
    var body struct {
        UnitID   uint64 `json:"unit_id"`
        SeatCode string `json:"seat_code"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    body.SeatCode = strings.TrimSpace(body.SeatCode)
    if body.UnitID == 0 || body.SeatCode == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_id and seat_code are required"})
    }
    t, err := h.Svc.Reserve(c.Request().Context(), userID, journeyID, body.UnitID, body.SeatCode)
    if err != nil {
        return writeStoreErr(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"ticket": viewOf(t)})
}

// Pay handles POST /v1/tickets/:hash/pay. The payer handle is passed
// through to the payment provider untouched. A declined charge returns
// 402 and the ticket is already cancelled when the client sees it.
func (h *TicketHandler) Pay(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    hash := c.Param("hash")
    if hash == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation hash"})
    }
    var body struct {
        PayerHandle string `json:"payer_handle"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(body.PayerHandle) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payer_handle is required"})
    }
    t, err := h.Svc.Pay(c.Request().Context(), userID, hash, body.PayerHandle)
    if err != nil {
        return writeStoreErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ticket": viewOf(t)})
}

// Cancel handles DELETE /v1/tickets/:hash. Booked and confirmed
// tickets can be cancelled; used and already-cancelled ones respond
// with 409.
func (h *TicketHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    hash := c.Param("hash")
    if hash == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation hash"})
    }
    t, err := h.Svc.Cancel(c.Request().Context(), userID, hash)
    if err != nil {
        return writeStoreErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ticket": viewOf(t)})
}

// ListTickets handles GET /v1/my-tickets. It returns all of the
// holder's tickets, newest first, as an "items" array. When no tickets
// exist an empty array is returned.
func (h *TicketHandler) ListTickets(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    tickets, err := h.Svc.Tickets(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tickets"})
    }
    out := make([]ticketView, 0, len(tickets))
    for i := range tickets {
        out = append(out, viewOf(&tickets[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetTicket handles GET /v1/tickets/:hash. Tickets belonging to other
// holders respond with 404 rather than 403 so hashes cannot be probed.
func (h *TicketHandler) GetTicket(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    hash := c.Param("hash")
    if hash == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation hash"})
    }
    t, err := h.Svc.Ticket(c.Request().Context(), userID, hash)
    if err != nil {
        return writeStoreErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ticket": viewOf(t)})
}
