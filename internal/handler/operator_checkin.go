package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/booking"
)

// OperatorHandler serves the on-board check-in endpoint. Only users
// carrying the OPERATOR role reach it; the role gate runs in
// middleware.
type OperatorHandler struct {
    Svc *booking.Service
}

// NewOperatorHandler constructs an OperatorHandler. The service must be
// non-nil.
func NewOperatorHandler(svc *booking.Service) *OperatorHandler {
    if svc == nil {
        panic("nil service passed to NewOperatorHandler")
    }
    return &OperatorHandler{Svc: svc}
}

// CheckIn handles POST /v1/checkin. The operator scans a ticket and
// submits its reservation hash plus the check-in location. A valid
// confirmed ticket moves to USED and the verification is recorded; any
// repeat scan of the same hash responds with 409 so a ticket cannot be
// consumed twice.
func (h *OperatorHandler) CheckIn(c echo.Context) error {
    operatorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        ReservationHash string `json:"reservation_hash"`
        Location        string `json:"location"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    body.ReservationHash = strings.TrimSpace(body.ReservationHash)
    if body.ReservationHash == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation_hash is required"})
    }
    t, err := h.Svc.CheckIn(c.Request().Context(), body.ReservationHash, operatorID, strings.TrimSpace(body.Location))
    if err != nil {
        return writeStoreErr(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ticket": viewOf(t)})
}
