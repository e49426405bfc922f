// This file defines handlers for the public browsing API. These routes
// let unauthenticated users list journeys and inspect per-seat
// availability before logging in to book. Responses expose only safe
// fields; occupancy appears as seat maps, never as ticket data.

package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/model"
    "github.com/iliyamo/train-seat-reservation/internal/repository"
)

// PublicHandler serves unauthenticated journey browsing from the store.
type PublicHandler struct {
    Store repository.Store
}

// NewPublicHandler constructs a PublicHandler. The store must be non-nil.
func NewPublicHandler(store repository.Store) *PublicHandler {
    if store == nil {
        panic("nil store passed to NewPublicHandler")
    }
    return &PublicHandler{Store: store}
}

// PublicJourney represents a journey in list responses.
type PublicJourney struct {
    ID                   uint64    `json:"id"`
    TrainID              uint64    `json:"train_id"`
    OriginStationID      uint64    `json:"origin_station_id"`
    DestinationStationID uint64    `json:"destination_station_id"`
    DepartsAt            time.Time `json:"departs_at"`
    ArrivesAt            time.Time `json:"arrives_at"`
    JourneyDate          string    `json:"journey_date"`
    AvailableSeats       uint32    `json:"available_seats"`
    Status               string    `json:"status"`
}

// PublicSeat is one seat's availability inside a unit response.
type PublicSeat struct {
    Code     string `json:"code"`
    Occupied bool   `json:"occupied"`
}

// PublicUnit represents an inventory unit with its per-seat state.
type PublicUnit struct {
    ID         uint64       `json:"id"`
    Kind       string       `json:"kind"`
    ClassCode  string       `json:"class_code"`
    PriceCents uint32       `json:"price_cents"`
    Capacity   int          `json:"capacity"`
    Free       int          `json:"free"`
    Seats      []PublicSeat `json:"seats"`
}

func publicJourney(j model.Journey) PublicJourney {
    return PublicJourney{
        ID:                   j.ID,
        TrainID:              j.TrainID,
        OriginStationID:      j.OriginStationID,
        DestinationStationID: j.DestinationStationID,
        DepartsAt:            j.DepartsAt,
        ArrivesAt:            j.ArrivesAt,
        JourneyDate:          j.JourneyDate,
        AvailableSeats:       j.AvailableSeats,
        Status:               j.Status,
    }
}

// ListJourneys handles GET /v1/journeys. It returns all journeys
// ordered by departure time in an "items" array.
func (h *PublicHandler) ListJourneys(c echo.Context) error {
    ctx := c.Request().Context()
    journeys, err := h.Store.ListJourneys(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]PublicJourney, 0, len(journeys))
    for _, j := range journeys {
        out = append(out, publicJourney(j))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetJourney handles GET /v1/journeys/:id. It returns a single journey
// or 404 when it does not exist.
func (h *PublicHandler) GetJourney(c echo.Context) error {
    ctx := c.Request().Context()
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid journey id"})
    }
    j, err := h.Store.GetJourney(ctx, id)
    if err != nil {
        return writeStoreErr(c, err)
    }
    return c.JSON(http.StatusOK, publicJourney(*j))
}

// GetJourneySeats handles GET /v1/journeys/:id/seats. It returns the
// journey's inventory units with each seat's occupancy so a client can
// render a seat map. The counts reflect committed state only; a seat
// shown free can still be lost to a concurrent booking.
func (h *PublicHandler) GetJourneySeats(c echo.Context) error {
    ctx := c.Request().Context()
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid journey id"})
    }
    // ensure journey exists
    if _, err := h.Store.GetJourney(ctx, id); err != nil {
        return writeStoreErr(c, err)
    }
    units, err := h.Store.ListUnits(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]PublicUnit, 0, len(units))
    for _, u := range units {
        pu := PublicUnit{
            ID:         u.UnitID(),
            PriceCents: u.PriceCents(),
            Capacity:   u.Capacity(),
        }
        switch v := u.(type) {
        case *model.SeatUnit:
            pu.Kind = model.UnitKindSeat
            pu.ClassCode = v.ClassCode
        case *model.CoachUnit:
            pu.Kind = model.UnitKindCoach
            pu.ClassCode = v.ClassCode
        }
        for _, code := range u.SeatCodes() {
            occ := u.IsOccupied(code)
            if !occ {
                pu.Free++
            }
            pu.Seats = append(pu.Seats, PublicSeat{Code: code, Occupied: occ})
        }
        out = append(out, pu)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}
