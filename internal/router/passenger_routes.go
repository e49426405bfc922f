package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/handler"
    "github.com/iliyamo/train-seat-reservation/internal/middleware"
)

// RegisterPassenger registers passenger-scoped endpoints under /v1. All
// routes require a valid JWT and the PASSENGER role. Passengers book
// seats, pay for them, cancel them and view their own tickets. Extra
// middleware (the rate limiter in production) is appended after the
// auth chain.
func RegisterPassenger(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, mw ...echo.MiddlewareFunc) {
    chain := append([]echo.MiddlewareFunc{
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("PASSENGER"),
    }, mw...)
    g := e.Group("/v1", chain...)
    // Book one seat on a journey. The body names unit_id and seat_code.
    g.POST("/journeys/:id/tickets", h.Reserve)
    // Pay for a booked ticket before the payment window lapses.
    g.POST("/tickets/:hash/pay", h.Pay)
    // Cancel a booked or confirmed ticket and free its seat.
    g.DELETE("/tickets/:hash", h.Cancel)
    // The holder's tickets, newest first.
    g.GET("/my-tickets", h.ListTickets)
    // Single ticket lookup by reservation hash.
    g.GET("/tickets/:hash", h.GetTicket)
}
