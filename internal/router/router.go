package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Load balancers and monitoring systems probe this endpoint to
    // verify that the service is up.
    e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated journey browse endpoints.
// These routes apply no JWT or role middleware; guests use them to pick
// a journey and seat before logging in to book. The optional cache and
// limiter middleware are passed in from main so tests can register the
// routes bare.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, mw ...echo.MiddlewareFunc) {
    g := e.Group("/v1", mw...)
    // List all journeys ordered by departure time.
    g.GET("/journeys", p.ListJourneys)
    // Journey details by ID.
    g.GET("/journeys/:id", p.GetJourney)
    // Per-seat availability of a journey, grouped by inventory unit.
    g.GET("/journeys/:id/seats", p.GetJourneySeats)
}
