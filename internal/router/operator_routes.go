package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/train-seat-reservation/internal/handler"
    "github.com/iliyamo/train-seat-reservation/internal/middleware"
)

// RegisterOperator registers the on-board check-in endpoint under /v1.
// It requires a valid JWT carrying the OPERATOR role; passenger tokens
// are rejected by the role middleware.
func RegisterOperator(e *echo.Echo, h *handler.OperatorHandler, jwtSecret string) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("OPERATOR"),
    )
    // Consume a confirmed ticket at the train door.
    g.POST("/checkin", h.CheckIn)
}
