package middleware

// identity.go holds helpers shared across middleware files. The rate
// limiter and cache key builders need a user identifier even on routes
// where authentication is optional, so extraction failure falls back to
// "anon" rather than erroring.

import (
    "fmt"

    "github.com/labstack/echo/v4"
)

// currentUserID returns a string form of the authenticated user's ID
// from the Echo context, or "anon" when no user is authenticated.
func currentUserID(c echo.Context) string {
    v := c.Get("user_id")
    if v == nil {
        return "anon"
    }
    switch t := v.(type) {
    case string:
        if t != "" {
            return t
        }
    case float64:
        return fmt.Sprintf("%.0f", t)
    case uint64:
        return fmt.Sprintf("%d", t)
    }
    return "anon"
}
