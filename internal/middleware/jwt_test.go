package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
    t.Helper()
    tok := jwt.NewWithClaims(method, claims)
    s, err := tok.SignedString([]byte(testSecret))
    require.NoError(t, err)
    return s
}

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    if authHeader != "" {
        req.Header.Set("Authorization", authHeader)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)

    h := JWTAuth(testSecret)(func(c echo.Context) error {
        return c.String(http.StatusOK, "reached")
    })
    require.NoError(t, h(c))
    return rec, c
}

func TestJWTAuthValidToken(t *testing.T) {
    token := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
        "sub":  "42",
        "role": "PASSENGER",
        "exp":  time.Now().Add(time.Hour).Unix(),
    })
    rec, c := runJWT(t, "Bearer "+token)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "42", c.Get("user_id"))
    assert.Equal(t, "PASSENGER", c.Get("role"))
}

func TestJWTAuthMissingHeader(t *testing.T) {
    rec, _ := runJWT(t, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthBadSignature(t *testing.T) {
    tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"})
    s, err := tok.SignedString([]byte("other-secret"))
    require.NoError(t, err)
    rec, _ := runJWT(t, "Bearer "+s)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthExpiredToken(t *testing.T) {
    token := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "42",
        "exp": time.Now().Add(-time.Hour).Unix(),
    })
    rec, _ := runJWT(t, "Bearer "+token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
    e := echo.New()
    next := func(c echo.Context) error { return c.String(http.StatusOK, "reached") }

    cases := []struct {
        role     interface{}
        allowed  []string
        wantCode int
    }{
        {"OPERATOR", []string{"OPERATOR"}, http.StatusOK},
        {"PASSENGER", []string{"OPERATOR"}, http.StatusForbidden},
        {"PASSENGER", []string{"PASSENGER", "OPERATOR"}, http.StatusOK},
        {nil, []string{"PASSENGER"}, http.StatusForbidden},
    }
    for _, tc := range cases {
        req := httptest.NewRequest(http.MethodGet, "/", nil)
        rec := httptest.NewRecorder()
        c := e.NewContext(req, rec)
        if tc.role != nil {
            c.Set("role", tc.role)
        }
        require.NoError(t, RequireRole(tc.allowed...)(next)(c))
        assert.Equal(t, tc.wantCode, rec.Code)
    }
}
