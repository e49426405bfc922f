package handler

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/train-seat-reservation/internal/booking"
    "github.com/iliyamo/train-seat-reservation/internal/model"
    "github.com/iliyamo/train-seat-reservation/internal/payment"
    "github.com/iliyamo/train-seat-reservation/internal/repository"
)

type testEnv struct {
    e        *echo.Echo
    store    *repository.MemoryStore
    provider *payment.MockProvider
    tickets  *TicketHandler
    operator *OperatorHandler
    public   *PublicHandler
}

func newTestEnv(t *testing.T) *testEnv {
    t.Helper()
    store := repository.NewMemoryStore(30 * time.Minute)
    store.AddJourney(model.Journey{
        ID:             1,
        TrainID:        10,
        DepartsAt:      time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
        ArrivesAt:      time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC),
        JourneyDate:    "2026-04-01",
        AvailableSeats: 3,
        Status:         model.JourneyScheduled,
    })
    store.AddUnit(&model.SeatUnit{ID: 1, Journey: 1, ClassCode: "STD", Code: "12A", Price: 4500})
    store.AddUnit(&model.CoachUnit{ID: 2, Journey: 1, ClassCode: "BERTH", Codes: []string{"B1", "B2"}, Price: 8000})

    provider := payment.NewMockProvider()
    svc := booking.NewService(store, provider, nil)

    return &testEnv{
        e:        echo.New(),
        store:    store,
        provider: provider,
        tickets:  NewTicketHandler(svc),
        operator: NewOperatorHandler(svc),
        public:   NewPublicHandler(store),
    }
}

// call builds an echo context for a JSON request and runs the handler,
// returning the recorder. userID zero leaves the context unauthenticated.
func (env *testEnv) call(t *testing.T, h echo.HandlerFunc, method, path, body string, userID uint64, params map[string]string) *httptest.ResponseRecorder {
    t.Helper()
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    rec := httptest.NewRecorder()
    c := env.e.NewContext(req, rec)
    if userID != 0 {
        c.Set("user_id", userID)
    }
    if len(params) > 0 {
        names := make([]string, 0, len(params))
        values := make([]string, 0, len(params))
        for k, v := range params {
            names = append(names, k)
            values = append(values, v)
        }
        c.SetParamNames(names...)
        c.SetParamValues(values...)
    }
    require.NoError(t, h(c))
    return rec
}

func ticketFrom(t *testing.T, rec *httptest.ResponseRecorder) ticketView {
    t.Helper()
    var out struct {
        Ticket ticketView `json:"ticket"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
    return out.Ticket
}

func TestReserveEndpoint(t *testing.T) {
    env := newTestEnv(t)

    rec := env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 100, map[string]string{"id": "1"})
    require.Equal(t, http.StatusCreated, rec.Code)
    tk := ticketFrom(t, rec)
    assert.Equal(t, "BOOKED", tk.ReservationStatus)
    assert.Equal(t, "PENDING", tk.PaymentStatus)
    assert.NotEmpty(t, tk.ReservationHash)
    assert.NotEmpty(t, tk.VerificationCode)

    // same seat is now a conflict
    rec = env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 101, map[string]string{"id": "1"})
    assert.Equal(t, http.StatusConflict, rec.Code)

    // holder 100 cannot double book the journey
    rec = env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":2,"seat_code":"B1"}`, 100, map[string]string{"id": "1"})
    assert.Equal(t, http.StatusConflict, rec.Code)

    // missing body fields
    rec = env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{}`, 102, map[string]string{"id": "1"})
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    // unknown journey
    rec = env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/9/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 102, map[string]string{"id": "9"})
    assert.Equal(t, http.StatusNotFound, rec.Code)

    // no user in context
    rec = env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 0, map[string]string{"id": "1"})
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPayEndpoint(t *testing.T) {
    env := newTestEnv(t)
    env.provider.FailFor["broke@example.com"] = true

    rec := env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 100, map[string]string{"id": "1"})
    require.Equal(t, http.StatusCreated, rec.Code)
    hash := ticketFrom(t, rec).ReservationHash

    // declined charge: 402, ticket cancelled
    rec = env.call(t, env.tickets.Pay, http.MethodPost, "/v1/tickets/"+hash+"/pay",
        `{"payer_handle":"broke@example.com"}`, 100, map[string]string{"hash": hash})
    assert.Equal(t, http.StatusPaymentRequired, rec.Code)

    // book again and pay successfully
    rec = env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 100, map[string]string{"id": "1"})
    require.Equal(t, http.StatusCreated, rec.Code)
    hash = ticketFrom(t, rec).ReservationHash

    rec = env.call(t, env.tickets.Pay, http.MethodPost, "/v1/tickets/"+hash+"/pay",
        `{"payer_handle":"payer@example.com"}`, 100, map[string]string{"hash": hash})
    require.Equal(t, http.StatusOK, rec.Code)
    tk := ticketFrom(t, rec)
    assert.Equal(t, "CONFIRMED", tk.ReservationStatus)
    assert.Equal(t, "COMPLETED", tk.PaymentStatus)
    assert.NotNil(t, tk.PaymentRef)

    // paying a confirmed ticket again conflicts
    rec = env.call(t, env.tickets.Pay, http.MethodPost, "/v1/tickets/"+hash+"/pay",
        `{"payer_handle":"payer@example.com"}`, 100, map[string]string{"hash": hash})
    assert.Equal(t, http.StatusConflict, rec.Code)

    // another holder's hash reads as not found
    rec = env.call(t, env.tickets.Pay, http.MethodPost, "/v1/tickets/"+hash+"/pay",
        `{"payer_handle":"payer@example.com"}`, 999, map[string]string{"hash": hash})
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckInEndpoint(t *testing.T) {
    env := newTestEnv(t)

    rec := env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 100, map[string]string{"id": "1"})
    require.Equal(t, http.StatusCreated, rec.Code)
    hash := ticketFrom(t, rec).ReservationHash

    // unpaid ticket cannot board
    rec = env.call(t, env.operator.CheckIn, http.MethodPost, "/v1/checkin",
        `{"reservation_hash":"`+hash+`","location":"platform 2"}`, 7, nil)
    assert.Equal(t, http.StatusConflict, rec.Code)

    rec = env.call(t, env.tickets.Pay, http.MethodPost, "/v1/tickets/"+hash+"/pay",
        `{"payer_handle":"payer@example.com"}`, 100, map[string]string{"hash": hash})
    require.Equal(t, http.StatusOK, rec.Code)

    rec = env.call(t, env.operator.CheckIn, http.MethodPost, "/v1/checkin",
        `{"reservation_hash":"`+hash+`","location":"platform 2"}`, 7, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "USED", ticketFrom(t, rec).ReservationStatus)

    // double scan
    rec = env.call(t, env.operator.CheckIn, http.MethodPost, "/v1/checkin",
        `{"reservation_hash":"`+hash+`","location":"platform 2"}`, 7, nil)
    assert.Equal(t, http.StatusConflict, rec.Code)

    // unknown hash
    rec = env.call(t, env.operator.CheckIn, http.MethodPost, "/v1/checkin",
        `{"reservation_hash":"nope","location":"platform 2"}`, 7, nil)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelAndListEndpoints(t *testing.T) {
    env := newTestEnv(t)

    rec := env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":1,"seat_code":"12A"}`, 100, map[string]string{"id": "1"})
    require.Equal(t, http.StatusCreated, rec.Code)
    hash := ticketFrom(t, rec).ReservationHash

    // ticket shows up in the holder's list
    rec = env.call(t, env.tickets.ListTickets, http.MethodGet, "/v1/my-tickets", "", 100, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    var list struct {
        Items []ticketView `json:"items"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
    require.Len(t, list.Items, 1)

    // single lookup; other holders get 404
    rec = env.call(t, env.tickets.GetTicket, http.MethodGet, "/v1/tickets/"+hash, "", 100, map[string]string{"hash": hash})
    assert.Equal(t, http.StatusOK, rec.Code)
    rec = env.call(t, env.tickets.GetTicket, http.MethodGet, "/v1/tickets/"+hash, "", 999, map[string]string{"hash": hash})
    assert.Equal(t, http.StatusNotFound, rec.Code)

    rec = env.call(t, env.tickets.Cancel, http.MethodDelete, "/v1/tickets/"+hash, "", 100, map[string]string{"hash": hash})
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "CANCELLED", ticketFrom(t, rec).ReservationStatus)

    // cancelled tickets remain listed
    rec = env.call(t, env.tickets.ListTickets, http.MethodGet, "/v1/my-tickets", "", 100, nil)
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
    require.Len(t, list.Items, 1)
    assert.Equal(t, "CANCELLED", list.Items[0].ReservationStatus)
}

func TestPublicBrowseEndpoints(t *testing.T) {
    env := newTestEnv(t)

    rec := env.call(t, env.public.ListJourneys, http.MethodGet, "/v1/journeys", "", 0, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    var journeys struct {
        Items []PublicJourney `json:"items"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &journeys))
    require.Len(t, journeys.Items, 1)
    assert.Equal(t, uint32(3), journeys.Items[0].AvailableSeats)

    rec = env.call(t, env.public.GetJourney, http.MethodGet, "/v1/journeys/9", "", 0, map[string]string{"id": "9"})
    assert.Equal(t, http.StatusNotFound, rec.Code)

    // seat map reflects a booking
    env.call(t, env.tickets.Reserve, http.MethodPost, "/v1/journeys/1/tickets",
        `{"unit_id":2,"seat_code":"B1"}`, 100, map[string]string{"id": "1"})

    rec = env.call(t, env.public.GetJourneySeats, http.MethodGet, "/v1/journeys/1/seats", "", 0, map[string]string{"id": "1"})
    require.Equal(t, http.StatusOK, rec.Code)
    var units struct {
        Items []PublicUnit `json:"items"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &units))
    require.Len(t, units.Items, 2)

    assert.Equal(t, "SEAT", units.Items[0].Kind)
    assert.Equal(t, 1, units.Items[0].Free)

    coach := units.Items[1]
    assert.Equal(t, "COACH", coach.Kind)
    assert.Equal(t, 2, coach.Capacity)
    assert.Equal(t, 1, coach.Free)
    require.Len(t, coach.Seats, 2)
    assert.True(t, coach.Seats[0].Occupied)
    assert.False(t, coach.Seats[1].Occupied)
}
