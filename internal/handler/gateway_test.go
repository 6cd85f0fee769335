package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-server/internal/middleware"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
	"github.com/iliyamo/seat-booking-server/internal/testutil"
)

func newGatewayServer(t *testing.T) (*echo.Echo, *fixture) {
	t.Helper()
	f := newFixture(t)
	e := echo.New()
	gw := NewGateway(f.d, "test-secret", 15, nil)
	e.POST("/v1/actions", gw.Actions, middleware.OptionalJWT("test-secret"))
	e.GET("/healthz", Health(f.store))
	return e, f
}

func post(t *testing.T, e *echo.Echo, body, token string) (int, protocol.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestGateway_LoginThenBook(t *testing.T) {
	e, f := newGatewayServer(t)
	testutil.AddUser(t, f.store, "alice", "pw")
	seat := f.show.Seats["A1"].ID

	code, resp := post(t, e, `{"action":"book_seat","seat_id":1}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "login required", resp.Text("message"))

	code, resp = post(t, e, `{"action":"login","username":"alice","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, code, "%v", resp)
	token := resp.Text("token")
	require.NotEmpty(t, token)
	assert.NotEmpty(t, resp.Text("expires"))

	code, resp = post(t, e, `{"action":"book_seat","seat_id":"`+jsonID(seat)+`"}`, token)
	require.Equal(t, http.StatusOK, code, "%v", resp)
	assert.Equal(t, "booked", resp.Text("message"))

	code, resp = post(t, e, `{"action":"book_seat","seat_id":`+jsonID(seat)+`}`, token)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "seat already booked", resp.Text("message"))

	code, resp = post(t, e, `{"action":"my_bookings"}`, token)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, resp["bookings"], 1)
}

func TestGateway_BadInput(t *testing.T) {
	e, _ := newGatewayServer(t)

	code, resp := post(t, e, `{"action":`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid JSON", resp.Text("message"))

	code, resp = post(t, e, `{"action":"book_seat","seat_id":true}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", resp.Text("code"))

	code, resp = post(t, e, `{"action":"teleport"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown action", resp.Text("message"))

	code, resp = post(t, e, `{"action":"list_movies"}`, "forged")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid token", resp.Text("message"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealth(t *testing.T) {
	e, _ := newGatewayServer(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	down := echo.New()
	down.GET("/healthz", Health(failingPinger{}))
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(protocol.OK()))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(protocol.NotFound("x").Response()))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(protocol.RateLimited().Response()))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(protocol.Response{"status": "weird"}))
}

func jsonID(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
