package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking-server/internal/middleware"
	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/monitoring"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
	"github.com/iliyamo/seat-booking-server/internal/session"
	"github.com/iliyamo/seat-booking-server/internal/utils"
)

// Gateway exposes the dispatcher over HTTP.  HTTP has no connection to
// hang a session on, so each request rebuilds one from the bearer token
// that OptionalJWT verified, and a successful login returns a new token.
type Gateway struct {
	Dispatcher *Dispatcher
	Secret     string
	TTLMin     int
	Log        *slog.Logger
}

func NewGateway(d *Dispatcher, secret string, ttlMin int, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Gateway{Dispatcher: d, Secret: secret, TTLMin: ttlMin, Log: log}
}

var statusByCode = map[string]int{
	protocol.StatusOK:                 http.StatusOK,
	protocol.KindBadRequest.Code():    http.StatusBadRequest,
	protocol.KindUnauthorized.Code():  http.StatusUnauthorized,
	protocol.KindNotFound.Code():      http.StatusNotFound,
	protocol.KindConflict.Code():      http.StatusConflict,
	protocol.KindStoreFailure.Code():  http.StatusInternalServerError,
	protocol.KindUnknownAction.Code(): http.StatusBadRequest,
	protocol.KindRateLimited.Code():   http.StatusTooManyRequests,
}

// HTTPStatus maps a response to the status code the gateway sends.
func HTTPStatus(r protocol.Response) int {
	if s, ok := statusByCode[r.Code()]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Actions handles POST /v1/actions.  The body is one protocol request
// object; the reply is the protocol response object.
func (g *Gateway) Actions(c echo.Context) error {
	start := time.Now()
	var req protocol.Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		perr := protocol.BadRequest("invalid request: " + err.Error())
		if protocol.IsMalformed(err) {
			perr = protocol.InvalidJSON()
		}
		return c.JSON(http.StatusBadRequest, perr.Response())
	}

	sess := session.New("http:" + c.RealIP())
	if u, ok := middleware.UserFrom(c); ok {
		sess.Login(u)
	}

	resp := g.Dispatcher.Dispatch(c.Request().Context(), sess, req)
	if req.Action == protocol.ActionLogin && resp.IsOK() {
		u, _ := sess.User()
		if err := g.attachToken(resp, u); err != nil {
			g.Log.Error("issue access token", "user_id", u.ID, "error", err)
			resp = protocol.StoreFailure(err).Response()
		}
	}
	monitoring.RecordRequest(req.Action.String(), "http", resp.Code(), time.Since(start))
	return c.JSON(HTTPStatus(resp), resp)
}

func (g *Gateway) attachToken(resp protocol.Response, u model.User) error {
	tok, err := utils.NewAccessToken(g.Secret, u.ID, u.Username, g.TTLMin)
	if err != nil {
		return err
	}
	resp.With("token", tok.Token).With("expires", tok.Exp)
	return nil
}
