// Package middleware holds echo middleware of the HTTP gateway.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
	"github.com/iliyamo/seat-booking-server/internal/utils"
)

// OptionalJWT authenticates requests that carry an "Authorization: Bearer"
// access token and lets anonymous requests through untouched.  A token that
// is present but invalid is rejected with 401, so a client never silently
// loses its identity.  The user is stored in the context for UserFrom.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return next(c)
			}
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				return c.JSON(http.StatusUnauthorized, invalidToken())
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, invalidToken())
			}
			id, _ := claims.UserID()
			c.Set(userKey, model.User{ID: id, Username: claims.Username})
			return next(c)
		}
	}
}

func invalidToken() protocol.Response {
	return (&protocol.Error{Kind: protocol.KindUnauthorized, Message: "invalid token"}).Response()
}
