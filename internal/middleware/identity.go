package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking-server/internal/model"
)

const userKey = "user"

// UserFrom returns the user OptionalJWT authenticated, if any.
func UserFrom(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userKey).(model.User)
	return u, ok && u.ID != 0
}

// UserID returns the authenticated user's id or 0.  It matches the shape
// the rate limiter expects.
func UserID(c echo.Context) uint64 {
	u, _ := UserFrom(c)
	return u.ID
}
