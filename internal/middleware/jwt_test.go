package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/utils"
)

func runOptionalJWT(t *testing.T, header string) (*httptest.ResponseRecorder, *model.User) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()

	var seen *model.User
	h := OptionalJWT("secret")(func(c echo.Context) error {
		if u, ok := UserFrom(c); ok {
			seen = &u
		}
		assert.Equal(t, func() uint64 {
			if seen != nil {
				return seen.ID
			}
			return 0
		}(), UserID(c))
		return c.NoContent(http.StatusNoContent)
	})
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec, seen
}

func TestOptionalJWT(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 5, "alice", 10)
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		rec, u := runOptionalJWT(t, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Nil(t, u)
	})

	t.Run("valid token", func(t *testing.T) {
		rec, u := runOptionalJWT(t, "Bearer "+tok.Token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, u)
		assert.Equal(t, model.User{ID: 5, Username: "alice"}, *u)
	})

	t.Run("bad token", func(t *testing.T) {
		rec, u := runOptionalJWT(t, "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, u)
		assert.Contains(t, rec.Body.String(), `"invalid token"`)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		rec, _ := runOptionalJWT(t, "Basic "+tok.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
