package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scriptorium-app/scriptorium/internal/config"
)

// SessionMiddleware resolves the caller's session token from the
// X-Session-Token header or the session cookie, minting a fresh one when
// absent. Volunteers are often anonymous; the token is their reservation
// holder identity either way.
func (s *Server) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(config.HEADER_KEY_X_SESSION_TOKEN)

		if token == "" {
			if cookie, err := c.Cookie(config.COOKIE_KEY_SESSION_TOKEN); err == nil {
				token = cookie.Value
			}
		}

		if token == "" {
			token = uuid.NewString()
			c.SetCookie(&http.Cookie{
				Name:     config.COOKIE_KEY_SESSION_TOKEN,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		oc := c.Request().Context()
		nc := context.WithValue(oc, config.CTX_KEY_SESSION_TOKEN, token)
		c.SetRequest(c.Request().WithContext(nc))

		return next(c)
	}
}

func (s *Server) sessionToken(c echo.Context) string {
	token, _ := c.Request().Context().Value(config.CTX_KEY_SESSION_TOKEN).(string)
	return token
}
