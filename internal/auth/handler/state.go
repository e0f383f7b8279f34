package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
)

// stateCookieName is the caller-held slot for one handshake attempt.
// It holds the signed link state, is readable only by the server, and
// must never outlive one round trip.
const stateCookieName = "__steam_auth_state"

func setStateCookie(c *gin.Context, signedState string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    signedState,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(linkstate.TTL.Seconds()),
	})
}

func getStateCookie(c *gin.Context) string {
	cookie, err := c.Request.Cookie(stateCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// clearStateCookie enforces single use: it runs unconditionally on every
// callback, before the outcome is known.
func clearStateCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
