package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/auth"
	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
	"github.com/Yunichie/Play-This-Next/internal/auth/resolver"
	"github.com/Yunichie/Play-This-Next/internal/auth/steam"
	"github.com/Yunichie/Play-This-Next/internal/logger"
	"github.com/Yunichie/Play-This-Next/internal/session"
)

// Stable error codes appended to the failure redirect. The presentation
// layer translates these into user-facing text.
const (
	codeInvalidState       = "invalid_state"
	codeProviderRejected   = "provider_rejected"
	codeMalformedAssertion = "malformed_assertion"
	codeNetworkFailure     = "network_failure"
	codeProfileFetchFailed = "profile_fetch_failed"
	codeNotAuthenticated   = "not_authenticated"
	codeAlreadyLinked      = "already_linked"
	codeIssuanceFailed     = "session_issuance_failed"
)

// SteamStart begins the handshake: issue a link state, stash it in the
// caller-held slot, and bounce the user to Steam.
func (h *Handler) SteamStart(c *gin.Context) {
	mode := linkstate.Mode(c.DefaultQuery("mode", string(linkstate.ModeLogin)))
	returnTo := sanitizeReturnTo(c.Query("return_to"))

	if mode == linkstate.ModeLink {
		// Fail early with a clear code instead of a round trip to Steam
		// that can only end in not_authenticated.
		if _, ok := h.authMW.CurrentUserID(c.Request); !ok {
			h.redirectError(c, linkstate.ModeLink, codeNotAuthenticated)
			return
		}
	}

	st, signed, err := h.states.Issue(mode, returnTo)
	if err != nil {
		logger.Error("failed to issue link state", map[string]any{"error": err.Error()})
		h.redirectError(c, mode, codeInvalidState)
		return
	}

	authURL, err := h.handshake.BuildAuthorizationRequest(
		st.Token,
		h.baseURL+"/auth/steam/callback",
		h.baseURL,
	)
	if err != nil {
		logger.Error("failed to build authorization request", map[string]any{"error": err.Error()})
		h.redirectError(c, mode, codeProviderRejected)
		return
	}

	setStateCookie(c, signed)
	c.Redirect(http.StatusFound, authURL)
}

// SteamCallback finishes the handshake: state verify, assertion verify,
// profile fetch, resolve, issue. Every failure collapses to a redirect
// with a stable code, and the state slot is cleared no matter what.
func (h *Handler) SteamCallback(c *gin.Context) {
	storedSlot := getStateCookie(c)
	clearStateCookie(c) // single use, success or failure

	st, err := h.states.Verify(c.Query("state"), storedSlot)
	if err != nil {
		logger.Warn("state verification failed", map[string]any{"ip": c.ClientIP()})
		h.redirectError(c, linkstate.ModeLogin, codeInvalidState)
		return
	}

	steamID, err := h.handshake.VerifyAssertion(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.redirectError(c, st.Mode, assertionCode(err))
		return
	}

	player, err := h.profiles.GetPlayerSummary(c.Request.Context(), steamID)
	if err != nil {
		logger.Error("profile fetch failed", map[string]any{
			"steam_id": steamID,
			"error":    err.Error(),
		})
		h.redirectError(c, st.Mode, codeProfileFetchFailed)
		return
	}

	identity := &auth.Identity{
		SteamID:     steamID,
		DisplayName: player.PersonaName,
		AvatarURL:   player.AvatarFull,
	}

	authedUserID, _ := h.authMW.CurrentUserID(c.Request)

	result, err := h.resolver.Resolve(c.Request.Context(), identity, st.Mode, authedUserID)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrNotAuthenticated):
			h.redirectError(c, st.Mode, codeNotAuthenticated)
		case errors.Is(err, resolver.ErrConflict):
			h.redirectError(c, st.Mode, codeAlreadyLinked)
		default:
			logger.Error("resolver failed", map[string]any{"error": err.Error()})
			h.redirectError(c, st.Mode, codeIssuanceFailed)
		}
		return
	}

	switch result.Outcome {
	case resolver.OutcomeProvisioned, resolver.OutcomeSignedIn:
		sess, err := h.issuer.IssueForSteam(c.Request.Context(), result.UserID, steamID)
		if err != nil {
			// Indicates directory or store trouble, not user error.
			logger.Error("session issuance failed", map[string]any{
				"user_id": result.UserID,
				"error":   err.Error(),
			})
			h.redirectError(c, st.Mode, codeIssuanceFailed)
			return
		}

		session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, session.CookieOptions{
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})

		logger.Info("steam login", map[string]any{
			"user_id":     result.UserID,
			"provisioned": result.Outcome == resolver.OutcomeProvisioned,
		})
		c.Redirect(http.StatusFound, sanitizeReturnTo(st.ReturnTo))

	case resolver.OutcomeLinked, resolver.OutcomeAlreadyLinkedToSelf:
		// The caller already holds a valid session; linking never mints
		// a new one.
		target := sanitizeReturnTo(st.ReturnTo)
		if target == "/" {
			target = "/settings?steam_link=success"
		}
		c.Redirect(http.StatusFound, target)

	default:
		h.redirectError(c, st.Mode, codeIssuanceFailed)
	}
}

// SteamUnlink removes the Steam ID from the caller's account.
func (h *Handler) SteamUnlink(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.dir.DetachSteamID(c.Request.Context(), userID); err != nil {
		logger.Error("steam unlink failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unlink steam account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "unlinked"})
}

// assertionCode maps handshake-client errors onto redirect codes so the
// caller can distinguish "try again" from "this identity is invalid".
func assertionCode(err error) string {
	switch {
	case errors.Is(err, steam.ErrNetworkFailure):
		return codeNetworkFailure
	case errors.Is(err, steam.ErrMalformedAssertion):
		return codeMalformedAssertion
	default:
		return codeProviderRejected
	}
}

func (h *Handler) redirectError(c *gin.Context, mode linkstate.Mode, code string) {
	entry := "/login"
	if mode == linkstate.ModeLink {
		entry = "/settings"
	}
	c.Redirect(http.StatusFound, entry+"?error="+code)
}
