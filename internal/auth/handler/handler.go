package handler

import (
	"context"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
	"github.com/Yunichie/Play-This-Next/internal/auth/resolver"
	"github.com/Yunichie/Play-This-Next/internal/auth/steam"
	"github.com/Yunichie/Play-This-Next/internal/directory"
	"github.com/Yunichie/Play-This-Next/internal/middleware"
	"github.com/Yunichie/Play-This-Next/internal/session"
)

// HandshakeClient builds the outbound redirect and verifies the inbound
// assertion. Satisfied by *steam.OpenIDClient.
type HandshakeClient interface {
	BuildAuthorizationRequest(stateToken, returnEndpoint, realm string) (string, error)
	VerifyAssertion(ctx context.Context, params url.Values) (string, error)
}

// ProfileFetcher resolves a verified Steam ID to a displayable profile.
// Satisfied by *steam.WebAPI.
type ProfileFetcher interface {
	GetPlayerSummary(ctx context.Context, steamID string) (*steam.Player, error)
}

// SessionIssuer exchanges a resolved identity for an application session.
type SessionIssuer interface {
	IssueForSteam(ctx context.Context, userID, steamID string) (session.Session, error)
	Issue(ctx context.Context, userID string) (session.Session, error)
}

type Handler struct {
	handshake    HandshakeClient
	profiles     ProfileFetcher
	states       *linkstate.Manager
	resolver     resolver.Resolver
	issuer       SessionIssuer
	sessionStore session.Store
	authMW       *middleware.AuthMiddleware
	dir          directory.Directory
	baseURL      string
}

func NewHandler(
	handshake HandshakeClient,
	profiles ProfileFetcher,
	states *linkstate.Manager,
	identityResolver resolver.Resolver,
	sessionIssuer SessionIssuer,
	sessionStore session.Store,
	authMW *middleware.AuthMiddleware,
	dir directory.Directory,
	baseURL string,
) *Handler {
	return &Handler{
		handshake:    handshake,
		profiles:     profiles,
		states:       states,
		resolver:     identityResolver,
		issuer:       sessionIssuer,
		sessionStore: sessionStore,
		authMW:       authMW,
		dir:          dir,
		baseURL:      baseURL,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/steam/start", h.SteamStart)
	r.GET("/auth/steam/callback", h.SteamCallback)

	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
}

// RegisterProtectedRoutes mounts routes that require a session.
func (h *Handler) RegisterProtectedRoutes(g *gin.RouterGroup) {
	g.GET("/me", h.Me)
	g.POST("/steam/unlink", h.SteamUnlink)
}

// sanitizeReturnTo keeps post-auth redirects inside the app. Anything
// that is not a plain absolute path falls back to the root.
func sanitizeReturnTo(raw string) string {
	if raw == "" || raw[0] != '/' {
		return "/"
	}
	if len(raw) > 1 && raw[1] == '/' { // protocol-relative escape
		return "/"
	}
	return raw
}
