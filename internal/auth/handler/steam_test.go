package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yunichie/Play-This-Next/internal/auth"
	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
	"github.com/Yunichie/Play-This-Next/internal/auth/resolver"
	"github.com/Yunichie/Play-This-Next/internal/auth/steam"
	"github.com/Yunichie/Play-This-Next/internal/middleware"
	"github.com/Yunichie/Play-This-Next/internal/session"
)

type fakeHandshake struct {
	verifyCalls   int
	verifySteamID string
	verifyErr     error
}

func (f *fakeHandshake) BuildAuthorizationRequest(stateToken, returnEndpoint, realm string) (string, error) {
	return "https://steam.example/authorize?token=" + url.QueryEscape(stateToken), nil
}

func (f *fakeHandshake) VerifyAssertion(_ context.Context, _ url.Values) (string, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	return f.verifySteamID, nil
}

type fakeProfiles struct {
	err error
}

func (f *fakeProfiles) GetPlayerSummary(_ context.Context, steamID string) (*steam.Player, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &steam.Player{SteamID: steamID, PersonaName: "Gamer", AvatarFull: "https://cdn/a.jpg"}, nil
}

type spyResolver struct {
	calls        int
	lastMode     linkstate.Mode
	lastAuthedID string
	result       resolver.Result
	err          error
}

func (s *spyResolver) Resolve(_ context.Context, _ *auth.Identity, mode linkstate.Mode, authedUserID string) (resolver.Result, error) {
	s.calls++
	s.lastMode = mode
	s.lastAuthedID = authedUserID
	return s.result, s.err
}

type fakeIssuer struct {
	calls int
	err   error
}

func (f *fakeIssuer) IssueForSteam(_ context.Context, userID, _ string) (session.Session, error) {
	f.calls++
	if f.err != nil {
		return session.Session{}, f.err
	}
	return session.Session{
		SessionID: "new-session",
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeIssuer) Issue(ctx context.Context, userID string) (session.Session, error) {
	return f.IssueForSteam(ctx, userID, "")
}

type memStore struct {
	sessions map[string]session.Session
}

func newMemStore() *memStore { return &memStore{sessions: map[string]session.Session{}} }

func (m *memStore) Create(_ context.Context, s session.Session) error {
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*session.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type handlerFixture struct {
	handler   *Handler
	router    *gin.Engine
	handshake *fakeHandshake
	profiles  *fakeProfiles
	resolver  *spyResolver
	issuer    *fakeIssuer
	states    *linkstate.Manager
	store     *memStore
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	states, err := linkstate.NewManager("test-server-secret")
	require.NoError(t, err)

	f := &handlerFixture{
		handshake: &fakeHandshake{verifySteamID: "76561197960287930"},
		profiles:  &fakeProfiles{},
		resolver:  &spyResolver{},
		issuer:    &fakeIssuer{},
		states:    states,
		store:     newMemStore(),
	}

	f.handler = NewHandler(
		f.handshake, f.profiles, f.states, f.resolver, f.issuer,
		f.store, middleware.NewAuthMiddleware(f.store), nil,
		"https://app.example",
	)

	f.router = gin.New()
	f.handler.RegisterRoutes(f.router)
	return f
}

// signIn plants a valid session in the store and returns its cookie.
func (f *handlerFixture) signIn(userID string) *http.Cookie {
	f.store.sessions["sess-authed"] = session.Session{
		SessionID: "sess-authed",
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return &http.Cookie{Name: session.CookieName, Value: "sess-authed"}
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// startCallback issues a real link state and builds the callback request
// the way a returning browser would present it.
func (f *handlerFixture) startCallback(t *testing.T, mode linkstate.Mode, returnTo string, extra ...*http.Cookie) *http.Request {
	t.Helper()
	st, slot, err := f.states.Issue(mode, returnTo)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/auth/steam/callback?state="+url.QueryEscape(st.Token)+
			"&openid.claimed_id=https%3A%2F%2Fsteamcommunity.com%2Fopenid%2Fid%2F76561197960287930", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: slot})
	for _, c := range extra {
		req.AddCookie(c)
	}
	return req
}

func TestSteamStartRedirectsWithStateCookie(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/steam/start?return_to=/library", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "https://steam.example/authorize?token=")

	state := cookieNamed(t, rec, stateCookieName)
	require.NotNil(t, state)
	assert.NotEmpty(t, state.Value)
	assert.True(t, state.HttpOnly)
	assert.True(t, state.Secure)

	// the slot must verify against the token embedded in the redirect
	token, err := url.QueryUnescape(loc[len("https://steam.example/authorize?token="):])
	require.NoError(t, err)
	st, err := f.states.Verify(token, state.Value)
	require.NoError(t, err)
	assert.Equal(t, linkstate.ModeLogin, st.Mode)
	assert.Equal(t, "/library", st.ReturnTo)
}

func TestSteamStartLinkWithoutSessionFailsEarly(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/steam/start?mode=link", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/settings?error=not_authenticated", rec.Header().Get("Location"))
	assert.Nil(t, cookieNamed(t, rec, stateCookieName))
}

func TestCallbackInvalidStateTouchesNothing(t *testing.T) {
	f := newFixture(t)

	// forged token, no slot cookie
	req := httptest.NewRequest(http.MethodGet, "/auth/steam/callback?state=forged", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=invalid_state", rec.Header().Get("Location"))

	// the provider was never consulted and no identity was resolved
	assert.Equal(t, 0, f.handshake.verifyCalls)
	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, 0, f.issuer.calls)
}

func TestCallbackLoginSuccessIssuesSession(t *testing.T) {
	f := newFixture(t)
	f.resolver.result = resolver.Result{Outcome: resolver.OutcomeSignedIn, UserID: "user-1"}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, f.startCallback(t, linkstate.ModeLogin, "/library"))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/library", rec.Header().Get("Location"))
	assert.Equal(t, linkstate.ModeLogin, f.resolver.lastMode)
	assert.Empty(t, f.resolver.lastAuthedID)
	assert.Equal(t, 1, f.issuer.calls)

	sess := cookieNamed(t, rec, session.CookieName)
	require.NotNil(t, sess)
	assert.Equal(t, "new-session", sess.Value)
}

func TestCallbackClearsStateCookieOnEveryOutcome(t *testing.T) {
	f := newFixture(t)
	f.resolver.result = resolver.Result{Outcome: resolver.OutcomeSignedIn, UserID: "user-1"}

	for name, req := range map[string]*http.Request{
		"success":       f.startCallback(t, linkstate.ModeLogin, "/"),
		"invalid state": httptest.NewRequest(http.MethodGet, "/auth/steam/callback?state=bad", nil),
	} {
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		cleared := cookieNamed(t, rec, stateCookieName)
		require.NotNil(t, cleared, name)
		assert.Empty(t, cleared.Value, name)
		assert.Negative(t, cleared.MaxAge, name)
	}
}

func TestCallbackLinkSuccessKeepsExistingSession(t *testing.T) {
	f := newFixture(t)
	f.resolver.result = resolver.Result{Outcome: resolver.OutcomeLinked, UserID: "user-1"}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, f.startCallback(t, linkstate.ModeLink, "/", f.signIn("user-1")))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/settings?steam_link=success", rec.Header().Get("Location"))
	assert.Equal(t, "user-1", f.resolver.lastAuthedID)
	// linking never mints a new session
	assert.Equal(t, 0, f.issuer.calls)
	assert.Nil(t, cookieNamed(t, rec, session.CookieName))
}

func TestCallbackLinkConflictRedirects(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = resolver.ErrConflict

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, f.startCallback(t, linkstate.ModeLink, "/", f.signIn("user-2")))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/settings?error=already_linked", rec.Header().Get("Location"))
	assert.Equal(t, 0, f.issuer.calls)
}

func TestCallbackAssertionFailuresMapToCodes(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"provider rejected":   {steam.ErrProviderRejected, "provider_rejected"},
		"malformed assertion": {steam.ErrMalformedAssertion, "malformed_assertion"},
		"network failure":     {steam.ErrNetworkFailure, "network_failure"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.handshake.verifyErr = tc.err

			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, f.startCallback(t, linkstate.ModeLogin, "/"))

			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login?error="+tc.code, rec.Header().Get("Location"))
			assert.Equal(t, 0, f.resolver.calls)
		})
	}
}

func TestCallbackProfileFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.profiles.err = steam.ErrProfileUnavailable

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, f.startCallback(t, linkstate.ModeLogin, "/"))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=profile_fetch_failed", rec.Header().Get("Location"))
	assert.Equal(t, 0, f.resolver.calls)
}

func TestSanitizeReturnTo(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/library":                "/library",
		"/settings?tab=steam":     "/settings?tab=steam",
		"https://evil.example/":   "/",
		"//evil.example/phish":    "/",
		"javascript:alert(1)":     "/",
		"\\evil.example":          "/",
		"/deeply/nested/path#top": "/deeply/nested/path#top",
	}

	for in, want := range cases {
		assert.Equal(t, want, sanitizeReturnTo(in), "input %q", in)
	}
}
