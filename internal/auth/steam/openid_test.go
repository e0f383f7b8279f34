package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCallbackParams(claimedID string) url.Values {
	return url.Values{
		"openid.ns":         {"http://specs.openid.net/auth/2.0"},
		"openid.mode":       {"id_res"},
		"openid.claimed_id": {claimedID},
		"openid.identity":   {claimedID},
		"openid.sig":        {"c2lnbmF0dXJl"},
		"openid.signed":     {"signed,op_endpoint,claimed_id,identity,return_to,response_nonce"},
		"openid.return_to":  {"https://app.example/auth/steam/callback?state=abc"},
	}
}

func TestBuildAuthorizationRequest(t *testing.T) {
	c := NewOpenIDClient()

	raw, err := c.BuildAuthorizationRequest("tok123",
		"https://app.example/auth/steam/callback", "https://app.example")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "steamcommunity.com", u.Host)
	assert.Equal(t, "/openid/login", u.Path)

	q := u.Query()
	assert.Equal(t, "checkid_setup", q.Get("openid.mode"))
	assert.Equal(t, "http://specs.openid.net/auth/2.0", q.Get("openid.ns"))
	assert.Equal(t, "https://app.example", q.Get("openid.realm"))
	assert.Equal(t, "http://specs.openid.net/auth/2.0/identifier_select", q.Get("openid.identity"))
	assert.Equal(t, q.Get("openid.identity"), q.Get("openid.claimed_id"))

	ret, err := url.Parse(q.Get("openid.return_to"))
	require.NoError(t, err)
	assert.Equal(t, "tok123", ret.Query().Get("state"))
}

func TestVerifyAssertionSuccess(t *testing.T) {
	var seen url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = r.PostForm
		w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:true\n"))
	}))
	defer srv.Close()

	c := NewOpenIDClientWithEndpoint(srv.URL, srv.Client())
	steamID, err := c.VerifyAssertion(context.Background(),
		validCallbackParams("https://steamcommunity.com/openid/id/76561197960287930"))

	require.NoError(t, err)
	assert.Equal(t, "76561197960287930", steamID)
	// the assertion must be re-posed verbatim with only the mode switched
	assert.Equal(t, "check_authentication", seen.Get("openid.mode"))
	assert.Equal(t, "c2lnbmF0dXJl", seen.Get("openid.sig"))
}

func TestVerifyAssertionProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:false\n"))
	}))
	defer srv.Close()

	c := NewOpenIDClientWithEndpoint(srv.URL, srv.Client())
	_, err := c.VerifyAssertion(context.Background(),
		validCallbackParams("https://steamcommunity.com/openid/id/76561197960287930"))

	assert.ErrorIs(t, err, ErrProviderRejected)
}

func TestVerifyAssertionIsValidSubstringIsNotEnough(t *testing.T) {
	// "is_valid:true" appearing inside another field must not count
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nnote:is_valid:true\nis_valid:false\n"))
	}))
	defer srv.Close()

	c := NewOpenIDClientWithEndpoint(srv.URL, srv.Client())
	_, err := c.VerifyAssertion(context.Background(),
		validCallbackParams("https://steamcommunity.com/openid/id/76561197960287930"))

	assert.ErrorIs(t, err, ErrProviderRejected)
}

func TestVerifyAssertionRejectsMissingFields(t *testing.T) {
	c := NewOpenIDClientWithEndpoint("http://unreachable.invalid", http.DefaultClient)

	for _, missing := range []string{"openid.claimed_id", "openid.sig", "openid.signed"} {
		params := validCallbackParams("https://steamcommunity.com/openid/id/76561197960287930")
		params.Del(missing)
		_, err := c.VerifyAssertion(context.Background(), params)
		assert.ErrorIs(t, err, ErrMalformedAssertion, "missing %s", missing)
	}
}

func TestVerifyAssertionRejectsForeignClaimedID(t *testing.T) {
	c := NewOpenIDClientWithEndpoint("http://unreachable.invalid", http.DefaultClient)

	for _, claimed := range []string{
		"https://evil.example/openid/id/76561197960287930",
		"https://steamcommunity.com/openid/id/notanumber",
		"https://steamcommunity.com/openid/id/123/extra",
		"https://steamcommunity.com/profiles/76561197960287930",
	} {
		_, err := c.VerifyAssertion(context.Background(), validCallbackParams(claimed))
		assert.ErrorIs(t, err, ErrMalformedAssertion, "claimed_id %s", claimed)
	}
}

func TestVerifyAssertionRetriesTransportFailureOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// kill the connection mid-response to force a transport error
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:true\n"))
	}))
	defer srv.Close()

	c := NewOpenIDClientWithEndpoint(srv.URL, srv.Client())
	steamID, err := c.VerifyAssertion(context.Background(),
		validCallbackParams("https://steamcommunity.com/openid/id/76561197960287930"))

	require.NoError(t, err)
	assert.Equal(t, "76561197960287930", steamID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestVerifyAssertionDoesNotRetryProviderRejection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewOpenIDClientWithEndpoint(srv.URL, srv.Client())
	_, err := c.VerifyAssertion(context.Background(),
		validCallbackParams("https://steamcommunity.com/openid/id/76561197960287930"))

	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseKeyValueForm(t *testing.T) {
	fields, err := parseKeyValueForm(strings.NewReader(
		"ns:http://specs.openid.net/auth/2.0\nis_valid:true\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "true", fields["is_valid"])
	// value keeps everything after the first colon
	assert.Equal(t, "http://specs.openid.net/auth/2.0", fields["ns"])

	_, err = parseKeyValueForm(strings.NewReader("no colon here"))
	require.Error(t, err)

	_, err = parseKeyValueForm(strings.NewReader(""))
	require.Error(t, err)
}
