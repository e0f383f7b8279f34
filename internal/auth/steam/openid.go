// Package steam implements the OpenID 2.0 handshake against Steam and the
// Web API reads the rest of the app depends on. The handshake is the only
// place callback parameters are trusted; everything downstream receives a
// verified Steam ID or nothing.
package steam

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Yunichie/Play-This-Next/internal/logger"
)

const (
	openIDEndpoint = "https://steamcommunity.com/openid/login"
	openIDNS       = "http://specs.openid.net/auth/2.0"
	identifierSel  = "http://specs.openid.net/auth/2.0/identifier_select"
)

// claimedIDPattern is the only identifier shape Steam issues. Anything
// else fails closed as a malformed assertion.
var claimedIDPattern = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d+)$`)

// OpenIDClient drives the checkid_setup redirect and the
// check_authentication verification round trip.
type OpenIDClient struct {
	endpoint string
	http     *http.Client
}

func NewOpenIDClient() *OpenIDClient {
	return &OpenIDClient{
		endpoint: openIDEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// NewOpenIDClientWithEndpoint exists for tests that stand in for Steam.
func NewOpenIDClientWithEndpoint(endpoint string, client *http.Client) *OpenIDClient {
	return &OpenIDClient{endpoint: endpoint, http: client}
}

// BuildAuthorizationRequest returns the redirect URL that sends the user
// to Steam. The state token rides in the return_to query so it survives
// the round trip without server-side storage.
func (c *OpenIDClient) BuildAuthorizationRequest(stateToken, returnEndpoint, realm string) (string, error) {
	ret, err := url.Parse(returnEndpoint)
	if err != nil {
		return "", fmt.Errorf("steam: return endpoint: %w", err)
	}
	q := ret.Query()
	q.Set("state", stateToken)
	ret.RawQuery = q.Encode()

	params := url.Values{}
	params.Set("openid.ns", openIDNS)
	params.Set("openid.mode", "checkid_setup")
	params.Set("openid.return_to", ret.String())
	params.Set("openid.realm", realm)
	params.Set("openid.identity", identifierSel)
	params.Set("openid.claimed_id", identifierSel)

	return c.endpoint + "?" + params.Encode(), nil
}

// VerifyAssertion re-poses the callback parameters to Steam with the mode
// switched to check_authentication and returns the verified Steam ID.
// The response is parsed as OpenID key-value pairs and the is_valid field
// is checked structurally; a substring match is not enough.
func (c *OpenIDClient) VerifyAssertion(ctx context.Context, params url.Values) (string, error) {
	claimedID := params.Get("openid.claimed_id")
	if claimedID == "" || params.Get("openid.sig") == "" || params.Get("openid.signed") == "" {
		return "", ErrMalformedAssertion
	}

	m := claimedIDPattern.FindStringSubmatch(claimedID)
	if m == nil {
		return "", ErrMalformedAssertion
	}
	steamID := m[1]

	verification := url.Values{}
	for key, values := range params {
		if !strings.HasPrefix(key, "openid.") || len(values) == 0 {
			continue
		}
		verification.Set(key, values[0])
	}
	verification.Set("openid.mode", "check_authentication")

	fields, err := c.postCheckAuthentication(ctx, verification)
	if err != nil {
		return "", err
	}

	if fields["is_valid"] != "true" {
		return "", ErrProviderRejected
	}

	return steamID, nil
}

// postCheckAuthentication performs the verification POST with one bounded
// retry on transport failure. A non-2xx answer or an unparseable body is
// not retried; Steam spoke, it just said no.
func (c *OpenIDClient) postCheckAuthentication(ctx context.Context, form url.Values) (map[string]string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fields, err := c.postOnce(ctx, form)
		if err == nil {
			return fields, nil
		}
		if err != ErrNetworkFailure {
			return nil, err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := bo.NextBackOff()
		logger.Warn("steam verification transport failure, retrying", map[string]any{
			"attempt":  attempt,
			"retry_in": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ErrNetworkFailure
		}
	}

	return nil, lastErr
}

func (c *OpenIDClient) postOnce(ctx context.Context, form url.Values) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("steam: build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ErrNetworkFailure
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrProviderRejected
	}

	fields, err := parseKeyValueForm(resp.Body)
	if err != nil {
		return nil, ErrMalformedAssertion
	}

	return fields, nil
}

// parseKeyValueForm reads an OpenID key-value response: one key:value pair
// per line.
func parseKeyValueForm(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)

	scanner := bufio.NewScanner(io.LimitReader(r, 64*1024))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("steam: bad key-value line %q", line)
		}
		fields[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("steam: empty verification response")
	}

	return fields, nil
}
