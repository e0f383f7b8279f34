// Package linkstate issues and verifies the anti-forgery state that
// correlates one Steam login attempt across the external redirect. The
// state travels in a signed, HttpOnly cookie; the server keeps nothing.
package linkstate

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Mode distinguishes a fresh login from linking Steam to the current account.
type Mode string

const (
	ModeLogin Mode = "login"
	ModeLink  Mode = "link"
)

// TTL bounds one full redirect round trip. Steam's login page can sit open
// for a while, so this is generous compared to a plain CSRF token.
const TTL = 10 * time.Minute

// ErrInvalidState covers every verification failure: absent, expired,
// tampered, or mismatched state. Callers must abort the handshake.
var ErrInvalidState = errors.New("linkstate: invalid or expired state")

// State is one handshake attempt. Token is the only value echoed through
// the provider; Mode and ReturnTo ride along in the signed slot.
type State struct {
	Token    string
	Mode     Mode
	ReturnTo string
	IssuedAt time.Time
}

type stateClaims struct {
	Token    string `json:"tok"`
	Mode     string `json:"mode"`
	ReturnTo string `json:"ret"`
	jwt.RegisteredClaims
}

// Manager signs and verifies link states with the server secret.
type Manager struct {
	key []byte
	now func() time.Time
}

func NewManager(serverSecret string) (*Manager, error) {
	if serverSecret == "" {
		return nil, errors.New("linkstate: server secret is empty")
	}
	return &Manager{key: []byte(serverSecret), now: time.Now}, nil
}

// Issue creates a new state with a 256-bit random token and returns both
// the state and its signed cookie form.
func (m *Manager) Issue(mode Mode, returnTo string) (State, string, error) {
	if mode != ModeLogin && mode != ModeLink {
		return State{}, "", fmt.Errorf("linkstate: unknown mode %q", mode)
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return State{}, "", fmt.Errorf("linkstate: token: %w", err)
	}

	now := m.now()
	st := State{
		Token:    base64.RawURLEncoding.EncodeToString(b),
		Mode:     mode,
		ReturnTo: returnTo,
		IssuedAt: now,
	}

	claims := stateClaims{
		Token:    st.Token,
		Mode:     string(st.Mode),
		ReturnTo: st.ReturnTo,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return State{}, "", fmt.Errorf("linkstate: sign: %w", err)
	}

	return st, signed, nil
}

// Verify checks the token supplied on the callback against the signed slot
// value. It succeeds only when both are present, the signature and expiry
// hold, and the tokens match in constant time. The caller must clear the
// slot unconditionally after this returns, success or failure.
func (m *Manager) Verify(suppliedToken, storedSlot string) (State, error) {
	if suppliedToken == "" || storedSlot == "" {
		return State{}, ErrInvalidState
	}

	var claims stateClaims
	_, err := jwt.ParseWithClaims(storedSlot, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("linkstate: unexpected signing method %v", t.Header["alg"])
		}
		return m.key, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return State{}, ErrInvalidState
	}

	if !hmac.Equal([]byte(suppliedToken), []byte(claims.Token)) {
		return State{}, ErrInvalidState
	}

	st := State{
		Token:    claims.Token,
		Mode:     Mode(claims.Mode),
		ReturnTo: claims.ReturnTo,
	}
	if claims.IssuedAt != nil {
		st.IssuedAt = claims.IssuedAt.Time
	}
	if st.Mode != ModeLogin && st.Mode != ModeLink {
		return State{}, ErrInvalidState
	}

	return st, nil
}
