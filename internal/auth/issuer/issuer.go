// Package issuer exchanges a resolved identity for an application
// session. It is the only writer of new sessions on the Steam path.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yunichie/Play-This-Next/internal/auth/credentials"
	"github.com/Yunichie/Play-This-Next/internal/directory"
	"github.com/Yunichie/Play-This-Next/internal/session"
)

// SessionLifetime is the fixed, finite lifetime of an issued session.
const SessionLifetime = 24 * time.Hour

// ErrIssuanceFailed wraps every failure on this path: directory
// unreachable, derived secret mismatch after a manual credential
// rotation, or the session store refusing the write. Terminal for the
// attempt; callers never get a degraded session.
var ErrIssuanceFailed = errors.New("issuer: session issuance failed")

type Issuer struct {
	dir     directory.Directory
	deriver *credentials.Deriver
	store   session.Store
}

func New(dir directory.Directory, deriver *credentials.Deriver, store session.Store) *Issuer {
	return &Issuer{dir: dir, deriver: deriver, store: store}
}

// IssueForSteam authenticates userID against the directory with the
// derived credential for steamID, then creates a session. Used for the
// Provisioned and SignedIn outcomes; Linked keeps the caller's existing
// session and never reaches here.
func (i *Issuer) IssueForSteam(ctx context.Context, userID, steamID string) (session.Session, error) {
	secret, err := i.deriver.Derive(steamID)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	if err := i.dir.Authenticate(ctx, userID, secret); err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	return i.Issue(ctx, userID)
}

// Issue creates a session for an already-authenticated user ID.
func (i *Issuer) Issue(ctx context.Context, userID string) (session.Session, error) {
	sessionID, err := session.GenerateID()
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	now := time.Now()
	sess := session.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionLifetime),
	}

	if err := i.store.Create(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	return sess, nil
}
