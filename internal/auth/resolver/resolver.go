package resolver

import (
	"context"
	"errors"

	"github.com/Yunichie/Play-This-Next/internal/auth"
	"github.com/Yunichie/Play-This-Next/internal/auth/linkstate"
)

// Outcome is a terminal state of one resolved handshake.
type Outcome int

const (
	// OutcomeProvisioned: login with a never-seen Steam ID created a user.
	OutcomeProvisioned Outcome = iota
	// OutcomeSignedIn: login matched an existing user.
	OutcomeSignedIn
	// OutcomeLinked: the Steam ID was attached to the caller's account.
	OutcomeLinked
	// OutcomeAlreadyLinkedToSelf: the caller re-linked their own Steam ID.
	// Reported distinctly from a conflict so the caller can say so nicely.
	OutcomeAlreadyLinkedToSelf
)

var (
	// ErrNotAuthenticated: link mode requires a signed-in caller.
	ErrNotAuthenticated = errors.New("resolver: link requires authentication")

	// ErrConflict: the Steam ID belongs to a different user. Neither
	// account is mutated.
	ErrConflict = errors.New("resolver: steam id linked to another account")
)

// Result is what the session issuer needs: who the user is and how the
// decision was reached.
type Result struct {
	Outcome Outcome
	UserID  string
}

// Resolver decides which internal user a verified external identity
// belongs to. It is the ONLY place where identity-to-user mapping lives;
// no handler may special-case the outcome.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity, mode linkstate.Mode, authedUserID string) (Result, error)
}
