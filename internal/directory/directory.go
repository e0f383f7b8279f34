package directory

import (
	"context"
	"errors"
)

var (
	// ErrSteamIDTaken reports that another user already claims the Steam ID.
	// The postgres implementation translates the unique-constraint violation
	// into this error so callers never see a raw storage failure.
	ErrSteamIDTaken = errors.New("directory: steam id already claimed")

	// ErrInvalidCredentials covers both unknown users and secret mismatches.
	ErrInvalidCredentials = errors.New("directory: invalid credentials")

	ErrNotFound = errors.New("directory: user not found")

	ErrEmailTaken = errors.New("directory: email already registered")
)

// Profile carries the provider-issued display fields attached to a user.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// User is the durable directory record. SteamID is empty for accounts that
// never linked; at most one user may hold a given Steam ID.
type User struct {
	ID            string
	Email         string
	SteamID       string
	DisplayName   string
	AvatarURL     string
	TotalGames    int
	TotalPlaytime int
}

// Directory is the user store consumed by the identity resolver and the
// session issuer. Implementations own the steam_id uniqueness constraint.
type Directory interface {
	FindBySteamID(ctx context.Context, steamID string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)

	// CreateWithSteamID provisions a user whose only credential is the
	// derived secret. Returns ErrSteamIDTaken when the ID is already claimed.
	CreateWithSteamID(ctx context.Context, steamID string, profile Profile, secret string) (*User, error)

	// AttachSteamID links a Steam ID to an existing user and refreshes the
	// profile fields. Returns ErrSteamIDTaken when another user claims it.
	AttachSteamID(ctx context.Context, userID, steamID string, profile Profile) error

	DetachSteamID(ctx context.Context, userID string) error

	// Authenticate verifies the secret for a user ID. Used by the session
	// issuer with derived credentials; failure means ErrInvalidCredentials.
	Authenticate(ctx context.Context, userID, secret string) error

	CreateWithEmail(ctx context.Context, email, password string) (string, error)
	AuthenticateEmail(ctx context.Context, email, password string) (string, error)

	UpdateAggregates(ctx context.Context, userID string, totalGames, totalPlaytime int) error
}
