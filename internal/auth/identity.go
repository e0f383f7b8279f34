// Package auth holds the identity types shared by the Steam handshake
// client, the resolver, and the HTTP handlers.
package auth

// Identity is a verified external identity as asserted by Steam.
// It contains facts only, no decisions, and must never be constructed
// from an unverified callback.
type Identity struct {
	SteamID     string // provider-scoped 64-bit ID, digits only
	DisplayName string // persona name from the profile read
	AvatarURL   string
}
