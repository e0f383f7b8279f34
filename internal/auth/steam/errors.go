package steam

import "errors"

var (
	// ErrProviderRejected means Steam answered the check_authentication
	// call but declared the assertion invalid. Terminal for the attempt.
	ErrProviderRejected = errors.New("steam: provider rejected assertion")

	// ErrMalformedAssertion covers missing or malformed callback
	// parameters, including a claimed_id that is not a Steam identity URL.
	ErrMalformedAssertion = errors.New("steam: malformed assertion")

	// ErrNetworkFailure is a transport-level failure talking to Steam.
	// It is retried once with backoff before being surfaced.
	ErrNetworkFailure = errors.New("steam: network failure")

	// ErrProfileUnavailable means the profile read returned no player.
	ErrProfileUnavailable = errors.New("steam: profile unavailable")
)
