package session

import "errors"

var (
	// ErrCredentialsMissing is returned when a connect attempt cannot resolve
	// tunnel credentials. No RPC is issued in that case.
	ErrCredentialsMissing = errors.New("tunnel credentials are not available")

	// ErrSubscriptionExpired is returned when a manual connect is attempted
	// with an expired subscription.
	ErrSubscriptionExpired = errors.New("subscription has expired")

	// ErrAlreadyConnected is returned when a connect is attempted while a
	// tunnel is already up. Connected never moves to Connecting; the caller
	// must disconnect first.
	ErrAlreadyConnected = errors.New("already connected: disconnect first")

	// ErrAttemptTimeout is recorded when the watchdog resolves an attempt
	// that never left Connecting within its budget.
	ErrAttemptTimeout = errors.New("attempt timed out waiting for the tunnel")

	// ErrKillSwitchPrecondition is returned when a remote server configuration
	// cannot be fetched because the kill switch is active and no tunnel is up
	// to fetch it through. The current selection is left unchanged.
	ErrKillSwitchPrecondition = errors.New("kill switch is active: connect to the current server first so the new configuration can be fetched through the tunnel")
)
