package protocol

// Error codes for protocol responses.
const (
	// ErrCodeInvalidRequest indicates the request was malformed.
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	// ErrCodeInvalidCommand indicates an unknown command was sent.
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	// ErrCodeInvalidParams indicates the command parameters were invalid.
	ErrCodeInvalidParams = "INVALID_PARAMS"
	// ErrCodeInvalidState indicates the operation is not allowed in the current state.
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeConnectFailed indicates the backend could not start the tunnel.
	ErrCodeConnectFailed = "CONNECT_FAILED"
	// ErrCodeDisconnectFailed indicates the backend could not tear the tunnel down.
	ErrCodeDisconnectFailed = "DISCONNECT_FAILED"
	// ErrCodeKillSwitchFailed indicates the firewall rules could not be applied.
	ErrCodeKillSwitchFailed = "KILLSWITCH_FAILED"
	// ErrCodePrefetchFailed indicates the config download through the tunnel failed.
	ErrCodePrefetchFailed = "PREFETCH_FAILED"
	// ErrCodeInternalError indicates an unexpected internal error.
	ErrCodeInternalError = "INTERNAL_ERROR"
)
