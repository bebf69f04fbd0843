// Package protocol defines the message types for communication between
// the stellar-desktop client and the privileged backend daemon.
//
// The protocol uses newline-delimited JSON (NDJSON) over a UNIX socket.
// Each message is a single JSON object terminated by a newline character.
package protocol

import (
	"encoding/json"
)

// MessageType identifies the type of message.
type MessageType string

const (
	// MessageTypeRequest is sent from client to backend.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse is sent from backend to client in reply to a request.
	MessageTypeResponse MessageType = "response"
	// MessageTypeEvent is broadcast from backend to all connected clients.
	MessageTypeEvent MessageType = "event"
)

// Command identifies the operation to perform.
type Command string

const (
	// CommandConnect starts the tunnel with the given configuration.
	CommandConnect Command = "connect"
	// CommandDisconnect tears the tunnel down (best-effort).
	CommandDisconnect Command = "disconnect"
	// CommandStatus queries the backend-reported tunnel status.
	CommandStatus Command = "status"
	// CommandKillSwitchQuery queries whether the kill switch is active.
	CommandKillSwitchQuery Command = "killswitch_query"
	// CommandKillSwitchSet enables or disables the kill switch.
	CommandKillSwitchSet Command = "killswitch_set"
	// CommandCrashRecoveryQuery queries whether crash recovery is active.
	CommandCrashRecoveryQuery Command = "crashrecovery_query"
	// CommandCrashRecoverySet enables or disables crash recovery.
	CommandCrashRecoverySet Command = "crashrecovery_set"
	// CommandPrefetchConfig downloads a remote server configuration through
	// the active tunnel and returns a local path.
	CommandPrefetchConfig Command = "prefetch_config"
)

// EventName identifies the type of event.
type EventName string

const (
	// EventStatusChanged reports a tunnel status change. Its payload uses the
	// same status vocabulary as CommandStatus.
	EventStatusChanged EventName = "status_changed"
	// EventLogLine carries a diagnostic line from the backend.
	EventLogLine EventName = "log_line"
)

// Backend status payload vocabulary. Error payloads are prefixed with
// StatusErrorPrefix followed by a reason.
const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusErrorPrefix  = "error:"
)

// Request represents a command sent from client to backend.
type Request struct {
	// ID is a unique identifier for correlating responses.
	ID string `json:"id"`
	// Type is always "request".
	Type MessageType `json:"type"`
	// Command is the operation to perform.
	Command Command `json:"command"`
	// Params contains command-specific parameters.
	Params json.RawMessage `json:"params"`
}

// Response represents a reply from backend to client.
type Response struct {
	// ID matches the request ID.
	ID string `json:"id"`
	// Type is always "response".
	Type MessageType `json:"type"`
	// Success indicates whether the command succeeded.
	Success bool `json:"success"`
	// Result contains command-specific result data (if Success is true).
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details (if Success is false).
	Error *ErrorInfo `json:"error,omitempty"`
}

// Event represents an asynchronous notification from backend to clients.
type Event struct {
	// Type is always "event".
	Type MessageType `json:"type"`
	// Name identifies the event type.
	Name EventName `json:"name"`
	// Data contains event-specific information.
	Data json.RawMessage `json:"data"`
}

// ErrorInfo contains details about an error.
type ErrorInfo struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ConnectParams contains parameters for the connect command.
type ConnectParams struct {
	// ConfigLocator is a local path or remote URL of the server configuration.
	ConfigLocator string `json:"config_locator"`
	// Username for tunnel authentication.
	Username string `json:"username"`
	// Password for tunnel authentication.
	Password string `json:"password"`
}

// DisconnectParams contains parameters for the disconnect command.
// Currently empty but defined for future extensibility.
type DisconnectParams struct{}

// StatusParams contains parameters for the status command.
// Currently empty but defined for future extensibility.
type StatusParams struct{}

// StatusResult contains the result of a status query.
type StatusResult struct {
	// Status is the backend-reported tunnel status.
	Status string `json:"status"`
}

// KillSwitchQueryParams contains parameters for the killswitch_query command.
type KillSwitchQueryParams struct{}

// KillSwitchSetParams contains parameters for the killswitch_set command.
type KillSwitchSetParams struct {
	// Enabled is the desired kill switch state.
	Enabled bool `json:"enabled"`
	// ConfigLocator is the configuration whose VPN remotes stay reachable
	// while the switch is active. Required when enabling.
	ConfigLocator string `json:"config_locator,omitempty"`
	// AuthToken optionally authorizes a direct config fetch by the backend.
	AuthToken string `json:"auth_token,omitempty"`
}

// ToggleResult contains the result of a kill-switch or crash-recovery query.
type ToggleResult struct {
	// Enabled is the current state of the toggle.
	Enabled bool `json:"enabled"`
}

// CrashRecoveryQueryParams contains parameters for the crashrecovery_query command.
type CrashRecoveryQueryParams struct{}

// CrashRecoverySetParams contains parameters for the crashrecovery_set command.
type CrashRecoverySetParams struct {
	// Enabled is the desired crash recovery state.
	Enabled bool `json:"enabled"`
}

// PrefetchConfigParams contains parameters for the prefetch_config command.
type PrefetchConfigParams struct {
	// RemoteLocator is the URL to download through the active tunnel.
	RemoteLocator string `json:"remote_locator"`
}

// PrefetchConfigResult contains the result of a prefetch_config command.
type PrefetchConfigResult struct {
	// LocalPath is where the backend cached the downloaded configuration.
	LocalPath string `json:"local_path"`
}

// StatusChangedData contains data for status_changed events.
type StatusChangedData struct {
	// Status uses the same vocabulary as StatusResult.Status.
	Status string `json:"status"`
}

// LogLineData contains data for log_line events.
type LogLineData struct {
	// Line is a single diagnostic line from the backend.
	Line string `json:"line"`
}

// NewRequest creates a new request with the given command and parameters.
func NewRequest(id string, cmd Command, params interface{}) (*Request, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Request{
		ID:      id,
		Type:    MessageTypeRequest,
		Command: cmd,
		Params:  paramsJSON,
	}, nil
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result interface{}) (*Response, error) {
	var resultJSON json.RawMessage
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		ID:      id,
		Type:    MessageTypeResponse,
		Success: true,
		Result:  resultJSON,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code string, message string) *Response {
	return &Response{
		ID:      id,
		Type:    MessageTypeResponse,
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewEvent creates a new event with the given name and data.
func NewEvent(name EventName, data interface{}) (*Event, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type: MessageTypeEvent,
		Name: name,
		Data: dataJSON,
	}, nil
}
