// Package backend provides the client for communicating with the privileged
// backend daemon that owns the tunnel and the firewall rules.
package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stellar-vpn/stellar-desktop/internal/backend/protocol"
)

const (
	// DefaultSocketPath is the default path of the backend's UNIX socket.
	DefaultSocketPath = "/run/stellar-vpn/backend.sock"
	// DefaultTimeout for RPC calls.
	DefaultTimeout = 30 * time.Second
)

// ErrBackendNotAvailable is returned when the backend daemon is not running.
var ErrBackendNotAvailable = errors.New("backend daemon not available")

// Client talks NDJSON to the backend daemon. Requests are correlated with
// responses by id; events are dispatched to registered callbacks.
type Client struct {
	socketPath string
	conn       net.Conn
	reader     *bufio.Reader

	mu        sync.RWMutex
	onStatus  func(payload string)
	onLogLine func(line string)
	ready     bool

	// writeMu serializes NDJSON writes to prevent interleaved JSON lines
	writeMu sync.Mutex

	// Pending requests waiting for responses
	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Response

	closeChan chan struct{}
	closeOnce sync.Once
}

// Dial connects to the backend daemon at the default socket path.
func Dial() (*Client, error) {
	return DialPath(DefaultSocketPath)
}

// DialPath connects to the backend daemon at the given socket path.
func DialPath(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendNotAvailable, err)
	}

	client := &Client{
		socketPath: socketPath,
		conn:       conn,
		reader:     bufio.NewReader(conn),
		ready:      true,
		pending:    make(map[string]chan *protocol.Response),
		closeChan:  make(chan struct{}),
	}

	go client.readLoop()

	return client, nil
}

// IsBackendAvailable checks if the backend daemon is reachable.
func IsBackendAvailable() bool {
	return IsBackendAvailableAt(DefaultSocketPath)
}

// IsBackendAvailableAt checks if a backend daemon listens at the given path.
func IsBackendAvailableAt(socketPath string) bool {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return false
	}
	_ = conn.Close() // Error intentionally ignored; we only check connectivity
	return true
}

// Close closes the connection to the backend daemon.
func (c *Client) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.setReady(false)
		if c.conn != nil {
			closeErr = c.conn.Close()
		}
	})
	return closeErr
}

// Ready reports whether the event channel to the backend is established.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// OnStatus registers a callback for pushed status payloads.
// The payload uses the backend's status vocabulary.
func (c *Client) OnStatus(callback func(payload string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = callback
}

// OnLogLine registers a callback for backend diagnostic lines.
func (c *Client) OnLogLine(callback func(line string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLogLine = callback
}

// Connect asks the backend to start the tunnel with the given configuration.
func (c *Client) Connect(ctx context.Context, configLocator, username, password string) error {
	_, err := c.sendRequest(ctx, protocol.CommandConnect, protocol.ConnectParams{
		ConfigLocator: configLocator,
		Username:      username,
		Password:      password,
	})
	return err
}

// Disconnect asks the backend to tear the tunnel down (best-effort).
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.sendRequest(ctx, protocol.CommandDisconnect, protocol.DisconnectParams{})
	return err
}

// QueryStatus returns the backend-reported tunnel status.
func (c *Client) QueryStatus(ctx context.Context) (string, error) {
	resp, err := c.sendRequest(ctx, protocol.CommandStatus, protocol.StatusParams{})
	if err != nil {
		return "", err
	}

	var result protocol.StatusResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("failed to parse status: %w", err)
	}
	return result.Status, nil
}

// KillSwitchQuery reports whether the kill switch is currently active.
func (c *Client) KillSwitchQuery(ctx context.Context) (bool, error) {
	resp, err := c.sendRequest(ctx, protocol.CommandKillSwitchQuery, protocol.KillSwitchQueryParams{})
	if err != nil {
		return false, err
	}

	var result protocol.ToggleResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return false, fmt.Errorf("failed to parse kill switch state: %w", err)
	}
	return result.Enabled, nil
}

// KillSwitchSet enables or disables the kill switch. When enabling,
// configLocator names the configuration whose remotes stay reachable.
func (c *Client) KillSwitchSet(ctx context.Context, enabled bool, configLocator, authToken string) error {
	_, err := c.sendRequest(ctx, protocol.CommandKillSwitchSet, protocol.KillSwitchSetParams{
		Enabled:       enabled,
		ConfigLocator: configLocator,
		AuthToken:     authToken,
	})
	return err
}

// CrashRecoveryQuery reports whether crash recovery is currently active.
func (c *Client) CrashRecoveryQuery(ctx context.Context) (bool, error) {
	resp, err := c.sendRequest(ctx, protocol.CommandCrashRecoveryQuery, protocol.CrashRecoveryQueryParams{})
	if err != nil {
		return false, err
	}

	var result protocol.ToggleResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return false, fmt.Errorf("failed to parse crash recovery state: %w", err)
	}
	return result.Enabled, nil
}

// CrashRecoverySet enables or disables crash recovery.
func (c *Client) CrashRecoverySet(ctx context.Context, enabled bool) error {
	_, err := c.sendRequest(ctx, protocol.CommandCrashRecoverySet, protocol.CrashRecoverySetParams{
		Enabled: enabled,
	})
	return err
}

// PrefetchConfig downloads a remote configuration through the active tunnel
// and returns the local path the backend cached it at.
func (c *Client) PrefetchConfig(ctx context.Context, remoteLocator string) (string, error) {
	resp, err := c.sendRequest(ctx, protocol.CommandPrefetchConfig, protocol.PrefetchConfigParams{
		RemoteLocator: remoteLocator,
	})
	if err != nil {
		return "", err
	}

	var result protocol.PrefetchConfigResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("failed to parse prefetch result: %w", err)
	}
	return result.LocalPath, nil
}

func (c *Client) sendRequest(ctx context.Context, cmd protocol.Command, params interface{}) (*protocol.Response, error) {
	id := uuid.New().String()

	req, err := protocol.NewRequest(id, cmd, params)
	if err != nil {
		return nil, err
	}

	respChan := make(chan *protocol.Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	// Serialize writes to prevent interleaved JSON lines
	c.writeMu.Lock()
	data, err := json.Marshal(req)
	if err != nil {
		c.writeMu.Unlock()
		return nil, err
	}
	data = append(data, '\n')

	_, writeErr := c.conn.Write(data)
	c.writeMu.Unlock()

	if writeErr != nil {
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case resp := <-respChan:
		if !resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, errors.New("request failed with unknown error")
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeChan:
		return nil, errors.New("client closed")
	}
}

func (c *Client) readLoop() {
	defer c.setReady(false)

	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				slog.Error("Read error from backend", "error", err)
			}
			return
		}

		c.handleMessage(line)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg struct {
		Type protocol.MessageType `json:"type"`
		ID   string               `json:"id,omitempty"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Invalid message from backend", "error", err)
		return
	}

	switch msg.Type {
	case protocol.MessageTypeResponse:
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			slog.Warn("Invalid response from backend", "error", err)
			return
		}
		c.handleResponse(&resp)

	case protocol.MessageTypeEvent:
		var event protocol.Event
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("Invalid event from backend", "error", err)
			return
		}
		c.handleEvent(&event)

	default:
		// Log unknown message types for debugging (forward compatibility)
		truncated := string(data)
		if len(truncated) > 200 {
			truncated = truncated[:200] + "..."
		}
		slog.Warn("Unknown message type from backend",
			"type", msg.Type,
			"data", truncated)
	}
}

func (c *Client) handleResponse(resp *protocol.Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (c *Client) handleEvent(event *protocol.Event) {
	switch event.Name {
	case protocol.EventStatusChanged:
		var data protocol.StatusChangedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.Warn("Invalid status event", "error", err)
			return
		}
		c.mu.RLock()
		callback := c.onStatus
		c.mu.RUnlock()

		if callback != nil {
			callback(data.Status)
		}

	case protocol.EventLogLine:
		var data protocol.LogLineData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.Warn("Invalid log event", "error", err)
			return
		}
		c.mu.RLock()
		callback := c.onLogLine
		c.mu.RUnlock()

		if callback != nil {
			callback(data.Line)
		}

	default:
		slog.Debug("Ignoring unknown event from backend", "name", event.Name)
	}
}
