package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stellar-vpn/stellar-desktop/internal/keyring"
	"github.com/stellar-vpn/stellar-desktop/internal/prefs"
)

// BackendRPC is the backend surface the controller drives. *backend.Client
// satisfies it.
type BackendRPC interface {
	// Connect starts the tunnel with the given configuration and credentials.
	Connect(ctx context.Context, configLocator, username, password string) error
	// Disconnect tears the tunnel down (best-effort).
	Disconnect(ctx context.Context) error
	// QueryStatus returns the backend-reported status payload.
	QueryStatus(ctx context.Context) (string, error)
	// KillSwitchSet enables or disables the kill switch.
	KillSwitchSet(ctx context.Context, enabled bool, configLocator, authToken string) error
	// CrashRecoverySet enables or disables crash recovery.
	CrashRecoverySet(ctx context.Context, enabled bool) error
	// PrefetchConfig downloads a remote configuration through the tunnel.
	PrefetchConfig(ctx context.Context, remoteLocator string) (string, error)
	// Ready reports whether the event channel is established.
	Ready() bool
}

// PreferenceStore is the persisted preference surface the controller uses.
// *prefs.Manager satisfies it.
type PreferenceStore interface {
	Preferences() prefs.Preferences
	Update(mutate func(*prefs.Preferences)) error
}

// CredentialSource retrieves stored tunnel credentials.
// *keyring.SystemKeyring satisfies it.
type CredentialSource interface {
	Get() (keyring.Credentials, error)
}

// SubscriptionFunc supplies the current subscription snapshot. It is provided
// by the account subsystem.
type SubscriptionFunc func() SubscriptionSnapshot

// Config holds the controller's timing parameters.
type Config struct {
	// WatchdogTimeout is the fixed budget of one connect attempt.
	WatchdogTimeout time.Duration
	// PollInterval is the reconciliation poll cadence while Connecting.
	PollInterval time.Duration
}

// DefaultConfig returns the production timing parameters.
func DefaultConfig() Config {
	return Config{
		WatchdogTimeout: 10 * time.Second,
		PollInterval:    900 * time.Millisecond,
	}
}

// disconnectTimeout bounds best-effort disconnect RPCs issued from failure
// paths, which have no caller context.
const disconnectTimeout = 5 * time.Second

// Controller is the connect orchestrator: the only writer of the connection
// status and the server selection. UI actions, tray intents, pushed backend
// events and poll results all funnel into its methods; stale watchdogs and
// poll loops identify themselves by attempt id and become no-ops when
// superseded.
type Controller struct {
	cfg          Config
	rpc          BackendRPC
	store        PreferenceStore
	creds        CredentialSource
	subscription SubscriptionFunc
	resolver     *ConfigResolver
	logs         *LogBuffer

	mu         sync.Mutex
	snapshot   Snapshot
	attemptID  uint64
	reconciled bool
	onChange   func(Snapshot)
}

// NewController creates a controller. subscription may be nil when no account
// subsystem is wired (subscription checks then pass).
func NewController(cfg Config, rpc BackendRPC, store PreferenceStore, creds CredentialSource, subscription SubscriptionFunc) *Controller {
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = DefaultConfig().WatchdogTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Controller{
		cfg:          cfg,
		rpc:          rpc,
		store:        store,
		creds:        creds,
		subscription: subscription,
		resolver:     NewConfigResolver(rpc),
		logs:         NewLogBuffer(),
		snapshot:     Snapshot{Status: StatusDisconnected},
	}
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Logs returns the diagnostic line buffer.
func (c *Controller) Logs() *LogBuffer {
	return c.logs
}

// OnChange registers a callback invoked after every state mutation.
// The callback runs outside the controller lock.
func (c *Controller) OnChange(callback func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = callback
}

// notify invokes the change callback with the given snapshot.
// Must be called without holding the lock.
func (c *Controller) notify(snap Snapshot) {
	c.mu.Lock()
	callback := c.onChange
	c.mu.Unlock()

	if callback != nil {
		callback(snap)
	}
}

func (c *Controller) appendLog(format string, args ...interface{}) {
	c.logs.Append(fmt.Sprintf(format, args...))
}

// AppendLogLine records a backend diagnostic line. Log lines accumulate
// independently of the error state.
func (c *Controller) AppendLogLine(line string) {
	c.logs.Append(line)
}

// ClearLastError dismisses the retained error without touching the status.
func (c *Controller) ClearLastError() {
	c.mu.Lock()
	c.snapshot.LastError = ""
	snap := c.snapshot
	c.mu.Unlock()

	c.notify(snap)
}

// StartConnect begins a user-initiated connect attempt with the given
// locator. It fails fast, without contacting the backend, when a tunnel is
// already up, credentials cannot be resolved, or the subscription has
// expired. As an explicit user action it clears the manual override latch.
func (c *Controller) StartConnect(ctx context.Context, locator string) error {
	return c.startAttempt(ctx, locator, true)
}

// ConnectNow is the explicit "connect now" flow: a user-initiated connect
// with the persisted selection's locator, falling back to the default. Being
// explicit, it is not gated on the first-connection marker.
func (c *Controller) ConnectNow(ctx context.Context) error {
	locator := DefaultConfigLocator
	if sel := c.store.Preferences().SelectedServer; sel != nil && sel.ConfigLocator != "" {
		locator = sel.ConfigLocator
	}
	return c.StartConnect(ctx, locator)
}

func (c *Controller) startAttempt(ctx context.Context, locator string, userInitiated bool) error {
	c.mu.Lock()
	if c.snapshot.Status == StatusConnected {
		c.mu.Unlock()
		c.appendLog("connect refused: already connected")
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	creds, err := c.creds.Get()
	if err != nil {
		c.appendLog("connect refused: credentials missing")
		return ErrCredentialsMissing
	}

	if userInitiated {
		if c.subscription != nil && c.subscription().Expired {
			c.appendLog("connect refused: subscription expired")
			return ErrSubscriptionExpired
		}
		c.setManualDisabled(false)
	}

	c.mu.Lock()
	c.attemptID++
	id := c.attemptID
	c.snapshot = Snapshot{Status: StatusConnecting}
	snap := c.snapshot
	c.mu.Unlock()

	c.appendLog("connect attempt %d started (locator %s)", id, locator)
	c.notify(snap)

	// The watchdog is never cancelled; it checks its attempt tag at fire
	// time and becomes a no-op when superseded.
	time.AfterFunc(c.cfg.WatchdogTimeout, func() {
		c.watchdogFire(id)
	})

	go c.pollLoop(id)

	go func() {
		if err := c.rpc.Connect(ctx, locator, creds.Username, creds.Password); err != nil {
			// An RPC rejection resolves the attempt the same way a watchdog
			// firing would, just without waiting out the timer.
			c.failAttempt(id, fmt.Sprintf("connect rejected: %v", err))
		}
	}()

	return nil
}

// Disconnect tears the session down. It is idempotent: when already
// Disconnected it succeeds without any RPC. Otherwise the backend disconnect
// is best-effort and the status lands on Disconnected regardless of the RPC
// outcome, so the UI can never get stuck on a dead tunnel.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.snapshot.Status == StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.snapshot.Status = StatusDisconnected
	snap := c.snapshot
	c.mu.Unlock()

	c.setManualDisabled(true)

	if err := c.rpc.Disconnect(ctx); err != nil {
		slog.Warn("Backend disconnect failed", "error", err)
		c.appendLog("disconnect RPC failed: %v", err)
	}

	c.appendLog("disconnected by user")
	c.notify(snap)
	return nil
}

// watchdogFire resolves an attempt that never left Connecting within the
// watchdog budget. Stale tags and already-resolved attempts are no-ops.
func (c *Controller) watchdogFire(id uint64) {
	c.failAttempt(id, fmt.Sprintf("%s (%s)", ErrAttemptTimeout, c.cfg.WatchdogTimeout))
}

// failAttempt moves a still-current, still-Connecting attempt to a terminal
// Disconnected state: best-effort backend disconnect, reason recorded,
// manual override latched so auto-connect cannot immediately retry the same
// failure.
func (c *Controller) failAttempt(id uint64, reason string) {
	c.mu.Lock()
	if id != c.attemptID || c.snapshot.Status != StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.snapshot = Snapshot{Status: StatusDisconnected, LastError: reason}
	snap := c.snapshot
	c.mu.Unlock()

	c.appendLog("connect attempt %d failed: %s", id, reason)
	c.setManualDisabled(true)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := c.rpc.Disconnect(ctx); err != nil {
			slog.Debug("Best-effort disconnect failed", "error", err)
		}
	}()

	c.notify(snap)
}

// pollLoop reconciles backend status while the attempt is Connecting. Every
// result goes through the same reducer as pushed events. The loop
// self-terminates once the status leaves Connecting or the attempt is
// superseded; it only polls while the event channel is established.
func (c *Controller) pollLoop(id uint64) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := id == c.attemptID && c.snapshot.Status == StatusConnecting
		c.mu.Unlock()
		if !current {
			return
		}

		if !c.rpc.Ready() {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PollInterval)
		payload, err := c.rpc.QueryStatus(ctx)
		cancel()
		if err != nil {
			slog.Debug("Status poll failed", "error", err)
			continue
		}

		c.HandleStatusPayload(payload)
	}
}

// Reconcile performs the startup reconciliation read: the one point where a
// backend-reported Connected may be adopted directly from Disconnected (an
// always-on tunnel surviving a client restart).
func (c *Controller) Reconcile(ctx context.Context) {
	payload, err := c.rpc.QueryStatus(ctx)
	if err != nil {
		slog.Warn("Startup status query failed", "error", err)
		c.appendLog("startup reconciliation failed: %v", err)
		c.mu.Lock()
		c.reconciled = true
		c.mu.Unlock()
		return
	}

	c.HandleStatusPayload(payload)

	c.mu.Lock()
	c.reconciled = true
	c.mu.Unlock()
}

// HandleStatusPayload is the single reducer entry point. Pushed status events
// and polled status results both land here, so the two sources of truth can
// never diverge in handling.
func (c *Controller) HandleStatusPayload(payload string) {
	status, reason, ok := ReduceStatus(payload)
	if !ok {
		slog.Warn("Ignoring unknown status payload", "payload", payload)
		return
	}

	if reason != "" {
		c.applyBackendError(reason)
		return
	}

	switch status {
	case StatusConnected:
		c.applyConnected()
	case StatusConnecting:
		c.applyConnecting()
	case StatusDisconnected:
		c.applyDisconnected()
	}
}

func (c *Controller) applyBackendError(reason string) {
	c.mu.Lock()
	if c.snapshot.Status == StatusDisconnected && c.snapshot.LastError == reason {
		c.mu.Unlock()
		return
	}
	c.snapshot = Snapshot{Status: StatusDisconnected, LastError: reason}
	snap := c.snapshot
	c.mu.Unlock()

	c.appendLog("backend error: %s", reason)
	c.setManualDisabled(true)
	c.notify(snap)
}

func (c *Controller) applyConnected() {
	c.mu.Lock()
	if c.snapshot.Status == StatusConnected {
		c.mu.Unlock()
		return
	}
	// Outside the initial reconciliation read, a jump from Disconnected
	// straight to Connected has no current attempt behind it.
	if c.snapshot.Status == StatusDisconnected && c.reconciled {
		c.mu.Unlock()
		slog.Warn("Ignoring connected report without a current attempt")
		return
	}
	c.snapshot = Snapshot{Status: StatusConnected}
	snap := c.snapshot
	c.mu.Unlock()

	c.appendLog("tunnel is up")
	c.markConnectedOnce()
	c.notify(snap)
}

func (c *Controller) applyConnecting() {
	c.mu.Lock()
	if c.snapshot.Status != StatusDisconnected {
		// Already Connecting, or Connected; Connected never legally moves
		// back to Connecting.
		c.mu.Unlock()
		return
	}
	c.snapshot.Status = StatusConnecting
	snap := c.snapshot
	c.mu.Unlock()

	c.appendLog("backend reports connecting")
	c.notify(snap)
}

func (c *Controller) applyDisconnected() {
	c.mu.Lock()
	if c.snapshot.Status == StatusDisconnected {
		c.mu.Unlock()
		return
	}
	wasConnected := c.snapshot.Status == StatusConnected
	c.snapshot.Status = StatusDisconnected
	snap := c.snapshot
	c.mu.Unlock()

	c.appendLog("tunnel is down")
	c.notify(snap)

	if wasConnected {
		// Unexpected drop: the policy decides whether to come back up.
		go c.EvaluateAutoConnect(context.Background(), false)
	}
}

// markConnectedOnce persists the first-connection marker on the first
// observed Connected transition.
func (c *Controller) markConnectedOnce() {
	if c.store.Preferences().HasConnectedOnce {
		return
	}
	if err := c.store.Update(func(p *prefs.Preferences) {
		p.HasConnectedOnce = true
	}); err != nil {
		slog.Warn("Failed to persist first-connection marker", "error", err)
	}
}

func (c *Controller) setManualDisabled(disabled bool) {
	if err := c.store.Update(func(p *prefs.Preferences) {
		p.ManualDisabled = disabled
	}); err != nil {
		slog.Warn("Failed to persist manual override flag", "error", err)
	}
}

// EvaluateAutoConnect applies the auto-connect policy and, when it says
// attempt, starts an attempt without clearing the manual override latch
// (only explicit user connects clear it). Returns whether an attempt was
// started.
func (c *Controller) EvaluateAutoConnect(ctx context.Context, skipRequested bool) bool {
	p := c.store.Preferences()

	var sub SubscriptionSnapshot
	if c.subscription != nil {
		sub = c.subscription()
	}

	input := PolicyInput{
		SkipRequested:      skipRequested,
		AutoConnectEnabled: p.AutoConnectEnabled,
		ManualDisabled:     p.ManualDisabled,
		HasConnectedOnce:   p.HasConnectedOnce,
		Subscription:       sub,
		Status:             c.Snapshot().Status,
	}
	if p.SelectedServer != nil {
		input.SelectedLocator = p.SelectedServer.ConfigLocator
	}

	locator, attempt := DecideAutoConnect(input)
	if !attempt {
		return false
	}

	c.appendLog("auto-connect: attempting %s", locator)
	if err := c.startAttempt(ctx, locator, false); err != nil {
		slog.Warn("Auto-connect attempt failed to start", "error", err)
		return false
	}
	return true
}

// SelectServer resolves and persists a new server selection. With the kill
// switch active the configuration may need to be prefetched through the
// current tunnel; on any resolution error the previous selection is left
// unchanged.
func (c *Controller) SelectServer(ctx context.Context, server prefs.SelectedServer) error {
	p := c.store.Preferences()

	resolved, err := c.resolver.Resolve(ctx, server.ConfigLocator, p.KillSwitchEnabled, c.Snapshot().Status)
	if err != nil {
		return err
	}
	server.ConfigLocator = resolved

	if err := c.store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &server
	}); err != nil {
		return fmt.Errorf("failed to persist server selection: %w", err)
	}

	c.appendLog("selected server %s (%s)", server.Name, server.ConfigLocator)
	return nil
}

// SetKillSwitch toggles the kill switch. Enabling resolves an effective
// locator against the current selection first, since the firewall rules need
// the configuration's remotes. On RPC failure nothing is persisted, so the
// UI-facing toggle reverts; the connection status is never touched.
func (c *Controller) SetKillSwitch(ctx context.Context, enabled bool) error {
	if !enabled {
		if err := c.rpc.KillSwitchSet(ctx, false, "", ""); err != nil {
			return fmt.Errorf("failed to disable kill switch: %w", err)
		}
		if err := c.store.Update(func(p *prefs.Preferences) {
			p.KillSwitchEnabled = false
		}); err != nil {
			return fmt.Errorf("failed to persist kill switch state: %w", err)
		}
		c.appendLog("kill switch disabled")
		return nil
	}

	locator := DefaultConfigLocator
	sel := c.store.Preferences().SelectedServer
	if sel != nil && sel.ConfigLocator != "" {
		locator = sel.ConfigLocator
	}

	effective, err := c.resolver.Resolve(ctx, locator, true, c.Snapshot().Status)
	if err != nil {
		return err
	}

	if err := c.rpc.KillSwitchSet(ctx, true, effective, ""); err != nil {
		return fmt.Errorf("failed to enable kill switch: %w", err)
	}

	if err := c.store.Update(func(p *prefs.Preferences) {
		p.KillSwitchEnabled = true
		if sel != nil && effective != sel.ConfigLocator {
			rewritten := *sel
			rewritten.ConfigLocator = effective
			p.SelectedServer = &rewritten
		}
	}); err != nil {
		return fmt.Errorf("failed to persist kill switch state: %w", err)
	}

	c.appendLog("kill switch enabled (locator %s)", effective)
	return nil
}

// SetCrashRecovery toggles crash recovery: a plain passthrough with the same
// revert-on-failure contract as the kill switch and no interaction with the
// connection state machine.
func (c *Controller) SetCrashRecovery(ctx context.Context, enabled bool) error {
	if err := c.rpc.CrashRecoverySet(ctx, enabled); err != nil {
		return fmt.Errorf("failed to set crash recovery: %w", err)
	}
	c.appendLog("crash recovery set to %v", enabled)
	return nil
}
