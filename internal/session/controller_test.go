package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-vpn/stellar-desktop/internal/prefs"
)

// quietConfig keeps the watchdog and poll loop out of the way for tests that
// drive the reducer directly.
func quietConfig() Config {
	return Config{
		WatchdogTimeout: time.Minute,
		PollInterval:    time.Minute,
	}
}

// fastConfig makes timing behaviour observable within a test run.
func fastConfig() Config {
	return Config{
		WatchdogTimeout: 50 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
	}
}

func TestStartConnect_CredentialsMissing(t *testing.T) {
	rpc := &mockRPC{}
	creds := &mockCreds{err: errors.New("secret service unavailable")}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), creds, activeSubscription())

	err := ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn")

	assert.ErrorIs(t, err, ErrCredentialsMissing)
	assert.Equal(t, 0, rpc.connectCount())
	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestStartConnect_SubscriptionExpired(t *testing.T) {
	rpc := &mockRPC{}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), expiredSubscription())

	err := ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn")

	assert.ErrorIs(t, err, ErrSubscriptionExpired)
	assert.Equal(t, 0, rpc.connectCount())
	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestStartConnect_PassesCredentialsAndLocator(t *testing.T) {
	rpc := &mockRPC{}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	assert.Equal(t, StatusConnecting, ctrl.Snapshot().Status)
	require.Eventually(t, func() bool {
		return rpc.connectCount() == 1
	}, time.Second, 5*time.Millisecond)

	call := rpc.lastConnect()
	assert.Equal(t, "/etc/stellar/ch.ovpn", call.locator)
	assert.Equal(t, "subscriber", call.username)
	assert.Equal(t, "secret", call.password)
}

func TestStartConnect_RefusedWhileConnected(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())
	require.Equal(t, StatusConnected, ctrl.Snapshot().Status)

	var seen []Status
	ctrl.OnChange(func(snap Snapshot) { seen = append(seen, snap.Status) })

	err := ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn")

	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, StatusConnected, ctrl.Snapshot().Status)
	assert.Equal(t, 0, rpc.connectCount())
	assert.Empty(t, seen, "a refused connect must not transition at all")
}

func TestConnectNow_RefusedWhileConnected(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())

	err := ctrl.ConnectNow(context.Background())

	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, StatusConnected, ctrl.Snapshot().Status)
	assert.Equal(t, 0, rpc.connectCount())
}

func TestStartConnect_ClearsManualOverride(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.ManualDisabled = true
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	assert.False(t, store.Preferences().ManualDisabled)
}

func TestConnectNow_UsesStoredSelection(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Switzerland",
			ConfigLocator: "/etc/stellar/ch.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.ConnectNow(context.Background()))

	require.Eventually(t, func() bool {
		return rpc.connectCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "/etc/stellar/ch.ovpn", rpc.lastConnect().locator)
}

func TestConnectNow_FallsBackToDefaultLocator(t *testing.T) {
	rpc := &mockRPC{}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	require.NoError(t, ctrl.ConnectNow(context.Background()))

	require.Eventually(t, func() bool {
		return rpc.connectCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, DefaultConfigLocator, rpc.lastConnect().locator)
}

func TestWatchdog_FailsStalledAttempt(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connecting"}
	store := newMemStore()
	ctrl := NewController(fastConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == StatusDisconnected
	}, time.Second, 5*time.Millisecond)

	snap := ctrl.Snapshot()
	assert.Contains(t, snap.LastError, ErrAttemptTimeout.Error())
	assert.True(t, store.Preferences().ManualDisabled)
	require.Eventually(t, func() bool {
		return rpc.disconnectCount() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestWatchdog_IgnoresResolvedAttempt(t *testing.T) {
	rpc := &mockRPC{}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))
	ctrl.HandleStatusPayload("connected")
	require.Equal(t, StatusConnected, ctrl.Snapshot().Status)

	ctrl.watchdogFire(1)

	assert.Equal(t, StatusConnected, ctrl.Snapshot().Status)
	assert.Empty(t, ctrl.Snapshot().LastError)
}

func TestWatchdog_IgnoresSupersededAttempt(t *testing.T) {
	rpc := &mockRPC{}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/first.ovpn"))
	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/second.ovpn"))

	// The first attempt's watchdog must not touch the second attempt.
	ctrl.watchdogFire(1)
	assert.Equal(t, StatusConnecting, ctrl.Snapshot().Status)

	ctrl.watchdogFire(2)
	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
	assert.Contains(t, ctrl.Snapshot().LastError, "timed out")
}

func TestStartConnect_RPCRejection(t *testing.T) {
	rpc := &mockRPC{connectErr: errors.New("config file not found")}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == StatusDisconnected
	}, time.Second, 5*time.Millisecond)

	snap := ctrl.Snapshot()
	assert.Contains(t, snap.LastError, "connect rejected")
	assert.Contains(t, snap.LastError, "config file not found")
	assert.True(t, store.Preferences().ManualDisabled)
}

func TestPollLoop_AdoptsConnected(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	store := newMemStore()
	cfg := Config{WatchdogTimeout: time.Second, PollInterval: 5 * time.Millisecond}
	ctrl := NewController(cfg, rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == StatusConnected
	}, time.Second, 5*time.Millisecond)
	assert.True(t, store.Preferences().HasConnectedOnce)
}

func TestPollLoop_SkipsWithoutEventChannel(t *testing.T) {
	// The backend reports connected, but without an established event channel
	// the poll never sees it, so the watchdog wins.
	rpc := &mockRPC{statusPayload: "connected", notReady: true}
	ctrl := NewController(fastConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	require.Eventually(t, func() bool {
		return ctrl.Snapshot().Status == StatusDisconnected
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, ctrl.Snapshot().LastError, "timed out")
}

func TestDisconnect_IdempotentWhenAlreadyDown(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.Disconnect(context.Background()))

	assert.Equal(t, 0, rpc.disconnectCount())
	assert.False(t, store.Preferences().ManualDisabled)
}

func TestDisconnect_LatchesManualOverride(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())
	require.Equal(t, StatusConnected, ctrl.Snapshot().Status)

	require.NoError(t, ctrl.Disconnect(context.Background()))

	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
	assert.Equal(t, 1, rpc.disconnectCount())
	assert.True(t, store.Preferences().ManualDisabled)
}

func TestDisconnect_SucceedsDespiteRPCFailure(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected", disconnectErr: errors.New("socket closed")}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())

	require.NoError(t, ctrl.Disconnect(context.Background()))

	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestHandleStatusPayload_BackendError(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))

	ctrl.HandleStatusPayload("error: authentication failed")

	snap := ctrl.Snapshot()
	assert.Equal(t, StatusDisconnected, snap.Status)
	assert.Equal(t, "authentication failed", snap.LastError)
	assert.True(t, store.Preferences().ManualDisabled)
}

func TestHandleStatusPayload_UnknownIgnored(t *testing.T) {
	ctrl := NewController(quietConfig(), &mockRPC{}, newMemStore(), validCreds(), activeSubscription())

	ctrl.HandleStatusPayload("rebooting")

	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
	assert.Empty(t, ctrl.Snapshot().LastError)
}

func TestConnected_ClearsRetainedError(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))
	ctrl.HandleStatusPayload("error: authentication failed")
	require.NotEmpty(t, ctrl.Snapshot().LastError)

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))
	ctrl.HandleStatusPayload("connected")

	snap := ctrl.Snapshot()
	assert.Equal(t, StatusConnected, snap.Status)
	assert.Empty(t, snap.LastError)
	assert.True(t, store.Preferences().HasConnectedOnce)
}

func TestReconcile_AdoptsSurvivingTunnel(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	ctrl.Reconcile(context.Background())

	assert.Equal(t, StatusConnected, ctrl.Snapshot().Status)
	assert.True(t, store.Preferences().HasConnectedOnce)
}

func TestConnectedWithoutAttempt_IgnoredAfterReconcile(t *testing.T) {
	rpc := &mockRPC{statusPayload: "disconnected"}
	store := newMemStore()
	// Auto-connect off so the drop below stays down.
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.AutoConnectEnabled = false
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())
	require.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)

	ctrl.HandleStatusPayload("connected")

	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestReconcile_QueryFailureStillMarksDone(t *testing.T) {
	rpc := &mockRPC{statusErr: errors.New("backend unavailable")}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	ctrl.Reconcile(context.Background())

	// After a failed reconciliation read the one-time adoption window is
	// closed: a pushed connected with no attempt behind it is ignored.
	ctrl.HandleStatusPayload("connected")
	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestUnexpectedDrop_TriggersAutoReconnect(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Switzerland",
			ConfigLocator: "/etc/stellar/ch.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())
	require.Equal(t, StatusConnected, ctrl.Snapshot().Status)

	ctrl.HandleStatusPayload("disconnected")

	require.Eventually(t, func() bool {
		return rpc.connectCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "/etc/stellar/ch.ovpn", rpc.lastConnect().locator)
	assert.Equal(t, StatusConnecting, ctrl.Snapshot().Status)
}

func TestEvaluateAutoConnect_StartsAttempt(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.HasConnectedOnce = true
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	assert.True(t, ctrl.EvaluateAutoConnect(context.Background(), false))

	require.Eventually(t, func() bool {
		return rpc.connectCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, DefaultConfigLocator, rpc.lastConnect().locator)
}

func TestEvaluateAutoConnect_SkipRequested(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.HasConnectedOnce = true
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	assert.False(t, ctrl.EvaluateAutoConnect(context.Background(), true))
	assert.Equal(t, 0, rpc.connectCount())
}

func TestEvaluateAutoConnect_RespectsManualOverride(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.HasConnectedOnce = true
		p.ManualDisabled = true
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	assert.False(t, ctrl.EvaluateAutoConnect(context.Background(), false))
	assert.Equal(t, 0, rpc.connectCount())
}

func TestEvaluateAutoConnect_AfterExplicitDisconnect(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected"}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())
	require.NoError(t, ctrl.Disconnect(context.Background()))

	assert.False(t, ctrl.EvaluateAutoConnect(context.Background(), false))
	assert.Equal(t, 0, rpc.connectCount())
}

func TestSetKillSwitch_Disable(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.KillSwitchEnabled = true
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.SetKillSwitch(context.Background(), false))

	require.Len(t, rpc.killSwitchCalls, 1)
	assert.False(t, rpc.killSwitchCalls[0].enabled)
	assert.False(t, store.Preferences().KillSwitchEnabled)
}

func TestSetKillSwitch_EnableWithLocalSelection(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Switzerland",
			ConfigLocator: "/etc/stellar/ch.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	require.NoError(t, ctrl.SetKillSwitch(context.Background(), true))

	require.Len(t, rpc.killSwitchCalls, 1)
	assert.True(t, rpc.killSwitchCalls[0].enabled)
	assert.Equal(t, "/etc/stellar/ch.ovpn", rpc.killSwitchCalls[0].locator)
	assert.True(t, store.Preferences().KillSwitchEnabled)
}

func TestSetKillSwitch_EnableBlockedByRemoteSelectionWhileDown(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Switzerland",
			ConfigLocator: "https://cdn.example/ch.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	err := ctrl.SetKillSwitch(context.Background(), true)

	assert.ErrorIs(t, err, ErrKillSwitchPrecondition)
	assert.Empty(t, rpc.killSwitchCalls)
	assert.False(t, store.Preferences().KillSwitchEnabled)
}

func TestSetKillSwitch_EnablePrefetchesThroughTunnel(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected", prefetchResult: "/var/cache/stellar/ch.ovpn"}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Switzerland",
			ConfigLocator: "https://cdn.example/ch.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())

	require.NoError(t, ctrl.SetKillSwitch(context.Background(), true))

	require.Len(t, rpc.killSwitchCalls, 1)
	assert.Equal(t, "/var/cache/stellar/ch.ovpn", rpc.killSwitchCalls[0].locator)

	p := store.Preferences()
	assert.True(t, p.KillSwitchEnabled)
	require.NotNil(t, p.SelectedServer)
	assert.Equal(t, "/var/cache/stellar/ch.ovpn", p.SelectedServer.ConfigLocator)
	assert.Equal(t, "Switzerland", p.SelectedServer.Name)
}

func TestSetKillSwitch_RPCFailureLeavesStateUntouched(t *testing.T) {
	rpc := &mockRPC{killSwitchErr: errors.New("nftables unavailable")}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Switzerland",
			ConfigLocator: "/etc/stellar/ch.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	err := ctrl.SetKillSwitch(context.Background(), true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enable kill switch")
	assert.False(t, store.Preferences().KillSwitchEnabled)
	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestSelectServer_PersistsSelection(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	err := ctrl.SelectServer(context.Background(), prefs.SelectedServer{
		Name:          "Switzerland",
		ConfigLocator: "https://cdn.example/ch.ovpn",
		CountryCode:   "CH",
	})

	require.NoError(t, err)
	p := store.Preferences()
	require.NotNil(t, p.SelectedServer)
	assert.Equal(t, "https://cdn.example/ch.ovpn", p.SelectedServer.ConfigLocator)
	assert.Empty(t, rpc.prefetchCalls)
}

func TestSelectServer_KillSwitchBlocksRemoteWhileDown(t *testing.T) {
	rpc := &mockRPC{}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.KillSwitchEnabled = true
		p.SelectedServer = &prefs.SelectedServer{
			Name:          "Old",
			ConfigLocator: "/etc/stellar/old.ovpn",
		}
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())

	err := ctrl.SelectServer(context.Background(), prefs.SelectedServer{
		Name:          "New",
		ConfigLocator: "https://cdn.example/new.ovpn",
	})

	assert.ErrorIs(t, err, ErrKillSwitchPrecondition)
	p := store.Preferences()
	require.NotNil(t, p.SelectedServer)
	assert.Equal(t, "Old", p.SelectedServer.Name)
}

func TestSelectServer_KillSwitchPrefetchesWhileUp(t *testing.T) {
	rpc := &mockRPC{statusPayload: "connected", prefetchResult: "/var/cache/stellar/new.ovpn"}
	store := newMemStore()
	require.NoError(t, store.Update(func(p *prefs.Preferences) {
		p.KillSwitchEnabled = true
	}))
	ctrl := NewController(quietConfig(), rpc, store, validCreds(), activeSubscription())
	ctrl.Reconcile(context.Background())

	err := ctrl.SelectServer(context.Background(), prefs.SelectedServer{
		Name:          "New",
		ConfigLocator: "https://cdn.example/new.ovpn",
	})

	require.NoError(t, err)
	p := store.Preferences()
	require.NotNil(t, p.SelectedServer)
	assert.Equal(t, "/var/cache/stellar/new.ovpn", p.SelectedServer.ConfigLocator)
	require.Len(t, rpc.prefetchCalls, 1)
	assert.Equal(t, "https://cdn.example/new.ovpn", rpc.prefetchCalls[0])
}

func TestSetCrashRecovery(t *testing.T) {
	rpc := &mockRPC{}
	ctrl := NewController(quietConfig(), rpc, newMemStore(), validCreds(), activeSubscription())

	require.NoError(t, ctrl.SetCrashRecovery(context.Background(), true))
	require.Len(t, rpc.crashRecoveryCalls, 1)
	assert.True(t, rpc.crashRecoveryCalls[0])

	rpc.crashRecoveryErr = errors.New("helper refused")
	err := ctrl.SetCrashRecovery(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set crash recovery")
}

func TestClearLastError(t *testing.T) {
	ctrl := NewController(quietConfig(), &mockRPC{}, newMemStore(), validCreds(), activeSubscription())
	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))
	ctrl.HandleStatusPayload("error: authentication failed")
	require.NotEmpty(t, ctrl.Snapshot().LastError)

	ctrl.ClearLastError()

	assert.Empty(t, ctrl.Snapshot().LastError)
	assert.Equal(t, StatusDisconnected, ctrl.Snapshot().Status)
}

func TestOnChange_ObservesTransitions(t *testing.T) {
	ctrl := NewController(quietConfig(), &mockRPC{}, newMemStore(), validCreds(), activeSubscription())

	var mu sync.Mutex
	var seen []Status
	ctrl.OnChange(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, snap.Status)
	})

	require.NoError(t, ctrl.StartConnect(context.Background(), "/etc/stellar/ch.ovpn"))
	ctrl.HandleStatusPayload("connected")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, StatusConnecting, seen[0])
	assert.Equal(t, StatusConnected, seen[1])
}

func TestAppendLogLine(t *testing.T) {
	ctrl := NewController(quietConfig(), &mockRPC{}, newMemStore(), validCreds(), activeSubscription())

	ctrl.AppendLogLine("Initializing OpenVPN 2.6")
	ctrl.AppendLogLine("Peer connection initiated")

	lines := ctrl.Logs().Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Initializing OpenVPN 2.6", lines[0])
	assert.Empty(t, ctrl.Snapshot().LastError)
}
