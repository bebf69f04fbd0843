package session

import (
	"context"
	"sync"

	"github.com/stellar-vpn/stellar-desktop/internal/keyring"
	"github.com/stellar-vpn/stellar-desktop/internal/prefs"
)

// connectCall records the arguments of one Connect RPC.
type connectCall struct {
	locator  string
	username string
	password string
}

// killSwitchCall records the arguments of one KillSwitchSet RPC.
type killSwitchCall struct {
	enabled bool
	locator string
}

// mockRPC implements BackendRPC for testing.
type mockRPC struct {
	mu sync.Mutex

	connectErr   error
	connectCalls []connectCall

	disconnectErr   error
	disconnectCalls int

	statusPayload string
	statusErr     error

	killSwitchErr   error
	killSwitchCalls []killSwitchCall

	crashRecoveryErr   error
	crashRecoveryCalls []bool

	prefetchResult string
	prefetchErr    error
	prefetchCalls  []string

	notReady bool
}

func (m *mockRPC) Connect(_ context.Context, locator, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls = append(m.connectCalls, connectCall{locator, username, password})
	return m.connectErr
}

func (m *mockRPC) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCalls++
	return m.disconnectErr
}

func (m *mockRPC) QueryStatus(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusPayload, m.statusErr
}

func (m *mockRPC) KillSwitchSet(_ context.Context, enabled bool, locator, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitchCalls = append(m.killSwitchCalls, killSwitchCall{enabled, locator})
	return m.killSwitchErr
}

func (m *mockRPC) CrashRecoverySet(_ context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crashRecoveryCalls = append(m.crashRecoveryCalls, enabled)
	return m.crashRecoveryErr
}

func (m *mockRPC) PrefetchConfig(_ context.Context, remoteLocator string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefetchCalls = append(m.prefetchCalls, remoteLocator)
	return m.prefetchResult, m.prefetchErr
}

func (m *mockRPC) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.notReady
}

func (m *mockRPC) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connectCalls)
}

func (m *mockRPC) lastConnect() connectCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls[len(m.connectCalls)-1]
}

func (m *mockRPC) disconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectCalls
}

func (m *mockRPC) setStatusPayload(payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusPayload = payload
}

// memStore implements PreferenceStore in memory.
type memStore struct {
	mu    sync.Mutex
	prefs prefs.Preferences
}

func newMemStore() *memStore {
	return &memStore{prefs: prefs.DefaultPreferences()}
}

func (s *memStore) Preferences() prefs.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prefs
	if p.SelectedServer != nil {
		srv := *p.SelectedServer
		p.SelectedServer = &srv
	}
	return p
}

func (s *memStore) Update(mutate func(*prefs.Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.prefs)
	return nil
}

// mockCreds implements CredentialSource.
type mockCreds struct {
	creds keyring.Credentials
	err   error
}

func (m *mockCreds) Get() (keyring.Credentials, error) {
	return m.creds, m.err
}

func validCreds() *mockCreds {
	return &mockCreds{creds: keyring.Credentials{Username: "subscriber", Password: "secret"}}
}

func activeSubscription() SubscriptionFunc {
	return func() SubscriptionSnapshot {
		return SubscriptionSnapshot{DaysRemaining: 30}
	}
}

func expiredSubscription() SubscriptionFunc {
	return func() SubscriptionSnapshot {
		return SubscriptionSnapshot{Expired: true}
	}
}
