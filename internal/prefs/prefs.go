// Package prefs manages persisted user preferences.
//
// Preferences are stored as a single JSON document. Every key has a
// documented default, and an absent key always resolves to that default
// rather than to the zero value, so "never stored" and "stored as false"
// are distinguishable.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stellar-vpn/stellar-desktop/internal/fileutil"
)

const (
	// AppName is the application identifier used for XDG paths.
	AppName = "stellar-desktop"
	// FileName is the name of the preferences file.
	FileName = "preferences.json"
)

// Per-key defaults. Absence of a stored value resolves to these.
const (
	DefaultAutoConnectEnabled = true
	DefaultManualDisabled     = false
	DefaultHasConnectedOnce   = false
	DefaultKillSwitchEnabled  = false
)

// SelectedServer identifies the server whose configuration the backend
// connects with. ConfigLocator is either a remote URL or a local path left
// behind by a previous prefetch.
type SelectedServer struct {
	Name          string `json:"name"`
	ConfigLocator string `json:"config_locator"`
	CountryCode   string `json:"country_code,omitempty"`
	ServerID      string `json:"server_id,omitempty"`
}

// Preferences is the in-memory form of the persisted record, with all
// defaults already applied.
type Preferences struct {
	AutoConnectEnabled bool
	ManualDisabled     bool
	HasConnectedOnce   bool
	KillSwitchEnabled  bool
	SelectedServer     *SelectedServer
}

// DefaultPreferences returns a record with every key at its default.
func DefaultPreferences() Preferences {
	return Preferences{
		AutoConnectEnabled: DefaultAutoConnectEnabled,
		ManualDisabled:     DefaultManualDisabled,
		HasConnectedOnce:   DefaultHasConnectedOnce,
		KillSwitchEnabled:  DefaultKillSwitchEnabled,
	}
}

// fileFormat is the on-disk shape. Pointer fields distinguish an absent key
// from an explicitly stored false.
type fileFormat struct {
	AutoConnectEnabled *bool           `json:"auto_connect_enabled,omitempty"`
	ManualDisabled     *bool           `json:"manual_disabled,omitempty"`
	HasConnectedOnce   *bool           `json:"has_connected_once,omitempty"`
	KillSwitchEnabled  *bool           `json:"kill_switch_enabled,omitempty"`
	SelectedServer     *SelectedServer `json:"selected_server,omitempty"`
}

func (f *fileFormat) resolve() Preferences {
	p := DefaultPreferences()
	if f.AutoConnectEnabled != nil {
		p.AutoConnectEnabled = *f.AutoConnectEnabled
	}
	if f.ManualDisabled != nil {
		p.ManualDisabled = *f.ManualDisabled
	}
	if f.HasConnectedOnce != nil {
		p.HasConnectedOnce = *f.HasConnectedOnce
	}
	if f.KillSwitchEnabled != nil {
		p.KillSwitchEnabled = *f.KillSwitchEnabled
	}
	if f.SelectedServer != nil {
		srv := *f.SelectedServer
		p.SelectedServer = &srv
	}
	return p
}

func toFileFormat(p Preferences) fileFormat {
	f := fileFormat{
		AutoConnectEnabled: &p.AutoConnectEnabled,
		ManualDisabled:     &p.ManualDisabled,
		HasConnectedOnce:   &p.HasConnectedOnce,
		KillSwitchEnabled:  &p.KillSwitchEnabled,
	}
	if p.SelectedServer != nil {
		srv := *p.SelectedServer
		f.SelectedServer = &srv
	}
	return f
}

// DefaultPath returns the preferences file path following the XDG Base
// Directory spec.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, AppName, FileName), nil
}

// Load reads the preferences from disk. A missing file yields the defaults.
func Load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPreferences(), nil
		}
		return Preferences{}, fmt.Errorf("failed to read preferences file: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return Preferences{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	return f.resolve(), nil
}

// Save writes the preferences to disk atomically.
func Save(path string, p Preferences) error {
	f := toFileFormat(p)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := fileutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences file: %w", err)
	}
	return nil
}

// Manager provides high-level preference access. It is safe for concurrent
// use from multiple goroutines.
type Manager struct {
	path  string // Immutable after construction
	mu    sync.RWMutex
	prefs Preferences
}

// NewManager creates a manager backed by the default XDG path, creating the
// parent directory if needed.
func NewManager() (*Manager, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return NewManagerWithPath(path)
}

// NewManagerWithPath creates a manager backed by the given file.
func NewManagerWithPath(path string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}

	p, err := Load(path)
	if err != nil {
		return nil, err
	}

	return &Manager{path: path, prefs: p}, nil
}

// Preferences returns a copy of the current record.
func (m *Manager) Preferences() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.prefs
	if p.SelectedServer != nil {
		srv := *p.SelectedServer
		p.SelectedServer = &srv
	}
	return p
}

// Update atomically applies a mutation to the record and persists it.
// The lock is held for the whole read-modify-write so updates never race.
func (m *Manager) Update(mutate func(*Preferences)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.prefs
	if next.SelectedServer != nil {
		srv := *next.SelectedServer
		next.SelectedServer = &srv
	}
	mutate(&next)

	if err := Save(m.path, next); err != nil {
		return err
	}
	m.prefs = next
	return nil
}

// ResetAccount clears the per-account flags when a new account signs in:
// the first-connection marker and the stored server selection.
func (m *Manager) ResetAccount() error {
	return m.Update(func(p *Preferences) {
		p.HasConnectedOnce = false
		p.ManualDisabled = DefaultManualDisabled
		p.SelectedServer = nil
	})
}
