// Package keyring provides secure credential storage using the system keyring.
package keyring

import (
	"encoding/json"
	"errors"
	"fmt"

	zkeyring "github.com/zalando/go-keyring"
)

// ServiceName is the identifier used for storing credentials in the system keyring.
const ServiceName = "stellar-desktop"

// credentialsKey is the keyring entry holding the tunnel credentials.
// The client manages a single account, so one entry suffices.
const credentialsKey = "tunnel-credentials"

// ErrCredentialsNotFound is returned when no credentials are stored.
var ErrCredentialsNotFound = errors.New("credentials not found")

// Credentials holds the tunnel authentication material. The session
// controller treats it as opaque beyond existence-checking.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store defines the interface for credential storage operations.
type Store interface {
	// Save stores the tunnel credentials.
	Save(creds Credentials) error
	// Get retrieves the stored tunnel credentials.
	Get() (Credentials, error)
	// Delete removes the stored tunnel credentials.
	Delete() error
}

// SystemKeyring implements Store using the system keyring.
type SystemKeyring struct{}

// NewSystemKeyring creates a new SystemKeyring instance.
func NewSystemKeyring() *SystemKeyring {
	return &SystemKeyring{}
}

// Save stores the tunnel credentials in the system keyring as a single
// JSON-encoded secret.
func (s *SystemKeyring) Save(creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := zkeyring.Set(ServiceName, credentialsKey, string(data)); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// Get retrieves the tunnel credentials from the system keyring.
// Returns ErrCredentialsNotFound if nothing is stored.
func (s *SystemKeyring) Get() (Credentials, error) {
	secret, err := zkeyring.Get(ServiceName, credentialsKey)
	if err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return Credentials{}, ErrCredentialsNotFound
		}
		return Credentials{}, fmt.Errorf("failed to retrieve credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(secret), &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the tunnel credentials from the system keyring.
// This operation is idempotent - it does not return an error if no
// credentials are stored.
func (s *SystemKeyring) Delete() error {
	err := zkeyring.Delete(ServiceName, credentialsKey)
	if err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// Compile-time check that SystemKeyring implements Store.
var _ Store = (*SystemKeyring)(nil)
