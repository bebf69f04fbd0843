package session

import (
	"context"
	"fmt"
	"net/url"
)

// PrefetchRPC is the backend surface the resolver needs.
type PrefetchRPC interface {
	// PrefetchConfig downloads a remote configuration through the active
	// tunnel and returns a local path.
	PrefetchConfig(ctx context.Context, remoteLocator string) (string, error)
}

// IsRemoteLocator reports whether a locator is a remote URL rather than a
// local file reference.
func IsRemoteLocator(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ConfigResolver decides whether a server locator is immediately usable or
// must first be fetched through the active tunnel. With the kill switch
// active, a direct fetch by the backend would be blocked by the very firewall
// rules the switch installs, so a remote locator is only usable while a
// tunnel exists to prefetch it through.
type ConfigResolver struct {
	rpc PrefetchRPC
}

// NewConfigResolver creates a resolver backed by the given RPC surface.
func NewConfigResolver(rpc PrefetchRPC) *ConfigResolver {
	return &ConfigResolver{rpc: rpc}
}

// Resolve returns a locator safe to hand to the backend.
//
// Local locators pass through. Remote locators pass through while the kill
// switch is off. With the kill switch on, Resolve returns
// ErrKillSwitchPrecondition unless the tunnel is up, in which case the
// configuration is prefetched through it and the local path returned.
func (r *ConfigResolver) Resolve(ctx context.Context, locator string, killSwitchEnabled bool, status Status) (string, error) {
	if !IsRemoteLocator(locator) {
		return locator, nil
	}

	if !killSwitchEnabled {
		return locator, nil
	}

	if status != StatusConnected {
		return "", ErrKillSwitchPrecondition
	}

	localPath, err := r.rpc.PrefetchConfig(ctx, locator)
	if err != nil {
		return "", fmt.Errorf("failed to prefetch configuration: %w", err)
	}
	return localPath, nil
}
