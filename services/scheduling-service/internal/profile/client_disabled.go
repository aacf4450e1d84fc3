//go:build !protogen

package profile

import "context"

// Client fetches the authoritative profile from the profile service.
// Used to warm the local read model when it has no row yet.
type Client interface {
	FetchProfile(ctx context.Context, providerID string) (ProviderProfile, error)
}

func NewClient(_ string) (Client, error) {
	return nil, nil
}
