package profile

import (
	"context"
	"log/slog"
)

// Source resolves provider profiles for the engine: local read model
// first, then the profile service for providers we have never seen
// (warming the read model on the way), then the built-in default. A
// stale or default snapshot is acceptable; booking re-validates against
// the appointment store regardless.
type Source struct {
	repo   *Repository
	client Client
	logger *slog.Logger
}

func NewSource(repo *Repository, client Client, logger *slog.Logger) *Source {
	return &Source{repo: repo, client: client, logger: logger}
}

func (s *Source) Get(ctx context.Context, providerID string) (ProviderProfile, error) {
	prof, found, err := s.repo.Lookup(ctx, providerID)
	if err != nil {
		return ProviderProfile{}, err
	}
	if found {
		return prof, nil
	}

	if s.client != nil {
		fetched, err := s.client.FetchProfile(ctx, providerID)
		if err == nil {
			if err := s.repo.Upsert(ctx, fetched); err != nil {
				s.logger.Warn("profile read model warm failed", "provider_id", providerID, "err", err)
			}
			return fetched, nil
		}
		s.logger.Warn("profile fetch failed; using defaults", "provider_id", providerID, "err", err)
	}
	return Default(providerID), nil
}
