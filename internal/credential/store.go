package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/clubops/notify-engine/internal/provider"
	"github.com/clubops/notify-engine/internal/repository"
)

// Store holds provider credential sets with a read-through in-process cache.
// Writes replace whole cache entries under the lock, so concurrent readers
// observe either the old or the new token pair, never a mix.
type Store struct {
	repo repository.CredentialRepository

	mu    sync.RWMutex
	cache map[string]domain.CredentialSet

	armMu sync.Mutex
	arm   func(key string) bool
}

func NewStore(repo repository.CredentialRepository) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("credential repository is required")
	}

	return &Store{
		repo:  repo,
		cache: make(map[string]domain.CredentialSet),
	}, nil
}

// SetArmFunc installs the hook invoked when a refresh token is persisted for
// a set that had none before. Installed once at wiring time, before traffic.
func (s *Store) SetArmFunc(arm func(key string) bool) {
	s.armMu.Lock()
	defer s.armMu.Unlock()
	s.arm = arm
}

func (s *Store) Get(ctx context.Context, key string) (*domain.CredentialSet, error) {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	set, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = *set
	s.mu.Unlock()

	result := *set
	return &result, nil
}

// Save upserts a full credential set. An incoming refresh token arms the
// renewal schedule when the persisted set had none.
func (s *Store) Save(ctx context.Context, set *domain.CredentialSet) error {
	if set == nil {
		return fmt.Errorf("%w: credential set is required", domain.ErrValidation)
	}
	if err := set.Validate(); err != nil {
		return err
	}

	hadRefreshToken, err := s.hasPersistedRefreshToken(ctx, set.Key)
	if err != nil {
		return err
	}

	if err := s.repo.Save(ctx, set); err != nil {
		return fmt.Errorf("failed to save credential set: %w", err)
	}

	s.mu.Lock()
	s.cache[set.Key] = *set
	s.mu.Unlock()

	if !hadRefreshToken && set.RefreshToken != "" {
		s.armSet(set.Key)
	}
	return nil
}

// SetTokens overwrites the token pair after a successful renewal.
func (s *Store) SetTokens(ctx context.Context, key, accessToken, refreshToken string) error {
	if err := s.repo.UpdateTokens(ctx, key, accessToken, refreshToken); err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		cached.AccessToken = accessToken
		cached.RefreshToken = refreshToken
		s.cache[key] = cached
	}
	s.mu.Unlock()

	return nil
}

// SetRefreshToken writes a refresh token for an existing set. The first
// write for a set that had no refresh token arms the renewal schedule;
// later writes leave the existing schedule in place.
func (s *Store) SetRefreshToken(ctx context.Context, key, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", domain.ErrValidation)
	}

	set, err := s.repo.Get(ctx, key)
	if err != nil {
		return err
	}

	hadRefreshToken := set.RefreshToken != ""
	set.RefreshToken = refreshToken

	if err := s.repo.Save(ctx, set); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	s.mu.Lock()
	s.cache[key] = *set
	s.mu.Unlock()

	if !hadRefreshToken {
		s.armSet(key)
	}
	return nil
}

// ListArmed returns every persisted set that already carries a refresh
// token, so renewal schedules can be rebuilt after a restart.
func (s *Store) ListArmed(ctx context.Context) ([]domain.CredentialSet, error) {
	return s.repo.ListWithRefreshToken(ctx)
}

func (s *Store) hasPersistedRefreshToken(ctx context.Context, key string) (bool, error) {
	existing, err := s.repo.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.RefreshToken != "", nil
}

func (s *Store) armSet(key string) {
	s.armMu.Lock()
	arm := s.arm
	s.armMu.Unlock()

	if arm != nil {
		arm(key)
	}
}

var _ provider.TokenSource = (*KeyTokenSource)(nil)

// KeyTokenSource exposes one credential set's access token to the provider
// gateway.
type KeyTokenSource struct {
	store *Store
	key   string
}

func (s *Store) TokenSource(key string) *KeyTokenSource {
	return &KeyTokenSource{store: s, key: key}
}

func (t *KeyTokenSource) AccessToken(ctx context.Context) (string, error) {
	set, err := t.store.Get(ctx, t.key)
	if err != nil {
		return "", fmt.Errorf("failed to load credential set %q: %w", t.key, err)
	}
	if set.AccessToken == "" {
		return "", fmt.Errorf("credential set %q has no access token", t.key)
	}
	return set.AccessToken, nil
}
