package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/clubops/notify-engine/internal/observability"
	"github.com/clubops/notify-engine/internal/provider"
	"go.uber.org/zap"
)

const (
	defaultRenewalInterval = 24 * time.Hour
	defaultRenewalTimeout  = 30 * time.Second
)

// Renewer keeps credential sets alive by exchanging their refresh token on
// a fixed schedule. A failed exchange leaves the stored tokens untouched;
// the next scheduled tick simply tries again.
type Renewer struct {
	store     *Store
	client    provider.Client
	scheduler Scheduler
	interval  time.Duration
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewRenewer(
	store *Store,
	client provider.Client,
	scheduler Scheduler,
	interval time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*Renewer, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if interval <= 0 {
		interval = defaultRenewalInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Renewer{
		store:     store,
		client:    client,
		scheduler: scheduler,
		interval:  interval,
		timeout:   defaultRenewalTimeout,
		metrics:   metrics,
		logger:    logger,
	}
	store.SetArmFunc(r.Arm)

	return r, nil
}

// Start rebuilds renewal schedules for every set that already has a
// refresh token. Called once at boot.
func (r *Renewer) Start(ctx context.Context) error {
	sets, err := r.store.ListArmed(ctx)
	if err != nil {
		return fmt.Errorf("failed to list credential sets for renewal: %w", err)
	}

	for i := range sets {
		if r.Arm(sets[i].Key) {
			r.logger.Info("credential renewal schedule armed", zap.String("key", sets[i].Key))
		}
	}
	return nil
}

// Arm schedules the recurring renewal task for a key. Arming an
// already-armed key is a no-op.
func (r *Renewer) Arm(key string) bool {
	return r.scheduler.Schedule(key, r.interval, func(ctx context.Context) {
		r.renewTick(ctx, key)
	})
}

func (r *Renewer) renewTick(ctx context.Context, key string) {
	tickCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.Renew(tickCtx, key); err != nil {
		r.metrics.IncRenewal("failure")
		r.logger.Error("credential renewal failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	r.metrics.IncRenewal("success")
	r.logger.Info("credential renewed", zap.String("key", key))
}

// Renew exchanges the set's refresh token and persists the new pair. On
// any failure the stored tokens are left as they were.
func (r *Renewer) Renew(ctx context.Context, key string) error {
	set, err := r.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load credential set: %w", err)
	}
	if set.RefreshToken == "" {
		return fmt.Errorf("credential set %q has no refresh token", key)
	}

	pair, err := r.client.RefreshToken(ctx, set.AppID, set.Secret, set.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh token exchange failed: %w", err)
	}
	if pair == nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		return fmt.Errorf("provider returned an incomplete token pair")
	}

	if err := r.store.SetTokens(ctx, key, pair.AccessToken, pair.RefreshToken); err != nil {
		return err
	}
	return nil
}
