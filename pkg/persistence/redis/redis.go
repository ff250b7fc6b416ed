// Package redis provides Redis persistence of onboarding progress: one JSON
// document per tenant plus a set per status used as a secondary index.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	progressKeyPrefix = "onboarding:progress:"
	statusKeyPrefix   = "onboarding:status:"

	maxSaveAttempts = 5
)

var ErrSaveConflict = errors.New("concurrent progress update")

type Persistence struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPersistence connects using a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewPersistenceWithClient(logger, client), nil
}

func NewPersistenceWithClient(logger *slog.Logger, client *redis.Client) *Persistence {
	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
	}
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func progressKey(tenantID string) string {
	return progressKeyPrefix + tenantID
}

func statusKey(status models.Status) string {
	return statusKeyPrefix + string(status)
}

func (p *Persistence) Progress(ctx context.Context, tenantID string) (*models.OnboardingProgress, error) {
	if err := persistence.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	progress, err := p.get(ctx, p.client, tenantID)
	if err == nil {
		return progress, nil
	}

	if !errors.Is(err, persistence.ErrProgressNotFound) {
		return nil, err
	}

	progress = models.NewProgress()
	progress.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(progress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress of tenant %s: %w", tenantID, err)
	}

	created, err := p.client.SetNX(ctx, progressKey(tenantID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create progress of tenant %s: %w", tenantID, err)
	}

	if !created {
		// lost the race against another first access
		return p.get(ctx, p.client, tenantID)
	}

	err = p.client.SAdd(ctx, statusKey(progress.Status), tenantID).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to index progress of tenant %s: %w", tenantID, err)
	}

	return progress, nil
}

// SaveProgress replaces the document and moves the tenant between status
// sets in one MULTI, retrying when the document changes underneath.
func (p *Persistence) SaveProgress(ctx context.Context, tenantID string, progress *models.OnboardingProgress) error {
	if err := persistence.ValidateTenantID(tenantID); err != nil {
		return err
	}

	if progress == nil {
		return persistence.NewProgressError("SaveProgress", tenantID, persistence.ErrNilProgress)
	}

	key := progressKey(tenantID)

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		err := p.client.Watch(ctx, func(tx *redis.Tx) error {
			previous, err := p.get(ctx, tx, tenantID)
			if err != nil && !errors.Is(err, persistence.ErrProgressNotFound) {
				return err
			}

			progress.UpdatedAt = time.Now().UTC()

			data, err := json.Marshal(progress)
			if err != nil {
				return fmt.Errorf("failed to marshal progress of tenant %s: %w", tenantID, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)

				if previous != nil && previous.Status != progress.Status {
					pipe.SRem(ctx, statusKey(previous.Status), tenantID)
				}

				pipe.SAdd(ctx, statusKey(progress.Status), tenantID)

				return nil
			})

			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			p.logger.DebugContext(ctx, "progress changed during save, retrying", "tenant_id", tenantID, "attempt", attempt)

			continue
		}

		if err != nil {
			return fmt.Errorf("failed to save progress of tenant %s: %w", tenantID, err)
		}

		return nil
	}

	return persistence.NewProgressError("SaveProgress", tenantID, ErrSaveConflict)
}

func (p *Persistence) ProgressByStatus(ctx context.Context, status models.Status) ([]*persistence.TenantProgress, error) {
	tenantIDs, err := p.client.SMembers(ctx, statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with status %s: %w", status, err)
	}

	slices.Sort(tenantIDs)

	result := make([]*persistence.TenantProgress, 0, len(tenantIDs))

	for _, tenantID := range tenantIDs {
		progress, err := p.get(ctx, p.client, tenantID)
		if errors.Is(err, persistence.ErrProgressNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		// the index can lag a document written by an older process
		if progress.Status != status {
			continue
		}

		result = append(result, &persistence.TenantProgress{TenantID: tenantID, Progress: progress})
	}

	return result, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (p *Persistence) get(ctx context.Context, cmd getter, tenantID string) (*models.OnboardingProgress, error) {
	body, err := cmd.Get(ctx, progressKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewProgressError("Progress", tenantID, persistence.ErrProgressNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read progress of tenant %s: %w", tenantID, err)
	}

	var progress models.OnboardingProgress

	err = json.Unmarshal(body, &progress)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress of tenant %s: %w", tenantID, err)
	}

	if progress.SavedData == nil {
		progress.SavedData = models.SavedData{}
	}

	return &progress, nil
}
