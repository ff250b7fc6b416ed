// Package postgresql provides PostgreSQL persistence of onboarding progress.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/dukex/onboarding/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence opens the database and brings its schema up to date.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

const selectProgress = `
	SELECT
		tenant_id
	  , current_step
	  , status
	  , completed_steps
	  , saved_data
	  , onboarding_completed
	  , updated_at
	FROM onboarding_progress
`

func (p *Persistence) Progress(ctx context.Context, tenantID string) (*models.OnboardingProgress, error) {
	if err := persistence.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	// first access creates the row; concurrent creators are absorbed by the conflict clause
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO onboarding_progress (tenant_id) VALUES ($1)
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress of tenant %s: %w", tenantID, err)
	}

	row := p.db.QueryRowContext(ctx, selectProgress+" WHERE tenant_id = $1", tenantID)

	record, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewProgressError("Progress", tenantID, persistence.ErrProgressNotFound)
		}

		return nil, fmt.Errorf("failed to scan progress of tenant %s: %w", tenantID, err)
	}

	return record.Progress, nil
}

func (p *Persistence) SaveProgress(ctx context.Context, tenantID string, progress *models.OnboardingProgress) error {
	if err := persistence.ValidateTenantID(tenantID); err != nil {
		return err
	}

	if progress == nil {
		return persistence.NewProgressError("SaveProgress", tenantID, persistence.ErrNilProgress)
	}

	savedData := progress.SavedData
	if savedData == nil {
		savedData = models.SavedData{}
	}

	savedDataJSON, err := json.Marshal(savedData)
	if err != nil {
		return fmt.Errorf("failed to marshal saved data: %w", err)
	}

	progress.UpdatedAt = time.Now().UTC()

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO onboarding_progress (tenant_id, current_step, status, completed_steps,
			saved_data, onboarding_completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			status = EXCLUDED.status,
			completed_steps = EXCLUDED.completed_steps,
			saved_data = EXCLUDED.saved_data,
			onboarding_completed = EXCLUDED.onboarding_completed,
			updated_at = EXCLUDED.updated_at
	`,
		tenantID,
		progress.CurrentStep,
		string(progress.Status),
		progress.CompletedSteps,
		savedDataJSON,
		progress.OnboardingCompleted,
		progress.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress of tenant %s: %w", tenantID, err)
	}

	p.logger.DebugContext(ctx, "progress saved", "tenant_id", tenantID, "status", progress.Status)

	return nil
}

func (p *Persistence) ProgressByStatus(ctx context.Context, status models.Status) ([]*persistence.TenantProgress, error) {
	rows, err := p.db.QueryContext(ctx, selectProgress+" WHERE status = $1 ORDER BY tenant_id", string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query progress by status: %w", err)
	}

	defer func() { _ = rows.Close() }()

	result := make([]*persistence.TenantProgress, 0)

	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}

		result = append(result, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate progress rows: %w", err)
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (*persistence.TenantProgress, error) {
	var (
		record        persistence.TenantProgress
		progress      models.OnboardingProgress
		status        string
		savedDataJSON []byte
	)

	err := row.Scan(
		&record.TenantID,
		&progress.CurrentStep,
		&status,
		&progress.CompletedSteps,
		&savedDataJSON,
		&progress.OnboardingCompleted,
		&progress.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	progress.Status = models.Status(status)
	progress.UpdatedAt = progress.UpdatedAt.UTC()

	err = json.Unmarshal(savedDataJSON, &progress.SavedData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal saved data: %w", err)
	}

	if progress.SavedData == nil {
		progress.SavedData = models.SavedData{}
	}

	record.Progress = &progress

	return &record, nil
}
