package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	tempDir := t.TempDir()

	p := NewPersistence("file://" + tempDir)

	assert.Equal(t, tempDir, p.root)
	require.NoError(t, p.HealthCheck(context.Background()))
	require.NoError(t, p.Close(context.Background()))
}

func TestHealthCheck_MissingRoot(t *testing.T) {
	p := NewPersistence(filepath.Join(t.TempDir(), "missing"))

	assert.ErrorIs(t, p.HealthCheck(context.Background()), os.ErrNotExist)
}

func TestProgress_CreatedOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	progress, err := p.Progress(ctx, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 1, progress.CurrentStep)
	assert.Equal(t, models.StatusNotStarted, progress.Status)
	assert.Equal(t, 0, progress.CompletedSteps)
	assert.Empty(t, progress.SavedData)
	assert.False(t, progress.OnboardingCompleted)

	_, err = os.Stat(p.filePath("tenant-1"))
	require.NoError(t, err)
}

func TestSaveProgress_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	progress := &models.OnboardingProgress{
		CurrentStep:    3,
		Status:         "services",
		CompletedSteps: 2,
		SavedData:      models.SavedData{"name": "Acme", "services": []any{map[string]any{"name": "Cut"}}},
	}
	require.NoError(t, p.SaveProgress(ctx, "tenant-1", progress))

	loaded, err := p.Progress(ctx, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 3, loaded.CurrentStep)
	assert.Equal(t, models.Status("services"), loaded.Status)
	assert.Equal(t, 2, loaded.CompletedSteps)
	assert.Equal(t, "Acme", loaded.SavedData["name"])
	assert.False(t, loaded.UpdatedAt.IsZero())

	matches, err := filepath.Glob(filepath.Join(p.root, progressDir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveProgress_Rejects(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	err := p.SaveProgress(ctx, "../escape", models.NewProgress())
	require.ErrorIs(t, err, persistence.ErrInvalidTenantID)

	err = p.SaveProgress(ctx, "tenant-1", nil)
	require.ErrorIs(t, err, persistence.ErrNilProgress)

	_, err = p.Progress(ctx, "")
	require.ErrorIs(t, err, persistence.ErrInvalidTenantID)
}

func TestProgressByStatus(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	provisioning := models.NewProgress()
	provisioning.Status = models.StatusProvisioning
	provisioning.CurrentStep = 7

	require.NoError(t, p.SaveProgress(ctx, "b-tenant", provisioning.Clone()))
	require.NoError(t, p.SaveProgress(ctx, "a-tenant", provisioning.Clone()))
	require.NoError(t, p.SaveProgress(ctx, "c-tenant", models.NewProgress()))

	result, err := p.ProgressByStatus(ctx, models.StatusProvisioning)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "a-tenant", result[0].TenantID)
	assert.Equal(t, "b-tenant", result[1].TenantID)
	assert.Equal(t, 7, result[0].Progress.CurrentStep)

	empty, err := NewPersistence(t.TempDir()).ProgressByStatus(ctx, models.StatusReady)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
