// Package file provides file-based persistence of onboarding progress, one JSON document per tenant.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukex/onboarding/pkg/models"
	"github.com/dukex/onboarding/pkg/persistence"
)

const progressDir = "progress"

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Progress(ctx context.Context, tenantID string) (*models.OnboardingProgress, error) {
	if err := persistence.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	progress, err := fp.read(tenantID)
	if err == nil {
		return progress, nil
	}

	if !errors.Is(err, persistence.ErrProgressNotFound) {
		return nil, err
	}

	progress = models.NewProgress()

	err = fp.write(tenantID, progress)
	if err != nil {
		return nil, err
	}

	return progress, nil
}

func (fp *Persistence) SaveProgress(_ context.Context, tenantID string, progress *models.OnboardingProgress) error {
	if err := persistence.ValidateTenantID(tenantID); err != nil {
		return err
	}

	if progress == nil {
		return persistence.NewProgressError("SaveProgress", tenantID, persistence.ErrNilProgress)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.write(tenantID, progress)
}

// ProgressByStatus scans every stored document; results are ordered by tenant id.
func (fp *Persistence) ProgressByStatus(_ context.Context, status models.Status) ([]*persistence.TenantProgress, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(path.Join(fp.root, progressDir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list progress files: %w", err)
	}

	sort.Strings(jsonFiles)

	result := make([]*persistence.TenantProgress, 0)

	for _, file := range jsonFiles {
		tenantID := strings.TrimSuffix(file, ".json")

		progress, err := fp.read(tenantID)
		if err != nil {
			return nil, err
		}

		if progress.Status != status {
			continue
		}

		result = append(result, &persistence.TenantProgress{TenantID: tenantID, Progress: progress})
	}

	return result, nil
}

func (fp *Persistence) filePath(tenantID string) string {
	return filepath.Clean(path.Join(fp.root, progressDir, tenantID+".json"))
}

func (fp *Persistence) read(tenantID string) (*models.OnboardingProgress, error) {
	body, err := os.ReadFile(fp.filePath(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewProgressError("Progress", tenantID, persistence.ErrProgressNotFound)
		}

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

// write replaces the document through a temp file rename so readers never see
// a partial document.
func (fp *Persistence) write(tenantID string, progress *models.OnboardingProgress) error {
	dir := path.Join(fp.root, progressDir)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	progress.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress of tenant %s: %w", tenantID, err)
	}

	tmp, err := os.CreateTemp(dir, tenantID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write progress of tenant %s: %w", tenantID, err)
	}

	return os.Rename(tmp.Name(), fp.filePath(tenantID))
}
