// Package file provides a JSON-on-disk persistence implementation. It is
// used by tests and local development; production deployments use the
// postgresql implementation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loomworks/loom/pkg/persistence"
)

// Persistence implements persistence.Persistence using the file system. One
// process-wide mutex serializes writers; compare-and-set transitions rely on
// it for atomicity.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	scheduleRepo  *ScheduleRepository
	signalRepo    *SignalRepository
	webhookRepo   *WebhookSubscriptionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts plain paths and file:// URLs.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.workflowRepo = &WorkflowRepository{store: fp}
	fp.executionRepo = &ExecutionRepository{store: fp}
	fp.scheduleRepo = &ScheduleRepository{store: fp}
	fp.signalRepo = &SignalRepository{store: fp}
	fp.webhookRepo = &WebhookSubscriptionRepository{store: fp}

	return fp
}

func (fp *Persistence) Workflows() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) Schedules() persistence.ScheduleRepository {
	return fp.scheduleRepo
}

func (fp *Persistence) Signals() persistence.SignalRepository {
	return fp.signalRepo
}

func (fp *Persistence) WebhookSubscriptions() persistence.WebhookSubscriptionRepository {
	return fp.webhookRepo
}

// Close performs any necessary cleanup. Nothing to do for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory is usable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(fp.root, 0o755); err != nil {
		return fmt.Errorf("file persistence root not writable: %w", err)
	}

	return nil
}

func (fp *Persistence) entityDir(entity string) string {
	return filepath.Join(fp.root, entity)
}

// writeJSON persists one record under <root>/<entity>/<id>.json. Callers
// must hold the write lock.
func (fp *Persistence) writeJSON(entity, id string, record any) error {
	dir := fp.entityDir(entity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", entity, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", entity, id, err)
	}

	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", entity, id, err)
	}

	return nil
}

// readJSON loads one record, reporting notFound when the file is missing.
// Callers must hold at least the read lock.
func (fp *Persistence) readJSON(entity, id string, record any, notFound error) error {
	path := filepath.Join(fp.entityDir(entity), id+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", entity, id, err)
	}

	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", entity, id, err)
	}

	return nil
}

// listJSON reads every record of an entity, decoding each file through
// decode. Callers must hold at least the read lock.
func (fp *Persistence) listJSON(entity string, decode func(data []byte) error) error {
	dir := fp.entityDir(entity)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to list %s directory: %w", entity, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s record %s: %w", entity, entry.Name(), err)
		}

		if err := decode(data); err != nil {
			return fmt.Errorf("failed to decode %s record %s: %w", entity, entry.Name(), err)
		}
	}

	return nil
}

// removeJSON deletes one record, reporting notFound when absent. Callers
// must hold the write lock.
func (fp *Persistence) removeJSON(entity, id string, notFound error) error {
	path := filepath.Join(fp.entityDir(entity), id+".json")

	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return notFound
	}

	return err
}
