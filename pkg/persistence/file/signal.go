package file

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

const signalEntity = "signals"

// SignalRepository stores execution signals as JSON files.
type SignalRepository struct {
	store *Persistence
}

func (r *SignalRepository) Append(_ context.Context, signal *models.Signal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.writeJSON(signalEntity, signal.ID, signal)
}

func (r *SignalRepository) GetByID(_ context.Context, id string) (*models.Signal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var signal models.Signal
	if err := r.store.readJSON(signalEntity, id, &signal, persistence.ErrSignalNotFound); err != nil {
		return nil, err
	}

	return &signal, nil
}

func (r *SignalRepository) Pending(_ context.Context, executionID, signalType string) ([]*models.Signal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var signals []*models.Signal

	err := r.store.listJSON(signalEntity, func(data []byte) error {
		var signal models.Signal
		if err := json.Unmarshal(data, &signal); err != nil {
			return err
		}

		if signal.Processed || signal.ExecutionID != executionID {
			return nil
		}

		if signalType != "" && signal.Type != signalType {
			return nil
		}

		signals = append(signals, &signal)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(signals, func(i, j int) bool {
		return signals[i].ReceivedAt.Before(signals[j].ReceivedAt)
	})

	return signals, nil
}

func (r *SignalRepository) MarkProcessed(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var signal models.Signal
	if err := r.store.readJSON(signalEntity, id, &signal, persistence.ErrSignalNotFound); err != nil {
		return err
	}

	if signal.Processed {
		return nil
	}

	signal.Processed = true

	return r.store.writeJSON(signalEntity, id, &signal)
}
