package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// SignalRepository handles the append-only signal log.
type SignalRepository struct {
	db *sql.DB
}

func (r *SignalRepository) Append(ctx context.Context, signal *models.Signal) error {
	dataJSON, err := json.Marshal(signal.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal signal data: %w", err)
	}

	query := `
		INSERT INTO workflow_signals (id, execution_id, signal_type, signal_data, received_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		signal.ID,
		signal.ExecutionID,
		signal.Type,
		dataJSON,
		signal.ReceivedAt,
		signal.Processed,
	)
	if err != nil {
		return fmt.Errorf("failed to append signal %s: %w", signal.ID, err)
	}

	return nil
}

const signalColumns = `id, execution_id, signal_type, signal_data, received_at, processed`

func (r *SignalRepository) GetByID(ctx context.Context, id string) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM workflow_signals WHERE id = $1`

	signal, err := scanSignal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSignalNotFound
		}

		return nil, fmt.Errorf("failed to get signal %s: %w", id, err)
	}

	return signal, nil
}

func (r *SignalRepository) Pending(ctx context.Context, executionID, signalType string) ([]*models.Signal, error) {
	query := `SELECT ` + signalColumns + `
		FROM workflow_signals
		WHERE execution_id = $1 AND NOT processed`

	args := []any{executionID}

	if signalType != "" {
		query += ` AND signal_type = $2`

		args = append(args, signalType)
	}

	query += ` ORDER BY received_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.Signal

	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		signals = append(signals, signal)
	}

	return signals, rows.Err()
}

func (r *SignalRepository) MarkProcessed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflow_signals SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark signal %s processed: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark signal %s processed: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrSignalNotFound
	}

	return nil
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var (
		signal   models.Signal
		dataJSON []byte
	)

	err := row.Scan(
		&signal.ID,
		&signal.ExecutionID,
		&signal.Type,
		&dataJSON,
		&signal.ReceivedAt,
		&signal.Processed,
	)
	if err != nil {
		return nil, err
	}

	if len(dataJSON) > 0 && string(dataJSON) != "null" {
		if err := json.Unmarshal(dataJSON, &signal.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal data: %w", err)
		}
	}

	return &signal, nil
}
