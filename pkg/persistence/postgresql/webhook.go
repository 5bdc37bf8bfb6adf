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

// WebhookSubscriptionRepository handles webhook subscription database operations.
type WebhookSubscriptionRepository struct {
	db *sql.DB
}

func (r *WebhookSubscriptionRepository) Save(ctx context.Context, sub *models.WebhookSubscription) error {
	headersJSON, err := json.Marshal(sub.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	filtersJSON, err := json.Marshal(sub.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	query := `
		INSERT INTO webhook_subscriptions (
			id, workflow_id, webhook_path, secret, headers, filters,
			active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			webhook_path = EXCLUDED.webhook_path,
			secret = EXCLUDED.secret,
			headers = EXCLUDED.headers,
			filters = EXCLUDED.filters,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		sub.ID,
		sub.WorkflowID,
		sub.Path,
		sub.Secret,
		headersJSON,
		filtersJSON,
		sub.Active,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save webhook subscription %s: %w", sub.ID, err)
	}

	return nil
}

const subscriptionColumns = `
	id, workflow_id, webhook_path, secret, headers, filters,
	active, created_at, updated_at
`

func (r *WebhookSubscriptionRepository) GetByPath(ctx context.Context, path string) (*models.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE webhook_path = $1`

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSubscriptionNotFound
		}

		return nil, fmt.Errorf("failed to get webhook subscription for path %s: %w", path, err)
	}

	return sub, nil
}

func (r *WebhookSubscriptionRepository) GetByWorkflowID(ctx context.Context, workflowID string) ([]*models.WebhookSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE workflow_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.WebhookSubscription

	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook subscription: %w", err)
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (r *WebhookSubscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook subscription %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete webhook subscription %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrSubscriptionNotFound
	}

	return nil
}

func scanSubscription(row rowScanner) (*models.WebhookSubscription, error) {
	var (
		sub         models.WebhookSubscription
		headersJSON []byte
		filtersJSON []byte
	)

	err := row.Scan(
		&sub.ID,
		&sub.WorkflowID,
		&sub.Path,
		&sub.Secret,
		&headersJSON,
		&filtersJSON,
		&sub.Active,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(headersJSON) > 0 && string(headersJSON) != "null" {
		if err := json.Unmarshal(headersJSON, &sub.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}

	if len(filtersJSON) > 0 && string(filtersJSON) != "null" {
		if err := json.Unmarshal(filtersJSON, &sub.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
		}
	}

	return &sub, nil
}
