package file

import (
	"context"
	"encoding/json"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

const webhookEntity = "webhook_subscriptions"

// WebhookSubscriptionRepository stores webhook subscriptions as JSON files.
type WebhookSubscriptionRepository struct {
	store *Persistence
}

func (r *WebhookSubscriptionRepository) Save(_ context.Context, sub *models.WebhookSubscription) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.writeJSON(webhookEntity, sub.ID, sub)
}

func (r *WebhookSubscriptionRepository) GetByPath(_ context.Context, path string) (*models.WebhookSubscription, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var found *models.WebhookSubscription

	err := r.store.listJSON(webhookEntity, func(data []byte) error {
		var sub models.WebhookSubscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return err
		}

		if sub.Path == path {
			found = &sub
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrSubscriptionNotFound
	}

	return found, nil
}

func (r *WebhookSubscriptionRepository) GetByWorkflowID(_ context.Context, workflowID string) ([]*models.WebhookSubscription, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var subs []*models.WebhookSubscription

	err := r.store.listJSON(webhookEntity, func(data []byte) error {
		var sub models.WebhookSubscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return err
		}

		if sub.WorkflowID == workflowID {
			subs = append(subs, &sub)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *WebhookSubscriptionRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.removeJSON(webhookEntity, id, persistence.ErrSubscriptionNotFound)
}
