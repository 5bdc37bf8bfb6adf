package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// SignalError indicates a signal operation against a missing execution.
type SignalError struct {
	ExecutionID string
	Err         error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("signal operation failed for execution %s: %v", e.ExecutionID, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// SignalService appends to and consumes the execution signal log.
type SignalService struct {
	persistence persistence.Persistence
	bus         eventbus.EventBus
	logger      *slog.Logger
}

func NewSignalService(p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) *SignalService {
	return &SignalService{
		persistence: p,
		bus:         bus,
		logger:      logger,
	}
}

// Emit validates the execution exists and appends an unprocessed signal.
func (s *SignalService) Emit(ctx context.Context, executionID, signalType string, data map[string]any) (*models.Signal, error) {
	execution, err := s.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return nil, &SignalError{ExecutionID: executionID, Err: err}
	}

	signal := &models.Signal{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		Type:        signalType,
		Data:        data,
		ReceivedAt:  time.Now().UTC(),
	}

	if err := s.persistence.Signals().Append(ctx, signal); err != nil {
		return nil, &SignalError{ExecutionID: executionID, Err: err}
	}

	s.publishReceived(ctx, execution, signal)

	return signal, nil
}

// Pending returns unprocessed signals for the execution, optionally
// filtered by type.
func (s *SignalService) Pending(ctx context.Context, executionID, signalType string) ([]*models.Signal, error) {
	return s.persistence.Signals().Pending(ctx, executionID, signalType)
}

// MarkProcessed flips a signal to processed.
func (s *SignalService) MarkProcessed(ctx context.Context, signalID string) error {
	return s.persistence.Signals().MarkProcessed(ctx, signalID)
}

func (s *SignalService) publishReceived(ctx context.Context, execution *models.WorkflowExecution, signal *models.Signal) {
	if s.bus == nil {
		return
	}

	event := events.SignalReceived{
		BaseEvent: events.BaseEvent{
			ID:          s.bus.GenerateID(),
			Type:        events.SignalReceivedEvent,
			Timestamp:   time.Now().UTC(),
			WorkflowID:  execution.WorkflowID,
			ExecutionID: execution.ID,
		},
		SignalID:   signal.ID,
		SignalType: signal.Type,
		SignalData: signal.Data,
	}

	if err := s.bus.Publish(ctx, execution.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish signal event",
			"execution_id", execution.ID, "signal_id", signal.ID, "error", err)
	}
}

// SignalHandler reacts to one routed signal and returns handler output.
type SignalHandler func(ctx context.Context, signal *models.Signal) (map[string]any, error)

// SignalRouter dispatches signals by type. Unregistered types fall through
// to a default handler that echoes the payload, so routing never fails on
// an unknown type.
type SignalRouter struct {
	handlers map[string]SignalHandler
	fallback SignalHandler
}

func NewSignalRouter() *SignalRouter {
	return &SignalRouter{
		handlers: make(map[string]SignalHandler),
		fallback: func(_ context.Context, signal *models.Signal) (map[string]any, error) {
			return signal.Data, nil
		},
	}
}

// Register binds a handler to a signal type, replacing any previous one.
func (r *SignalRouter) Register(signalType string, handler SignalHandler) {
	r.handlers[signalType] = handler
}

// Route dispatches the signal to its type's handler or the default.
func (r *SignalRouter) Route(ctx context.Context, signal *models.Signal) (map[string]any, error) {
	handler, ok := r.handlers[signal.Type]
	if !ok {
		handler = r.fallback
	}

	return handler(ctx, signal)
}
