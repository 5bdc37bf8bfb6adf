package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/moogar0880/problems"

	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// TriggerError wraps a webhook delivery that could not start an execution.
type TriggerError struct {
	Path string
	Err  error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("webhook trigger failed for path %s: %v", e.Path, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

// Gateway is the HTTP entrypoint for webhook-triggered executions. Each
// registered subscription exposes POST /webhooks/<path>.
type Gateway struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewGateway(eng *engine.Engine, p persistence.Persistence, logger *slog.Logger) *Gateway {
	return &Gateway{
		engine:      eng,
		persistence: p,
		logger:      logger.With("module", "webhook_gateway"),
	}
}

func (g *Gateway) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Post("/webhooks/:path", g.HandleWebhook)

	return app
}

func (g *Gateway) Start(port int) error {
	return g.App().Listen(":" + strconv.Itoa(port))
}

// HandleWebhook processes one inbound delivery: subscription lookup,
// signature check over the raw body, header and payload filtering, then
// execution creation. Deliveries filtered out are acknowledged without
// creating an execution so senders do not retry them.
func (g *Gateway) HandleWebhook(c fiber.Ctx) error {
	path := c.Params("path")

	subscription, err := g.persistence.WebhookSubscriptions().GetByPath(c.Context(), path)
	if err != nil {
		if errors.Is(err, persistence.ErrSubscriptionNotFound) {
			return notFound(c, "webhook not found")
		}

		g.logger.Error("Webhook subscription lookup failed", "path", path, "error", err)

		return internalError(c, err)
	}

	if !subscription.Active {
		return notFound(c, "webhook not found")
	}

	body := c.Body()

	if subscription.Secret != "" {
		if err := ValidateSignature(subscription.Secret, body, c.Get(SignatureHeader)); err != nil {
			g.logger.Warn("Webhook signature rejected", "path", path, "error", err)

			return unauthorized(c, "invalid signature")
		}
	}

	for name, expected := range subscription.Headers {
		if c.Get(name) != expected {
			return ignored(c)
		}
	}

	payload := make(map[string]any)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return badRequest(c, "invalid JSON in request body")
		}
	}

	if !MatchFilters(payload, subscription.Filters) {
		return ignored(c)
	}

	trigger := models.TriggerData{
		Type:    "webhook",
		Source:  subscription.Path,
		Payload: payload,
	}

	executionID, err := g.engine.CreateExecution(c.Context(), subscription.WorkflowID, trigger)
	if err != nil {
		return g.handleTriggerError(c, &TriggerError{Path: path, Err: err})
	}

	g.logger.Info("Webhook accepted",
		"path", path,
		"workflow_id", subscription.WorkflowID,
		"execution_id", executionID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":       "accepted",
		"execution_id": executionID,
	})
}

func (g *Gateway) handleTriggerError(c fiber.Ctx, err *TriggerError) error {
	var limitErr *engine.ResourceLimitError

	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case errors.Is(err, persistence.ErrWorkflowInactive):
		return conflict(c, "workflow is inactive")

	case errors.As(err, &limitErr):
		return tooManyRequests(c, limitErr.Error())

	default:
		g.logger.Error("Webhook trigger failed", "path", err.Path, "error", err)

		return internalError(c, err)
	}
}

func ignored(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ignored",
	})
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("invalid_signature").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func tooManyRequests(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(429).
		WithInstance(c.Path()).
		WithType("limit_exceeded").
		WithDetail(detail)

	return c.Status(fiber.StatusTooManyRequests).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}
