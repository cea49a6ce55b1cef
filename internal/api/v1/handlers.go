package apiv1

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/revflowhq/revflow/app/repository"
	"github.com/revflowhq/revflow/internal/pkg/inbound"
	"github.com/revflowhq/revflow/internal/pkg/middleware"
	"github.com/revflowhq/revflow/internal/pkg/taskqueue"
)

// APIServer implements the v1 API surface
type APIServer struct {
	receiver *inbound.Receiver
}

// NewAPIServer creates a new API server instance wired to the global
// repositories and task queue
func NewAPIServer() *APIServer {
	repos := repository.GetGlobalRepositories()
	return &APIServer{
		receiver: inbound.NewReceiver(repos.Event, taskqueue.GetManager().GetQueue()),
	}
}

// NewAPIServerWith creates an API server with explicit dependencies (tests)
func NewAPIServerWith(receiver *inbound.Receiver) *APIServer {
	return &APIServer{receiver: receiver}
}

// Pong is the ping response shape
type Pong struct {
	Ping string `json:"ping"`
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostInboundEvent accepts an external claim event, persists it and enqueues
// asynchronous evaluation. Returns 202 with correlation identifiers; the
// rules engine never runs on the request path.
func (s *APIServer) PostInboundEvent(c *fiber.Ctx) error {
	customer := middleware.CustomerFromContext(c)
	if customer == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Customer not resolved"})
	}

	event, job, err := s.receiver.Receive(c.UserContext(), customer, c.Body())
	if err != nil {
		var verr *inbound.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_failed",
				"message": "Event submission is structurally invalid",
				"reasons": verr.Reasons,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to accept event"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_uuid": event.UUID,
		"job_id":     job.ID,
	})
}

// GetDeliveryStatus returns the lifecycle state of one outbound delivery,
// looked up by its idempotency key. Customers can only see their own rows.
func (s *APIServer) GetDeliveryStatus(c *fiber.Ctx) error {
	customer := middleware.CustomerFromContext(c)
	if customer == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Customer not resolved"})
	}

	requestID := c.Params("request_id")
	if requestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "request_id missing"})
	}

	repo := repository.GetGlobalFactory().GetWebhookDeliveryRepository()
	delivery, err := repo.GetByRequestID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Delivery not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Delivery lookup failed"})
	}
	if delivery.CustomerID != customer.ID {
		// Do not leak other tenants' request ids.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Delivery not found"})
	}

	return c.JSON(fiber.Map{
		"request_id":       delivery.RequestID,
		"event_type":       delivery.EventType,
		"status":           delivery.Status,
		"attempt_count":    delivery.AttemptCount,
		"max_attempts":     delivery.MaxAttempts,
		"next_attempt_at":  delivery.NextAttemptAt,
		"last_error":       delivery.LastError,
		"last_http_status": delivery.LastHTTPStatus,
		"delivered_at":     delivery.DeliveredAt,
		"created_at":       delivery.CreatedAt,
	})
}

const defaultPageSize = 50
const maxPageSize = 200

// GetExecutions lists the customer's audit trail, newest first, paginated.
func (s *APIServer) GetExecutions(c *fiber.Ctx) error {
	customer := middleware.CustomerFromContext(c)
	if customer == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Customer not resolved"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := (page - 1) * limit

	repo := repository.GetGlobalFactory().GetExecutionLogRepository()
	entries, err := repo.ListByCustomer(customer.ID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Execution log lookup failed"})
	}
	total, err := repo.CountByCustomer(customer.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Execution log lookup failed"})
	}

	return c.JSON(fiber.Map{
		"executions": entries,
		"page":       page,
		"limit":      limit,
		"total":      total,
	})
}

// RegisterHandlers wires the v1 routes. The events, deliveries and
// executions routes require API-key authentication.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	protected := router.Group("", middleware.APIKeyAuthMiddleware())
	protected.Post("/events/inbound", s.PostInboundEvent)
	protected.Get("/deliveries/:request_id", s.GetDeliveryStatus)
	protected.Get("/executions", s.GetExecutions)
}
