package http

import (
	"fmt"
	"strings"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/metrics"
	"repertoire/internal/processor"
	"repertoire/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const rateLimitRate = 10 // req/sec

type Config struct {
	DevMode bool
	// RateLimit is requests per second per client; zero selects the default
	RateLimit int
	// AccessLog disables fiber's request logger when false
	AccessLog bool
}

// HTTPHandler handles HTTP requests and routes them to the processor
type HTTPHandler struct {
	proc *processor.Processor
	svc  *service.Service
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service) *HTTPHandler {
	return &HTTPHandler{proc: proc, svc: svc}
}

// NewFiberApp wires middleware and routes; m may be nil to skip /metrics
func NewFiberApp(proc *processor.Processor, svc *service.Service, m *metrics.Metrics, cfg Config) *fiber.App {
	h := NewHTTPHandler(proc, svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health and metrics are not rate limited
	app.Get("/health", h.Health)
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	api := app.Group("/api/v1")

	maxReq := cfg.RateLimit
	if maxReq <= 0 {
		maxReq = rateLimitRate
	}
	if cfg.DevMode {
		maxReq *= 2
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrCodeRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	api.Use(contentTypeValidator)
	api.Use(validationMiddleware)

	api.Get("/openings", h.ListOpenings)
	api.Post("/openings", h.CreateOpening)
	api.Delete("/openings/:openingId", h.DeleteOpening)

	api.Post("/explorers", h.CreateExplorer)
	api.Get("/explorers/:sessionId", h.GetExplorer)
	api.Delete("/explorers/:sessionId", h.DeleteExplorer)
	api.Put("/explorers/:sessionId/opening", h.SelectOpening)
	api.Post("/explorers/:sessionId/moves", h.PushMove)
	api.Delete("/explorers/:sessionId/moves/last", h.RemoveLastMove)
	api.Post("/explorers/:sessionId/undo", h.UndoMove)
	api.Post("/explorers/:sessionId/redo", h.RedoMove)
	api.Get("/explorers/:sessionId/board", h.GetBoard)

	api.Post("/trainings", h.StartTraining)
	api.Post("/trainings/:sessionId/next", h.NextCard)
	api.Post("/trainings/:sessionId/performance", h.RecordPerformance)
	api.Delete("/trainings/:sessionId", h.DeleteTraining)

	return app
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	resp := core.HealthResponse{
		Status:   "healthy",
		Time:     time.Now().Unix(),
		Storage:  h.svc.GetStorageHealth(),
		Sessions: h.svc.SessionCount(),
	}

	stats, err := h.svc.Stats(c.UserContext())
	if err != nil {
		resp.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	resp.Positions = stats.Positions
	resp.Moves = stats.Moves
	resp.Openings = stats.Openings
	return c.JSON(resp)
}

func (h *HTTPHandler) ListOpenings(c *fiber.Ctx) error {
	return h.respond(c, processor.NewListOpeningsCommand(), fiber.StatusOK)
}

func (h *HTTPHandler) CreateOpening(c *fiber.Ctx) error {
	req, err := validatedBody[core.CreateOpeningRequest](c)
	if err != nil {
		return err
	}
	return h.respond(c, processor.NewCreateOpeningCommand(req), fiber.StatusCreated)
}

func (h *HTTPHandler) DeleteOpening(c *fiber.Ctx) error {
	id, err := c.ParamsInt("openingId", -1)
	if err != nil || id < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid opening ID",
			Code:    core.ErrCodeInvalidRequest,
			Details: "opening ID must be a non-negative integer",
		})
	}
	return h.respond(c, processor.NewDeleteOpeningCommand(int64(id)), fiber.StatusOK)
}

func (h *HTTPHandler) CreateExplorer(c *fiber.Ctx) error {
	req, err := validatedBody[core.StartExplorerRequest](c)
	if err != nil {
		return err
	}
	return h.respond(c, processor.NewCreateExplorerCommand(req), fiber.StatusCreated)
}

func (h *HTTPHandler) GetExplorer(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewGetExplorerCommand(id), fiber.StatusOK)
	})
}

func (h *HTTPHandler) DeleteExplorer(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewDeleteExplorerCommand(id), fiber.StatusNoContent)
	})
}

func (h *HTTPHandler) SelectOpening(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		req, err := validatedBody[core.SelectOpeningRequest](c)
		if err != nil {
			return err
		}
		return h.respond(c, processor.NewSelectOpeningCommand(id, req), fiber.StatusOK)
	})
}

func (h *HTTPHandler) PushMove(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		req, err := validatedBody[core.MoveRequest](c)
		if err != nil {
			return err
		}
		return h.respond(c, processor.NewPushMoveCommand(id, req), fiber.StatusOK)
	})
}

func (h *HTTPHandler) RemoveLastMove(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewRemoveLastMoveCommand(id), fiber.StatusOK)
	})
}

func (h *HTTPHandler) UndoMove(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewUndoMoveCommand(id), fiber.StatusOK)
	})
}

func (h *HTTPHandler) RedoMove(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewRedoMoveCommand(id), fiber.StatusOK)
	})
}

// GetBoard returns ASCII representation of the board
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewGetBoardCommand(id), fiber.StatusOK)
	})
}

func (h *HTTPHandler) StartTraining(c *fiber.Ctx) error {
	req, err := validatedBody[core.StartTrainingRequest](c)
	if err != nil {
		return err
	}
	return h.respond(c, processor.NewStartTrainingCommand(req), fiber.StatusCreated)
}

func (h *HTTPHandler) NextCard(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewNextCardCommand(id), fiber.StatusOK)
	})
}

func (h *HTTPHandler) RecordPerformance(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		req, err := validatedBody[core.PerformanceRequest](c)
		if err != nil {
			return err
		}
		return h.respond(c, processor.NewRecordPerformanceCommand(id, req), fiber.StatusOK)
	})
}

func (h *HTTPHandler) DeleteTraining(c *fiber.Ctx) error {
	return h.withSession(c, func(id string) error {
		return h.respond(c, processor.NewDeleteTrainingCommand(id), fiber.StatusNoContent)
	})
}

// withSession validates the :sessionId parameter before running fn
func (h *HTTPHandler) withSession(c *fiber.Ctx, fn func(id string) error) error {
	id := c.Params("sessionId")
	if !isValidUUID(id) {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid session ID format",
			Code:    core.ErrCodeInvalidRequest,
			Details: "session ID must be a valid UUID",
		})
	}
	return fn(id)
}

// respond executes cmd and writes its data or mapped error
func (h *HTTPHandler) respond(c *fiber.Ctx, cmd processor.Command, status int) error {
	resp := h.proc.Execute(c.UserContext(), cmd)
	if !resp.Success {
		return c.Status(statusFor(resp.Error.Code)).JSON(resp.Error)
	}
	if status == fiber.StatusNoContent || resp.Data == nil {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(resp.Data)
}
