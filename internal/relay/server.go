package relay

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"heartline/internal/domain"
)

const (
	requestIDHeader = "X-Request-ID"
	// maxFetch caps a single mailbox read.
	maxFetch = 500
	// maxTTL bounds client-supplied record lifetimes.
	maxTTL = 24 * time.Hour
)

// ServerConfig tunes the relay HTTP server.
type ServerConfig struct {
	Addr string
	// CodeRequestsPerMinute limits code routes per client IP. Zero disables the limit.
	CodeRequestsPerMinute int
}

// Server is the fiber relay application.
type Server struct {
	app  *fiber.App
	cfg  ServerConfig
	dir  domain.Directory
	mbox domain.Channel
	log  *slog.Logger
}

// NewServer wires the relay routes over dir and mbox.
func NewServer(cfg ServerConfig, dir domain.Directory, mbox domain.Channel, logger *slog.Logger) *Server {
	s := &Server{cfg: cfg, dir: dir, mbox: mbox, log: logger}

	s.app = fiber.New(fiber.Config{
		AppName:               "heartline-relay",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(requestID())
	s.app.Use(s.accessLog())

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	codes := []fiber.Handler{}
	if cfg.CodeRequestsPerMinute > 0 {
		codes = append(codes, limiter.New(limiter.Config{
			Max:        cfg.CodeRequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}))
	}
	cg := s.app.Group("/codes", codes...)
	cg.Post("/", s.publishCode)
	cg.Get("/:code", s.lookupCode)
	cg.Post("/:code/consume", s.consumeCode)
	cg.Delete("/:code", s.deleteCode)

	s.app.Put("/owners/:id/code", s.swapOwnerCode)
	s.app.Post("/acceptances", s.postAcceptance)
	s.app.Get("/acceptances/:owner/:code", s.lookupAcceptance)
	s.app.Delete("/acceptances/:owner/:code", s.deleteAcceptance)

	s.app.Post("/msg/:user", s.deliver)
	s.app.Get("/msg/:user", s.fetch)
	s.app.Post("/msg/:user/ack", s.ack)

	return s
}

// App exposes the fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// ---------- directory ----------

func (s *Server) publishCode(c *fiber.Ctx) error {
	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Code.Value == "" || req.Code.Owner == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code value and owner are required")
	}
	ttl, err := parseTTL(req.TTLms)
	if err != nil {
		return err
	}
	ok, err := s.dir.PublishCode(c.UserContext(), req.Code, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusConflict, "code value taken")
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) lookupCode(c *fiber.Ctx) error {
	code, ok, err := s.dir.LookupCode(c.UserContext(), c.Params("code"))
	return respondFound(c, code, ok, err, "code not found")
}

func (s *Server) consumeCode(c *fiber.Ctx) error {
	code, ok, err := s.dir.ConsumeCode(c.UserContext(), c.Params("code"))
	return respondFound(c, code, ok, err, "code not found")
}

func (s *Server) deleteCode(c *fiber.Ctx) error {
	if err := s.dir.DeleteCode(c.UserContext(), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) swapOwnerCode(c *fiber.Ctx) error {
	var req swapRequest
	if err := c.BodyParser(&req); err != nil || req.Value == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	ttl, err := parseTTL(req.TTLms)
	if err != nil {
		return err
	}
	prev, err := s.dir.SwapOwnerCode(c.UserContext(), domain.Identity(c.Params("id")), req.Value, ttl)
	if err != nil {
		return err
	}
	return c.JSON(swapResponse{Previous: prev})
}

func (s *Server) postAcceptance(c *fiber.Ctx) error {
	var req acceptanceRequest
	if err := c.BodyParser(&req); err != nil || req.Acceptance.Peer == "" || req.Acceptance.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	ttl, err := parseTTL(req.TTLms)
	if err != nil {
		return err
	}
	if err := s.dir.PostAcceptance(c.UserContext(), req.Acceptance, ttl); err != nil {
		if errors.Is(err, domain.ErrClaimRejected) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) lookupAcceptance(c *fiber.Ctx) error {
	acc, ok, err := s.dir.LookupAcceptance(c.UserContext(), domain.Identity(c.Params("owner")), c.Params("code"))
	return respondFound(c, acc, ok, err, "no acceptance")
}

func (s *Server) deleteAcceptance(c *fiber.Ctx) error {
	if err := s.dir.DeleteAcceptance(c.UserContext(), domain.Identity(c.Params("owner")), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- mailbox ----------

func (s *Server) deliver(c *fiber.Ctx) error {
	var env domain.SealedEnvelope
	if err := c.BodyParser(&env); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid envelope")
	}
	if env.ID == "" || env.Receiver != domain.Identity(c.Params("user")) {
		return fiber.NewError(fiber.StatusBadRequest, "envelope does not match recipient")
	}
	if err := s.mbox.Deliver(c.UserContext(), env); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) fetch(c *fiber.Ctx) error {
	limit := maxFetch
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
		if n > 0 && n < maxFetch {
			limit = n
		}
	}
	envs, err := s.mbox.Fetch(c.UserContext(), domain.Identity(c.Params("user")), limit)
	if err != nil {
		return err
	}
	if envs == nil {
		envs = []domain.SealedEnvelope{}
	}
	return c.JSON(envs)
}

func (s *Server) ack(c *fiber.Ctx) error {
	var req ackRequest
	if err := c.BodyParser(&req); err != nil || req.Count < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.mbox.Ack(c.UserContext(), domain.Identity(c.Params("user")), req.Count); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- plumbing ----------

func respondFound[T any](c *fiber.Ctx, v T, ok bool, err error, missing string) error {
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, missing)
	}
	return c.JSON(v)
}

func parseTTL(ms int64) (time.Duration, error) {
	ttl := time.Duration(ms) * time.Millisecond
	if ttl <= 0 || ttl > maxTTL {
		return 0, fiber.NewError(fiber.StatusBadRequest, "ttl_ms out of range")
	}
	return ttl, nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	} else {
		reqID, _ := c.Locals(requestIDHeader).(string)
		s.log.Error("relay request failed",
			slog.String("request_id", reqID),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return c.Status(code).JSON(errorResponse{Error: msg})
}

// requestID ensures each request has a stable request identifier for tracing and logging.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		return c.Next()
	}
}

func (s *Server) accessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the error handler set the final status before logging it.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		reqID, _ := c.Locals(requestIDHeader).(string)
		s.log.Info("relay access",
			slog.String("request_id", reqID),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("remote", c.IP()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Int("bytes", len(c.Response().Body())),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}
}
