package authstub

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	recovery "github.com/goliatone/go-auth-recovery"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger recovery.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the code delivery channel.
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server exposes the account recovery endpoints over JSON HTTP.
type Server struct {
	cfg      Config
	store    *Store
	adapter  router.Server[*fiber.App]
	logger   recovery.Logger
	notifier Notifier
	now      func() time.Time

	register *RegisterAccountHandler
	activate *ActivateAccountHandler
	resend   *ResendActivationHandler
	reset    *RequestPasswordResetHandler
}

// NewServer builds the fiber app and routes.
func NewServer(cfg Config, store *Store, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg.withDefaults(),
		store:    store,
		logger:   nopLogger{},
		notifier: ConsoleNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	d := deps{
		store:    s.store,
		notifier: s.notifier,
		logger:   s.logger,
		cfg:      s.cfg,
		now:      s.now,
	}
	s.register = &RegisterAccountHandler{d}
	s.activate = &ActivateAccountHandler{d}
	s.resend = &ResendActivationHandler{d}
	s.reset = &RequestPasswordResetHandler{d}

	s.adapter = router.NewFiberAdapter(s.newApp)
	RegisterRoutes(s.adapter.Router(), s)
	return s
}

// newApp replaces the adapter's default app so responses use the JSON
// codec and category aware error handler.
func (s *Server) newApp(*fiber.App) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "authstub",
		DisableStartupMessage: true,
		UnescapePath:          true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	return app
}

// RegisterRoutes mounts the recovery endpoints of s on app.
func RegisterRoutes[T any](app router.Router[T], s *Server) {
	app.Post(s.cfg.RegisterPath, s.RegistrationCreate).SetName("register")
	app.Post(s.cfg.ActivatePath, s.ActivationPost).SetName("activate")
	app.Post(s.cfg.ResendPath, s.ActivationResendPost).SetName("resend-activation")
	app.Post(s.cfg.ResetPath, s.PasswordResetPost).SetName("request-password-reset")
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.adapter.WrappedRouter()
}

// Routes lists the registered endpoints.
func (s *Server) Routes() []router.RouteDefinition {
	return s.adapter.Router().Routes()
}

// Listen serves on cfg.Addr until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("authstub listening on %s", s.cfg.Addr)
	return s.adapter.Serve(s.cfg.Addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.App().Listener(ln)
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.adapter.Shutdown(ctx)
}

type emailBody struct {
	Email string `json:"email"`
}

type activateBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type reply map[string]string

// RegistrationCreate creates an inactive account and mails its code.
func (s *Server) RegistrationCreate(ctx router.Context) error {
	var body emailBody
	if err := ctx.Bind(&body); err != nil {
		return errBadBody(err)
	}
	res, err := s.register.Execute(ctx.Context(), RegisterAccountMessage{Email: body.Email})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, reply{"message": res.Message})
}

// ActivationPost redeems an activation code.
func (s *Server) ActivationPost(ctx router.Context) error {
	var body activateBody
	if err := ctx.Bind(&body); err != nil {
		return errBadBody(err)
	}
	res, err := s.activate.Execute(ctx.Context(), ActivateAccountMessage{
		Email: body.Email,
		Code:  body.Code,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reply{"message": res.Message})
}

func (s *Server) ActivationResendPost(ctx router.Context) error {
	var body emailBody
	if err := ctx.Bind(&body); err != nil {
		return errBadBody(err)
	}
	res, err := s.resend.Execute(ctx.Context(), ResendActivationMessage{Email: body.Email})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reply{"message": res.Message})
}

// PasswordResetPost answers the same way whether or not the account exists.
func (s *Server) PasswordResetPost(ctx router.Context) error {
	var body emailBody
	if err := ctx.Bind(&body); err != nil {
		return errBadBody(err)
	}
	res, err := s.reset.Execute(ctx.Context(), RequestPasswordResetMessage{Email: body.Email})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reply{"message": res.Message})
}

func errBadBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
		WithCode(goerrors.CodeBadRequest)
}

// errorHandler renders every failure as {"error": message}. Internal
// failures are not exposed.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	status := http.StatusInternalServerError
	message := "internal server error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status = statusForCategory(richErr.Category)
		if status < http.StatusInternalServerError {
			message = richErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	} else {
		s.logger.Debug("%s %s rejected: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
