package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-session-auth/middleware/jwtware"
)

const (
	DefaultAccessCookieName  = "accessToken"
	DefaultRefreshCookieName = "refreshToken"
	DefaultCookiePath        = "/"
)

// SessionManager is the set of session operations the HTTP layer drives.
type SessionManager interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResult, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResult, error)
	Logout(ctx context.Context, refreshToken string) *LogoutResult
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

var _ SessionManager = (*SessionController)(nil)

type HTTPControllerRoutes struct {
	Register string
	Login    string
	Logout   string
	Refresh  string
	Me       string
}

// HTTPController exposes the session operations as JSON endpoints and
// delivers tokens as HTTPOnly, Secure, SameSite=None cookies.
type HTTPController struct {
	Debug        bool
	Logger       Logger
	Routes       *HTTPControllerRoutes
	ErrorHandler router.ErrorHandler

	sessions  SessionManager
	validator AccessValidator
	cfg       Config
	clock     Clock
}

type HTTPControllerOption func(*HTTPController) *HTTPController

// WithHTTPLogger sets the controller logger.
func WithHTTPLogger(logger Logger) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.Logger = normalizeLogger(logger)
		return h
	}
}

// WithHTTPDebug prints request summaries.
func WithHTTPDebug(debug bool) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.Debug = debug
		return h
	}
}

// WithHTTPClock overrides the clock used to expire deleted cookies.
func WithHTTPClock(clock Clock) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.clock = normalizeClock(clock)
		return h
	}
}

// WithHTTPRoutes overrides the route paths.
func WithHTTPRoutes(routes HTTPControllerRoutes) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.Routes = &routes
		return h
	}
}

// WithHTTPErrorHandler overrides the JSON error writer.
func WithHTTPErrorHandler(handler router.ErrorHandler) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if handler != nil {
			h.ErrorHandler = handler
		}
		return h
	}
}

func NewHTTPController(sessions SessionManager, validator AccessValidator, cfg Config, opts ...HTTPControllerOption) *HTTPController {
	if sessions == nil {
		panic("Missing SessionManager in http controller...")
	}

	if validator == nil {
		panic("Missing AccessValidator in http controller...")
	}

	if cfg == nil {
		panic("Missing Config in http controller...")
	}

	h := &HTTPController{
		Logger: defLogger{},
		Routes: &HTTPControllerRoutes{
			Register: "/auth/register",
			Login:    "/auth/login",
			Logout:   "/auth/logout",
			Refresh:  "/auth/refresh",
			Me:       "/auth/me",
		},
		sessions:  sessions,
		validator: validator,
		cfg:       cfg,
		clock:     time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			h = opt(h)
		}
	}

	if h.ErrorHandler == nil {
		h.ErrorHandler = writeError(h.Logger)
	}

	return h
}

// RegisterSessionRoutes mounts the session endpoints of controller on app.
func RegisterSessionRoutes[T any](app router.Router[T], controller *HTTPController) {
	app.Post(controller.Routes.Register, controller.Register).
		SetName("session.register")

	app.Post(controller.Routes.Login, controller.Login).
		SetName("session.login")

	app.Post(controller.Routes.Logout, controller.Logout).
		SetName("session.logout")

	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("session.refresh")

	app.Get(controller.Routes.Me, controller.Me, controller.RequireAccess()).
		SetName("session.me")
}

// RequireAccess returns the access middleware wired to the controller
// error handler, for use on application routes.
func (h *HTTPController) RequireAccess() router.MiddlewareFunc {
	return RequireAccess(h.validator, h.cfg, WithAccessErrorHandler(h.ErrorHandler))
}

type sessionResponse struct {
	LoggedInUser    UserSummary `json:"loggedInUser"`
	TokenExpiration int64       `json:"tokenExpiration"`
}

type refreshResponse struct {
	TokenExpiration int64 `json:"tokenExpiration"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type fieldError struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string                `json:"message"`
	Code    string                `json:"code,omitempty"`
	Errors  map[string]fieldError `json:"errors,omitempty"`
}

func (h *HTTPController) Register(c router.Context) error {
	payload := new(RegisterRequest)

	if err := c.Bind(payload); err != nil {
		h.Logger.Error("register parse payload", "error", err)
		return h.ErrorHandler(c, errUnparsableBody())
	}

	if err := payload.normalized().Validate(); err != nil {
		h.Logger.Info("register validate payload", "error", err)
		return h.ErrorHandler(c, ValidationErrorFrom(err))
	}

	if h.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(map[string]string{
			"email":    payload.Email,
			"username": payload.Username,
		}))
		fmt.Println("============================")
	}

	res, err := h.sessions.Register(c.Context(), *payload)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	h.setCookieToken(c, h.accessCookieName(), res.Access)
	h.setCookieToken(c, h.refreshCookieName(), res.Refresh)

	return c.JSON(http.StatusOK, sessionResponse{
		LoggedInUser:    res.User,
		TokenExpiration: res.TokenExpiration.UnixMilli(),
	})
}

func (h *HTTPController) Login(c router.Context) error {
	payload := new(LoginRequest)

	if err := c.Bind(payload); err != nil {
		h.Logger.Error("login parse payload", "error", err)
		return h.ErrorHandler(c, errUnparsableBody())
	}

	if err := payload.normalized().Validate(); err != nil {
		return h.ErrorHandler(c, ValidationErrorFrom(err))
	}

	res, err := h.sessions.Login(c.Context(), *payload)
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	h.setCookieToken(c, h.accessCookieName(), res.Access)
	h.setCookieToken(c, h.refreshCookieName(), res.Refresh)

	return c.JSON(http.StatusOK, sessionResponse{
		LoggedInUser:    res.User,
		TokenExpiration: res.TokenExpiration.UnixMilli(),
	})
}

func (h *HTTPController) Logout(c router.Context) error {
	res := h.sessions.Logout(c.Context(), c.Cookies(h.refreshCookieName()))

	h.cookieDel(c, h.accessCookieName())
	h.cookieDel(c, h.refreshCookieName())

	return c.JSON(http.StatusOK, messageResponse{Message: res.Message})
}

func (h *HTTPController) Refresh(c router.Context) error {
	res, err := h.sessions.Refresh(c.Context(), c.Cookies(h.refreshCookieName()))
	if err != nil {
		return h.ErrorHandler(c, err)
	}

	h.setCookieToken(c, h.accessCookieName(), res.Access)

	return c.JSON(http.StatusOK, refreshResponse{
		TokenExpiration: res.TokenExpiration.UnixMilli(),
	})
}

func (h *HTTPController) Me(c router.Context) error {
	claims, ok := GetRouterClaims(c, DefaultClaimsLocalsKey)
	if !ok {
		return h.ErrorHandler(c, ErrMissingToken)
	}

	return c.JSON(http.StatusOK, meResponse{
		UserID: claims.UserID,
		Email:  claims.Email,
	})
}

func (h *HTTPController) accessCookieName() string {
	if name := h.cfg.GetAccessCookieName(); name != "" {
		return name
	}
	return DefaultAccessCookieName
}

func (h *HTTPController) refreshCookieName() string {
	if name := h.cfg.GetRefreshCookieName(); name != "" {
		return name
	}
	return DefaultRefreshCookieName
}

func (h *HTTPController) cookiePath() string {
	if path := h.cfg.GetCookiePath(); path != "" {
		return path
	}
	return DefaultCookiePath
}

func (h *HTTPController) setCookieToken(c router.Context, name string, token Token) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     h.cookiePath(),
		Domain:   h.cfg.GetCookieDomain(),
		Expires:  token.ExpiresAt,
		HTTPOnly: true,
		Secure:   true,
		SameSite: router.CookieSameSiteNoneMode,
	})
}

func (h *HTTPController) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cookiePath(),
		Domain:   h.cfg.GetCookieDomain(),
		Expires:  h.clock().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: router.CookieSameSiteNoneMode,
	})
}

// writeError renders any error as {message, code}. Errors that are not
// rich errors are logged and answered with the sanitized ErrRequestFailed.
func writeError(logger Logger) router.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c router.Context, err error) error {
		if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
			err = ErrMissingToken
		}

		var richErr *goerrors.Error
		if !errors.As(err, &richErr) {
			logger.Error("unexpected request error", "error", err, "path", c.OriginalURL())
			richErr = ErrRequestFailed
		}

		status := richErr.Code
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusInternalServerError
		}

		logger.Info(
			"request error",
			"error", richErr.Message,
			"text_code", richErr.TextCode,
			"category", richErr.Category,
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
			"fields", richErr.ValidationMap(),
		)

		body := errorResponse{
			Message: richErr.Message,
			Code:    richErr.TextCode,
		}

		switch richErr.TextCode {
		case TextCodeDuplicateEmail:
			body.Errors = map[string]fieldError{"email": {Message: richErr.Message}}
		case TextCodeInvalidPayload:
			fields := richErr.ValidationMap()
			body.Errors = make(map[string]fieldError, len(fields))
			for field, msg := range fields {
				body.Errors[field] = fieldError{Message: msg}
			}
		}

		return c.JSON(status, body)
	}
}

func errUnparsableBody() error {
	return NewValidationError(goerrors.FieldError{Field: "payload", Message: "unable to parse request body"})
}
