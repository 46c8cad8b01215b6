package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultDirectoryTimeout bounds every user directory call.
const DefaultDirectoryTimeout = 5 * time.Second

// LogoutMessage is the confirmation returned by Logout.
const LogoutMessage = "Logged out"

// SessionResult is returned by Register and Login. Access and Refresh
// are delivered to the client as opaque credentials.
type SessionResult struct {
	User            UserSummary
	Access          Token
	Refresh         Token
	TokenExpiration time.Time
}

// RefreshResult carries the new access token. The refresh token is not rotated.
type RefreshResult struct {
	Access          Token
	TokenExpiration time.Time
}

// LogoutResult confirms a logout.
type LogoutResult struct {
	Message string
}

// SessionController implements Register, Login, Logout and Refresh. It
// holds no per session state and is safe for concurrent use.
type SessionController struct {
	directory        UserDirectory
	verifier         CredentialVerifier
	tokens           TokenService
	revocations      RevocationList
	activity         ActivitySink
	metrics          Metrics
	logger           Logger
	clock            Clock
	directoryTimeout time.Duration

	timingHashOnce sync.Once
	timingHash     string
}

// SessionOption configures a SessionController.
type SessionOption func(*SessionController)

// WithSessionLogger sets the logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *SessionController) {
		s.logger = normalizeLogger(logger)
	}
}

// WithSessionClock overrides the clock used to stamp activity events.
func WithSessionClock(clock Clock) SessionOption {
	return func(s *SessionController) {
		s.clock = normalizeClock(clock)
	}
}

// WithDirectoryTimeout bounds each directory call. Zero disables the bound.
func WithDirectoryTimeout(d time.Duration) SessionOption {
	return func(s *SessionController) {
		s.directoryTimeout = d
	}
}

// WithRevocationList makes Logout revoke and Refresh check refresh token ids.
func WithRevocationList(list RevocationList) SessionOption {
	return func(s *SessionController) {
		s.revocations = normalizeRevocationList(list)
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) SessionOption {
	return func(s *SessionController) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithMetrics configures an operation observer.
func WithMetrics(m Metrics) SessionOption {
	return func(s *SessionController) {
		s.metrics = normalizeMetrics(m)
	}
}

// WithTimingHash sets the hash compared against when the email is
// unknown. It should use the same bcrypt cost as stored hashes.
func WithTimingHash(hash string) SessionOption {
	return func(s *SessionController) {
		if hash != "" {
			s.timingHashOnce.Do(func() { s.timingHash = hash })
		}
	}
}

// NewSessionController wires the session operations. verifier defaults
// to BcryptVerifier.
func NewSessionController(directory UserDirectory, verifier CredentialVerifier, tokens TokenService, opts ...SessionOption) *SessionController {
	if directory == nil {
		panic("Missing UserDirectory in session controller...")
	}

	if tokens == nil {
		panic("Missing TokenService in session controller...")
	}

	if verifier == nil {
		verifier = BcryptVerifier{}
	}

	s := &SessionController{
		directory:        directory,
		verifier:         verifier,
		tokens:           tokens,
		revocations:      noopRevocationList{},
		activity:         noopActivitySink{},
		metrics:          noopMetrics{},
		logger:           defLogger{},
		clock:            time.Now,
		directoryTimeout: DefaultDirectoryTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Register creates the user and opens a session for it.
func (s *SessionController) Register(ctx context.Context, req RegisterRequest) (result *SessionResult, err error) {
	start := time.Now()
	defer func() { s.observe(OperationRegister, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during user registration")
	}

	req = req.normalized()
	if err := req.Validate(); err != nil {
		return nil, ValidationErrorFrom(err)
	}

	email := req.Email

	existing, err := s.lookup(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		s.logger.Error("Register lookup error", "error", err)
		s.emit(ctx, ActivityEventRegisterFailure, "", email, err)
		return nil, classifyDirectoryError(err)
	}

	if existing != nil {
		s.emit(ctx, ActivityEventRegisterFailure, "", email, ErrDuplicateEmail)
		return nil, ErrDuplicateEmail
	}

	created, err := s.create(ctx, NewUser{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     email,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			s.emit(ctx, ActivityEventRegisterFailure, "", email, ErrDuplicateEmail)
			return nil, ErrDuplicateEmail
		}
		s.logger.Error("Register create user error", "error", err)
		s.emit(ctx, ActivityEventRegisterFailure, "", email, err)
		return nil, classifyDirectoryError(err)
	}

	result, err = s.openSession(created)
	if err != nil {
		s.emit(ctx, ActivityEventRegisterFailure, created.ID.String(), email, err)
		return nil, err
	}

	s.emit(ctx, ActivityEventRegisterSuccess, created.ID.String(), email, nil)
	return result, nil
}

// Login verifies the credentials and opens a session. An unknown email
// and a wrong password both yield ErrInvalidLogin.
func (s *SessionController) Login(ctx context.Context, req LoginRequest) (result *SessionResult, err error) {
	start := time.Now()
	defer func() { s.observe(OperationLogin, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during login")
	}

	req = req.normalized()
	email := req.Email

	user, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// burn a comparison so unknown emails cost the same as wrong passwords
			s.verifier.Verify(req.Password, s.getTimingHash())
			s.emit(ctx, ActivityEventLoginFailure, "", email, ErrInvalidLogin)
			return nil, ErrInvalidLogin
		}
		s.logger.Error("Login lookup error", "error", err)
		s.emit(ctx, ActivityEventLoginFailure, "", email, err)
		return nil, classifyDirectoryError(err)
	}

	if req.Password == "" || !s.verifier.Verify(req.Password, user.PasswordHash) {
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), email, ErrInvalidLogin)
		return nil, ErrInvalidLogin
	}

	result, err = s.openSession(user)
	if err != nil {
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), email, err)
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), email, nil)
	return result, nil
}

// Logout always succeeds. When a revocation list is configured and the
// presented refresh token is valid its id is revoked; failures there
// are logged and do not fail the logout.
func (s *SessionController) Logout(ctx context.Context, refreshToken string) *LogoutResult {
	start := time.Now()
	defer func() { s.observe(OperationLogout, start, nil) }()

	userID := ""
	if strings.TrimSpace(refreshToken) != "" {
		v := s.tokens.ValidateRefresh(refreshToken)
		if v.Valid() {
			userID = v.Claims.Identity().UserID
			if err := s.revocations.Revoke(ctx, v.Claims.TokenID(), v.Claims.Expires()); err != nil {
				s.logger.Warn("Logout revoke refresh token error", "error", err)
			}
		}
	}

	s.emit(ctx, ActivityEventLogout, userID, "", nil)

	return &LogoutResult{Message: LogoutMessage}
}

// Refresh mints a new access token from a valid refresh token.
func (s *SessionController) Refresh(ctx context.Context, refreshToken string) (result *RefreshResult, err error) {
	start := time.Now()
	defer func() { s.observe(OperationRefresh, start, err) }()

	v := s.tokens.ValidateRefresh(refreshToken)

	switch v.Status {
	case TokenValid:
		if !v.Valid() {
			s.emit(ctx, ActivityEventRefreshFailure, "", "", ErrInvalidToken)
			return nil, ErrInvalidToken
		}
	case TokenExpired:
		s.emit(ctx, ActivityEventRefreshFailure, "", "", ErrExpiredRefreshToken)
		return nil, ErrExpiredRefreshToken
	case TokenInvalid:
		if errors.Is(v.Err, ErrMissingToken) {
			s.emit(ctx, ActivityEventRefreshFailure, "", "", ErrMissingToken)
			return nil, ErrMissingToken
		}
		s.logger.Warn("Refresh rejected invalid token", "error", v.Err)
		s.emit(ctx, ActivityEventRefreshFailure, "", "", ErrInvalidToken)
		return nil, ErrInvalidToken
	default:
		return nil, ErrInvalidToken
	}

	identity := v.Claims.Identity()

	revoked, err := s.revocations.IsRevoked(ctx, v.Claims.TokenID())
	if err != nil {
		s.logger.Error("Refresh revocation lookup error", "error", err)
		s.emit(ctx, ActivityEventRefreshFailure, identity.UserID, identity.Email, err)
		return nil, ErrRevocationUnavailable
	}

	if revoked {
		s.emit(ctx, ActivityEventRefreshFailure, identity.UserID, identity.Email, ErrRevokedRefreshToken)
		return nil, ErrRevokedRefreshToken
	}

	access, err := s.tokens.IssueAccess(identity)
	if err != nil {
		s.logger.Error("Refresh issue access token error", "error", err)
		s.emit(ctx, ActivityEventRefreshFailure, identity.UserID, identity.Email, err)
		return nil, ErrTokenIssueFailed
	}

	s.emit(ctx, ActivityEventRefreshSuccess, identity.UserID, identity.Email, nil)

	return &RefreshResult{
		Access:          access,
		TokenExpiration: access.ExpiresAt,
	}, nil
}

// openSession issues both tokens strictly after the user record exists.
func (s *SessionController) openSession(user *User) (*SessionResult, error) {
	claims := ClaimsFromUser(user)

	access, err := s.tokens.IssueAccess(claims)
	if err != nil {
		s.logger.Error("issue access token error", "error", err)
		return nil, ErrTokenIssueFailed
	}

	refresh, err := s.tokens.IssueRefresh(claims)
	if err != nil {
		s.logger.Error("issue refresh token error", "error", err)
		return nil, ErrTokenIssueFailed
	}

	return &SessionResult{
		User:            user.Summary(),
		Access:          access,
		Refresh:         refresh,
		TokenExpiration: access.ExpiresAt,
	}, nil
}

func (s *SessionController) lookup(ctx context.Context, email string) (*User, error) {
	ctx, cancel := s.directoryContext(ctx)
	defer cancel()
	return s.directory.GetByEmail(ctx, email)
}

func (s *SessionController) create(ctx context.Context, user NewUser) (*User, error) {
	ctx, cancel := s.directoryContext(ctx)
	defer cancel()
	return s.directory.Create(ctx, user)
}

func (s *SessionController) directoryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.directoryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.directoryTimeout)
}

func (s *SessionController) getTimingHash() string {
	s.timingHashOnce.Do(func() {
		s.timingHash = RandomPasswordHash(passwordHashCost())
	})
	return s.timingHash
}

func (s *SessionController) emit(ctx context.Context, eventType ActivityEventType, userID, email string, cause error) {
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Email:      email,
		Metadata:   map[string]any{},
		OccurredAt: s.clock(),
	}

	if cause != nil {
		event.Reason = outcomeOf(cause)
	}

	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func (s *SessionController) observe(operation string, start time.Time, err error) {
	s.metrics.Observe(operation, outcomeOf(err), time.Since(start))
}

func classifyDirectoryError(err error) error {
	switch {
	case errors.Is(err, ErrDirectoryUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrDirectoryUnavailable
	case errors.Is(err, ErrNoEmptyString):
		return NewValidationError(goerrors.FieldError{Field: "password", Message: "cannot be blank"})
	default:
		return ErrRequestFailed
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}

	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" {
		return strings.ToLower(richErr.TextCode)
	}

	return "error"
}
