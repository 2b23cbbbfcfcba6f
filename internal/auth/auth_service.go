// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/labelhub/pkg/errutil"
)

// Service provides authentication operations.
type Service struct {
	users      UserRepository
	sessions   SessionRepository
	hasher     PasswordHasher
	logger     *slog.Logger
	sessionTTL time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSessionTTL sets the lifetime of sessions created by Login.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}

	s := &Service{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		logger:     slog.Default(),
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	if s.sessionTTL <= 0 {
		return nil, oops.Code("AUTH_INVALID_SERVICE").
			With("session_ttl", s.sessionTTL).
			Errorf("session TTL must be positive")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SessionTTL returns the lifetime of new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput holds the fields submitted by the registration form.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
}

// normalize trims every field except the password and lowercases the email.
func (in RegisterInput) normalize() RegisterInput {
	return RegisterInput{
		Email:       NormalizeEmail(in.Email),
		Password:    in.Password,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		CompanyName: strings.TrimSpace(in.CompanyName),
	}
}

// validate applies the registration rules in order and returns the first failure.
func (in RegisterInput) validate() error {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return oops.Code("AUTH_MISSING_FIELDS").Errorf("Missing required fields")
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := ValidateName("First name", in.FirstName); err != nil {
		return err
	}
	if err := ValidateName("Last name", in.LastName); err != nil {
		return err
	}
	return ValidateCompanyName(in.CompanyName)
}

// Register validates the input and creates a new user account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	start := time.Now()
	user, err := s.register(ctx, input)
	recordOperation(OpRegister, statusFor(err), start)
	return user, err
}

func (s *Service) register(ctx context.Context, input RegisterInput) (*User, error) {
	in := input.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, oops.Code("AUTH_DUPLICATE_EMAIL").
			With("email", in.Email).
			Wrap(ErrDuplicateEmail)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(in.Email, hash, in.FirstName, in.LastName, in.CompanyName)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration can pass the pre-check and lose on the constraint.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code("AUTH_DUPLICATE_EMAIL").
				With("email", in.Email).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// Login authenticates a user and creates a session.
// Returns the session, plaintext token, and any error.
// Uses constant-time operations to prevent timing-based email enumeration.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*Session, string, error) {
	start := time.Now()
	session, token, err := s.login(ctx, email, password, userAgent, ipAddress)
	recordOperation(OpLogin, statusFor(err), start)
	return session, token, err
}

func (s *Service) login(ctx context.Context, email, password, userAgent, ipAddress string) (*Session, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", oops.Code("AUTH_MISSING_FIELDS").Errorf("Missing required fields")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, even for unknown emails, so timing does not leak existence.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, "", invalidCredentials()
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	now := s.now()

	if !userExists || !valid {
		if userExists && !user.IsLockedAt(now) {
			user.RecordFailure(now)
			if err := s.users.Update(ctx, user); err != nil {
				s.logger.Warn("best-effort user update failed",
					"operation", "record_failure",
					"user_id", user.ID.String(),
					"error", err.Error())
			}
			if user.IsLockedAt(now) {
				s.revokeSessions(ctx, user.ID)
			}
		}
		if userExists && user.IsLockedAt(now) {
			return nil, "", accountLocked(user, now)
		}
		return nil, "", invalidCredentials()
	}

	// Lockout is checked after verification to keep timing constant.
	if user.IsLockedAt(now) {
		return nil, "", accountLocked(user, now)
	}

	user.RecordSuccess(now)

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		newHash, hashErr := s.hasher.Hash(password)
		if hashErr != nil {
			s.logger.Warn("password hash upgrade failed",
				"user_id", user.ID.String(),
				"error", hashErr.Error())
		} else {
			user.PasswordHash = newHash
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("best-effort user update failed",
			"operation", "record_success",
			"user_id", user.ID.String(),
			"error", err.Error())
	}

	session, token, err := s.createSession(ctx, user.ID, userAgent, ipAddress, now)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// revokeSessions ends every live session of a user that was just locked out.
func (s *Service) revokeSessions(ctx context.Context, userID ulid.ULID) {
	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("best-effort session revocation failed",
			"operation", "revoke_sessions",
			"user_id", userID.String(),
			"error", err.Error())
		return
	}
	if n > 0 {
		s.logger.Info("revoked sessions of locked account",
			"user_id", userID.String(),
			"count", n)
	}
}

// createSession mints a token for userID and persists only its hash.
func (s *Service) createSession(ctx context.Context, userID ulid.ULID, userAgent, ipAddress string, now time.Time) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(userID, tokenHash, userAgent, ipAddress, now, now.Add(s.sessionTTL))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("Invalid email or password")
}

func accountLocked(user *User, now time.Time) error {
	status := CheckLockout(user.FailedAttempts, user.LockedUntil, now)
	return oops.Code("AUTH_ACCOUNT_LOCKED").
		With("user_id", user.ID.String()).
		With("locked_until", user.LockedUntil).
		With("retry_after", status.Remaining.Round(time.Second).String()).
		Errorf("Too many failed login attempts, try again later")
}

// Logout invalidates the session identified by token.
// Unknown or already removed sessions are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	start := time.Now()
	err := s.logout(ctx, token)
	recordOperation(OpLogout, statusFor(err), start)
	return err
}

func (s *Service) logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// ValidateSession validates a session token and returns the session if valid.
// Also updates the LastSeenAt timestamp.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	start := time.Now()
	session, err := s.validateSession(ctx, token)
	recordOperation(OpValidate, statusFor(err), start)
	return session, err
}

func (s *Service) validateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if !wellFormedToken(token) {
		return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := s.now()
	if session.IsExpiredAt(now) {
		if err := s.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
			s.logger.Warn("best-effort session delete failed",
				"operation", "delete_expired",
				"session_id", session.ID.String(),
				"error", err.Error())
		}
		return nil, oops.Code("SESSION_EXPIRED").
			With("session_id", session.ID.String()).
			Errorf("session has expired")
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.logger.Warn("best-effort session update failed",
			"operation", "update_last_seen",
			"session_id", session.ID.String(),
			"error", err.Error())
	} else {
		session.LastSeenAt = now
	}

	return session, nil
}

// CurrentUser returns the user a session belongs to.
func (s *Service) CurrentUser(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").
				With("user_id", userID.String()).
				Wrap(err)
		}
		return nil, oops.Code("USER_FETCH_FAILED").
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// PurgeExpiredSessions removes every session expired at the current time.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		recordOperation(OpPurge, StatusError, start)
		return 0, oops.Code("SESSION_PURGE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	recordOperation(OpPurge, StatusSuccess, start)
	SessionsPurged.Add(float64(n))
	return n, nil
}

// RunSessionJanitor purges expired sessions every interval until ctx is cancelled.
func (s *Service) RunSessionJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpiredSessions(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, s.logger, "session janitor failed", err)
				continue
			}
			if n > 0 {
				s.logger.DebugContext(ctx, "purged expired sessions", "count", n)
			}
		}
	}
}

// statusFor maps an operation result to a metric status label.
func statusFor(err error) string {
	if err == nil {
		return StatusSuccess
	}
	switch errutil.Code(err) {
	case "AUTH_ACCOUNT_LOCKED":
		return StatusLockedOut
	case "AUTH_MISSING_FIELDS", "AUTH_INVALID_EMAIL", "AUTH_WEAK_PASSWORD", "AUTH_INVALID_NAME",
		"AUTH_INVALID_COMPANY", "AUTH_DUPLICATE_EMAIL", "AUTH_INVALID_CREDENTIALS",
		"SESSION_TOKEN_EMPTY", "SESSION_INVALID", "SESSION_EXPIRED":
		return StatusRejected
	default:
		return StatusError
	}
}
