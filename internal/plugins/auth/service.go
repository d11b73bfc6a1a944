package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/accounts/internal/apperror"
	"github.com/keyxmakerx/accounts/internal/plugins/audit"
	"github.com/keyxmakerx/accounts/internal/plugins/disposable"
)

// Paging bounds for the admin user listing.
const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// msgInvalidCredentials is returned for both unknown email and wrong
// password so responses don't reveal which accounts exist.
const msgInvalidCredentials = "invalid email or password"

// DomainChecker reports whether an email domain is disposable.
type DomainChecker interface {
	IsDisposable(ctx context.Context, domain string) bool
}

// LoginRecorder accepts login attempts for the audit trail. Record must not
// block on I/O.
type LoginRecorder interface {
	Record(event audit.LoginAuditEvent)
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, input LoginInput, ip string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, userID string) (*User, error)

	// AuthenticateAccess resolves a bearer access token to its user. Any
	// failure is reported as Unauthorized.
	AuthenticateAccess(ctx context.Context, accessToken string) (*User, error)

	// Admin operations.
	BlockOrUnblockUser(ctx context.Context, userID string, active bool) (*User, error)
	ListUsers(ctx context.Context, page, perPage int) (*UserPage, error)
}

// authService implements AuthService.
type authService struct {
	repo       UserRepository
	tokens     *TokenCodec
	sessions   SessionStore
	domains    DomainChecker
	logins     LoginRecorder
	sessionTTL time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(
	repo UserRepository,
	tokens *TokenCodec,
	sessions SessionStore,
	domains DomainChecker,
	logins LoginRecorder,
	sessionTTL time.Duration,
) AuthService {
	return &authService{
		repo:       repo,
		tokens:     tokens,
		sessions:   sessions,
		domains:    domains,
		logins:     logins,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new user account. Disposable domains and taken emails
// are rejected before the password is hashed.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := normalizeEmail(input.Email)

	if s.domains.IsDisposable(ctx, disposable.DomainOf(email)) {
		return nil, apperror.NewConflict("registration with a disposable email domain is not allowed")
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		FullName:     strings.TrimSpace(input.FullName),
		BirthDate:    input.BirthDate,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if apperror.SafeCode(err) == http.StatusConflict {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user.withoutSecret(), nil
}

// Login authenticates by email and password. Every outcome is recorded in
// the audit trail. On success it stores a refresh session and returns a
// fresh token pair.
func (s *authService) Login(ctx context.Context, input LoginInput, ip string) (*TokenPair, error) {
	email := normalizeEmail(input.Email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
		}
		// Burn the same hashing time as a real check.
		verifyPassword(input.Password, dummyHash)
		s.logins.Record(audit.Failed(email, ip, audit.ReasonUserNotFound))
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		s.logins.Record(audit.Failed(email, ip, audit.ReasonInvalidPassword))
		return nil, apperror.NewUnauthorized(msgInvalidCredentials)
	}

	if !user.IsActive {
		s.logins.Record(audit.Failed(email, ip, audit.ReasonUserBlocked))
		return nil, apperror.NewForbidden("user is blocked")
	}

	pair, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logins.Record(audit.Succeeded(email, ip))
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return pair, nil
}

// Refresh rotates a refresh token. The token must verify as a refresh
// token and still have a live session; the session is consumed atomically
// so a token can be redeemed at most once, even under concurrent calls.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.parse(refreshToken, RefreshToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}

	sessionUserID, found, err := s.sessions.Take(ctx, refreshToken)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("consuming session: %w", err))
	}
	if !found || sessionUserID != claims.UserID() {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}

	user, err := s.repo.FindByID(ctx, claims.UserID())
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid refresh token")
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading user: %w", err))
	}

	return s.startSession(ctx, user.ID)
}

// Logout deletes the refresh session. Unknown or already-removed tokens
// are not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session: %w", err))
	}
	return nil
}

// Profile returns a user without the password hash.
func (s *authService) Profile(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading user: %w", err))
	}
	return user.withoutSecret(), nil
}

// AuthenticateAccess verifies an access token and loads its user. Callers
// decide whether an inactive user may proceed.
func (s *authService) AuthenticateAccess(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.parse(accessToken, AccessToken)
	if err != nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}

	user, err := s.repo.FindByID(ctx, claims.UserID())
	if err != nil {
		if !apperror.IsNotFound(err) {
			slog.Error("loading user for access token",
				slog.String("user_id", claims.UserID()),
				slog.Any("error", err),
			)
		}
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return user.withoutSecret(), nil
}

// BlockOrUnblockUser sets a user's active flag and returns the updated
// profile. Existing sessions are left alone; blocked users are stopped by
// the strict guard on their next request.
func (s *authService) BlockOrUnblockUser(ctx context.Context, userID string, active bool) (*User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.IsActive != active {
		if err := s.repo.UpdateIsActive(ctx, userID, active); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("updating active flag: %w", err))
		}
		user.IsActive = active
	}

	slog.Info("user active flag set",
		slog.String("user_id", userID),
		slog.Bool("active", active),
	)

	return user, nil
}

// ListUsers returns one page of users. Out-of-range paging is clamped.
func (s *authService) ListUsers(ctx context.Context, page, perPage int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	users, total, err := s.repo.ListUsers(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing users: %w", err))
	}
	if users == nil {
		users = []User{}
	}
	for i := range users {
		users[i].PasswordHash = ""
	}

	return &UserPage{Users: users, Total: total, Page: page, PerPage: perPage}, nil
}

// startSession issues a token pair and stores the refresh session.
func (s *authService) startSession(ctx context.Context, userID string) (*TokenPair, error) {
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("issuing tokens: %w", err))
	}

	if err := s.sessions.Put(ctx, pair.RefreshToken, userID, s.sessionTTL); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("storing session: %w", err))
	}

	return pair, nil
}
