package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/hash"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	"github.com/Skotchmaster/stone_shop/internal/tokens"
	"github.com/Skotchmaster/stone_shop/internal/validate"
)

type AuthService struct {
	Repo          *repo.GormRepo
	JWTSecret     []byte
	RefreshSecret []byte
	AdminEmail    string
	Events        mykafka.Publisher
}

type RegisterInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Confirm  string
}

type LoginResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Password != in.Confirm {
		return nil, fmt.Errorf("%w: Passwords don't match!", apperr.ErrValidation)
	}

	taken, err := s.Repo.EmailTaken(ctx, in.Email)
	if err != nil {
		l.Error("register_error", "status", 500, "error", err)
		return nil, err
	}
	if taken {
		l.Warn("register_error", "status", 409, "reason", "email already registered")
		return nil, fmt.Errorf("%w: You've already signed up with that email, log in instead!", apperr.ErrConflict)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: pwHash,
	}
	if s.AdminEmail != "" && in.Email == s.AdminEmail {
		user.Role = models.RoleAdmin
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: You've already signed up with that email, log in instead!", apperr.ErrConflict)
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, err
	}

	ev := mykafka.NewEvent("user_registered")
	ev.UserID = user.ID
	mykafka.Publish(ctx, s.Events, mykafka.TopicUser, ev)

	l.Info("user_registered", "user_id", user.ID, "role", user.Role)
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, fmt.Errorf("%w: Invalid email or password, please try again.", apperr.ErrAuth)
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "bad password")
		return nil, fmt.Errorf("%w: Invalid email or password, please try again.", apperr.ErrAuth)
	}

	ev := mykafka.NewEvent("user_logged_in")
	ev.UserID = user.ID
	mykafka.Publish(ctx, s.Events, mykafka.TopicUser, ev)

	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid refresh token", "error", err)
		return nil, fmt.Errorf("%w: session expired, please log in again", apperr.ErrAuth)
	}

	refreshExp := time.Now().Add(tokens.RefreshTTL)
	newRefresh, jti, err := tokens.CreateRefreshToken(s.RefreshSecret, claims.Subject, refreshExp)
	if err != nil {
		return nil, err
	}

	old, err := s.Repo.RotateRefreshToken(ctx, claims.ID, tokens.Sha256Hex(refreshToken), &models.RefreshToken{
		Token:     tokens.Sha256Hex(newRefresh),
		JTI:       jti,
		ExpiresAt: refreshExp.Unix(),
	})
	if err != nil {
		if errors.Is(err, repo.ErrTokenRevoked) || errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "token revoked or unknown")
			return nil, fmt.Errorf("%w: session expired, please log in again", apperr.ErrAuth)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	user, err := s.Repo.UserByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", apperr.ErrAuth)
		}
		return nil, err
	}

	accessExp := time.Now().Add(tokens.AccessTTL)
	access, err := tokens.CreateAccessToken(s.JWTSecret, user.Role, subject(user.ID), accessExp)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: newRefresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Repo.RevokeRefreshToken(ctx, tokens.Sha256Hex(refreshToken))
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*LoginResult, error) {
	accessExp := time.Now().Add(tokens.AccessTTL)
	access, err := tokens.CreateAccessToken(s.JWTSecret, user.Role, subject(user.ID), accessExp)
	if err != nil {
		return nil, err
	}

	refreshExp := time.Now().Add(tokens.RefreshTTL)
	refresh, jti, err := tokens.CreateRefreshToken(s.RefreshSecret, subject(user.ID), refreshExp)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.AddRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Role:      user.Role,
		Token:     tokens.Sha256Hex(refresh),
		JTI:       jti,
		ExpiresAt: refreshExp.Unix(),
	}); err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func subject(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseSubject reads a user id back from a token subject.
func ParseSubject(sub string) (uint, error) {
	n, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: bad subject", apperr.ErrAuth)
	}
	return uint(n), nil
}
