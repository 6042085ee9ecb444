package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// ErrInvalidResetToken is returned for unknown, expired or already used reset tokens.
var ErrInvalidResetToken = &shared.Error{Kind: shared.KindValidation, Code: "INVALID_RESET_TOKEN", Message: "invalid or expired reset token"}

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	resets  *ResetTokens
	mailer  Mailer
	baseURL string
	cost    int
}

// NewService constructs a new Service.
func NewService(repo Repository, resets *ResetTokens, mailer Mailer, baseURL string) *Service {
	return &Service{repo: repo, resets: resets, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), cost: bcrypt.DefaultCost}
}

// dummyHash is compared against when the account does not exist, so a miss costs
// the same as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("lumen-timing-equaliser"), bcrypt.DefaultCost)
	return h
})

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if shared.KindOf(err) != shared.KindNotFound {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a STUDENT account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, NewUser{Email: email, Name: name, Role: rbac.RoleStudent, PasswordHash: hash})
}

// CreateAdmin provisions an ADMIN account. Used by the seed command for the first
// administrator; every later promotion goes through the users module.
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (*User, error) {
	if len(password) < minAdminPasswordLen {
		return nil, shared.Validation("admin password must be at least 12 characters")
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, NewUser{Email: email, Name: name, Role: rbac.RoleAdmin, PasswordHash: hash})
}

// RequestPasswordReset mails a reset link when the account exists and is active.
// Callers get the same result either way. The returned user is nil when nothing was sent.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	if s.resets == nil || s.mailer == nil {
		return nil, errors.New("auth: password reset not configured")
	}
	token, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	link := s.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return nil, fmt.Errorf("auth: send reset mail: %w", err)
	}
	return user, nil
}

// ConfirmPasswordReset redeems token and sets a new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password string) (*User, error) {
	if s.resets == nil {
		return nil, errors.New("auth: password reset not configured")
	}
	userID, ok, err := s.resets.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidResetToken
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

const minAdminPasswordLen = 12

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}
