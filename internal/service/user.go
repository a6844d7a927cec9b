package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cartify/internal/models"
	"github.com/Skotchmaster/cartify/internal/repo"
	"github.com/Skotchmaster/cartify/internal/transport"
	"github.com/Skotchmaster/cartify/pkg/hash"
	"github.com/Skotchmaster/cartify/pkg/logging"
	"github.com/Skotchmaster/cartify/pkg/tokens"
)

const minPasswordLen = 6

type UserService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
	AccessTTL time.Duration
}

func (s *UserService) Register(ctx context.Context, req transport.RegisterRequest, role string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", ErrInvalidArgument)
	}
	if _, err := uuid.Parse(username); err == nil {
		return nil, fmt.Errorf("username must not look like an id: %w", ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("email is invalid: %w", ErrInvalidArgument)
	}
	if len(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLen, ErrInvalidArgument)
	}
	if role == "" {
		role = models.RoleUser
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		return nil, storageErr("user", err)
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, login, password string) (*transport.LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "login", login)

	user, err := s.Repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, storageErr("user", err)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login failed", "reason", "password mismatch")
		return nil, fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	}

	token, exp, err := tokens.NewAccessToken(s.JWTSecret, user.ID.String(), user.Role, s.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &transport.LoginResult{
		AccessToken: token,
		AccessExp:   exp,
		User:        user,
		IsAdmin:     user.Role == models.RoleAdmin,
	}, nil
}

// Resolve accepts a user id or a username.
func (s *UserService) Resolve(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("user is required: %w", ErrInvalidArgument)
	}

	var (
		user *models.User
		err  error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		user, err = s.Repo.GetUserByID(ctx, id)
	} else {
		user, err = s.Repo.GetUserByUsername(ctx, ref)
	}
	if err != nil {
		return nil, storageErr("user", err)
	}
	return user, nil
}

// Authorize resolves ref and checks that the caller may act on that user.
func (s *UserService) Authorize(ctx context.Context, ref, callerID string, isAdmin bool) (uuid.UUID, error) {
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("caller id: %w", ErrUnauthorized)
	}
	if ref == "" || ref == callerID {
		return caller, nil
	}

	user, err := s.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) && !isAdmin {
			return uuid.Nil, fmt.Errorf("user %s: %w", ref, ErrForbidden)
		}
		return uuid.Nil, err
	}
	if user.ID != caller && !isAdmin {
		return uuid.Nil, fmt.Errorf("user %s: %w", ref, ErrForbidden)
	}
	return user.ID, nil
}
