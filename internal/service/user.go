// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// UserService never sees an http.Request and never picks a status code. It
// returns apperror values; the handler translates them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/user-accounts/internal/apperror"
	"github.com/sakif/user-accounts/internal/auth"
	"github.com/sakif/user-accounts/internal/model"
	"github.com/sakif/user-accounts/internal/repository"
	"github.com/sakif/user-accounts/internal/validation"
)

// msgBadCredentials is shared by every login failure so the response never
// reveals whether the username exists.
const msgBadCredentials = "Username or password wrong"

// UserService implements register, login, get, update and logout.
//
// DEPENDENCIES (injected via NewUserService):
//   - users      repository.UserRepository → the Account Store
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - tokens     *auth.TokenService        → opaque session tokens
//   - validator  *validation.Validator     → request shape checks
//   - logger     *slog.Logger              → structured logging
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a UserService with all required dependencies.
// The store handle is passed in; the service holds no global state.
func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	validator *validation.Validator,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		validator: validator,
		logger:    logger,
	}
}

// Register creates a new account.
//
// The COUNT is only a fast path that saves a bcrypt hash for an obvious
// duplicate. Two concurrent registrations can both see 0; the UNIQUE
// constraint then rejects the second INSERT and the repository reports
// apperror.ErrConflict, which is passed through unchanged.
func (s *UserService) Register(ctx context.Context, req model.RegisterUserRequest) (*model.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	count, err := s.users.CountByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("service/user: register: %w", err)
	}
	if count > 0 {
		return nil, apperror.Conflict("username", "Username already exists")
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: register: %w", err)
	}

	user := &model.User{
		Username: req.Username,
		Password: hash,
		Name:     req.Name,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: register: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user.ToResponse(), nil
}

// Login checks the credentials and issues a fresh token.
//
// The new token unconditionally replaces the stored one, so any earlier
// session for this user stops working (single-session model).
func (s *UserService) Login(ctx context.Context, req model.LoginUserRequest) (*model.TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(msgBadCredentials)
		}
		return nil, fmt.Errorf("service/user: login: %w", err)
	}

	if err := s.passwords.Verify(user.Password, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login rejected", slog.String("username", user.Username))
			return nil, apperror.Unauthorized(msgBadCredentials)
		}
		return nil, fmt.Errorf("service/user: login: %w", err)
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("service/user: login: %w", err)
	}

	if _, err := s.users.Update(ctx, user.Username, model.UserUpdate{SetToken: true, Token: &token}); err != nil {
		return nil, fmt.Errorf("service/user: login: storing token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("username", user.Username))

	return &model.TokenResponse{Token: token}, nil
}

// Get returns the profile of the authenticated caller.
func (s *UserService) Get(ctx context.Context, username string) (*model.UserResponse, error) {
	if err := s.validator.Struct(model.CurrentUserRequest{Username: username}); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/user: get: %w", err)
	}

	return user.ToResponse(), nil
}

// Update changes the caller's name and/or password.
//
// Only fields present in the request are written. A request with neither
// still succeeds and returns the current profile.
func (s *UserService) Update(ctx context.Context, req model.UpdateUserRequest) (*model.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	count, err := s.users.CountByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("service/user: update: %w", err)
	}
	if count != 1 {
		return nil, apperror.NotFound("user")
	}

	var upd model.UserUpdate
	if req.Name != nil {
		upd.Name = req.Name
	}
	if req.Password != nil {
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("service/user: update: %w", err)
		}
		upd.Password = &hash
	}

	user, err := s.users.Update(ctx, req.Username, upd)
	if err != nil {
		return nil, fmt.Errorf("service/user: update: %w", err)
	}

	s.logger.Info("user updated",
		slog.String("username", user.Username),
		slog.Bool("name", req.Name != nil),
		slog.Bool("password", req.Password != nil),
	)

	return user.ToResponse(), nil
}

// Logout clears the caller's token. The token used for this very request
// stops working as soon as this returns.
func (s *UserService) Logout(ctx context.Context, username string) (*model.UserResponse, error) {
	if err := s.validator.Struct(model.CurrentUserRequest{Username: username}); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("service/user: logout: %w", err)
	}

	user, err := s.users.Update(ctx, username, model.UserUpdate{SetToken: true, Token: nil})
	if err != nil {
		return nil, fmt.Errorf("service/user: logout: %w", err)
	}

	s.logger.Info("user logged out", slog.String("username", user.Username))

	return &model.UserResponse{ID: user.ID, Username: user.Username}, nil
}

// hashPassword hashes plaintext, turning bcrypt's byte limit into a
// validation error. The validator counts characters, bcrypt counts bytes, so
// a short password of multi-byte characters can still be too long here.
func (s *UserService) hashPassword(plaintext string) (string, error) {
	hash, err := s.passwords.Hash(plaintext)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.ValidationFailed("password",
				fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
		}
		return "", err
	}
	return hash, nil
}
