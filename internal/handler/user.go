// Package handler contains the HTTP handlers for the account API.
//
// A handler only decodes the request, calls the service and encodes the
// result. Validation, hashing and store access all live below it.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/user-accounts/internal/apperror"
	"github.com/sakif/user-accounts/internal/auth"
	"github.com/sakif/user-accounts/internal/model"
)

// UserService is the part of service.UserService the handlers call.
// Declared here, where it is consumed, so tests can substitute a stub.
type UserService interface {
	Register(ctx context.Context, req model.RegisterUserRequest) (*model.UserResponse, error)
	Login(ctx context.Context, req model.LoginUserRequest) (*model.TokenResponse, error)
	Get(ctx context.Context, username string) (*model.UserResponse, error)
	Update(ctx context.Context, req model.UpdateUserRequest) (*model.UserResponse, error)
	Logout(ctx context.Context, username string) (*model.UserResponse, error)
}

// UserHandler serves the /api/users routes.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister      → POST   /api/users
//   - HandleLogin         → POST   /api/users/login
//   - HandleGetCurrent    → GET    /api/users/current   (auth)
//   - HandleUpdateCurrent → PATCH  /api/users/current   (auth)
//   - HandleLogout        → DELETE /api/users/logout    (auth)
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users
// REQUEST BODY: {"username": "test", "password": "rahasia", "name": "test"}
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, resp)
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/users/login
// REQUEST BODY: {"username": "test", "password": "rahasia"}
// RESPONSE:     {"data": {"token": "<uuid>"}}
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.users.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, resp)
}

// HandleGetCurrent returns the caller's profile.
//
// HTTP: GET /api/users/current
func (h *UserHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	username, ok := h.currentUsername(w, r)
	if !ok {
		return
	}

	resp, err := h.users.Get(r.Context(), username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, resp)
}

// updateBody is what PATCH /api/users/current accepts. A key that is absent
// from the JSON leaves its pointer nil.
type updateBody struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// HandleUpdateCurrent changes the caller's name and/or password.
//
// HTTP: PATCH /api/users/current
// REQUEST BODY: {"name": "Ilman"} or {"password": "rahasialagi"} or both
func (h *UserHandler) HandleUpdateCurrent(w http.ResponseWriter, r *http.Request) {
	username, ok := h.currentUsername(w, r)
	if !ok {
		return
	}

	var body updateBody
	if !h.decode(w, r, &body) {
		return
	}

	resp, err := h.users.Update(r.Context(), model.UpdateUserRequest{
		Username: username,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, resp)
}

// HandleLogout revokes the caller's token.
//
// HTTP: DELETE /api/users/logout
// RESPONSE: {"data": "ok"}
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	username, ok := h.currentUsername(w, r)
	if !ok {
		return
	}

	if _, err := h.users.Logout(r.Context(), username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, "ok")
}

// decode reads a single JSON value into dst. An empty body counts as {} so
// that PATCH with nothing to change behaves like PATCH {}; anything after the
// first value is rejected. On failure it answers 400 and returns false; the
// caller must stop.
func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err == nil {
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("unexpected data after JSON value")
		}
	}
	if err != nil {
		h.logger.Warn("invalid JSON body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, h.logger, apperror.ValidationFailed("body", "Invalid JSON body"))
		return false
	}
	return true
}

// currentUsername reads the username RequireAuth stored in the context.
// Reaching a protected handler without it is a routing mistake, so it is
// answered the same way the gate answers a bad token.
func (h *UserHandler) currentUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("Unauthorized"))
		return "", false
	}
	return username, true
}
