package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ibramadi75/SuperTube/internal/api/middleware"
	"github.com/Ibramadi75/SuperTube/internal/store"
)

type AuthHandler struct {
	store     *store.Store
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthHandler(st *store.Store, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		store:     st,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// --- Input types ---

type RegisterInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"8" doc:"Password"`
	}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type EmptyInput struct{}

// --- DTO types ---

type RegisterDTO struct {
	ID       string `json:"id" doc:"User ID"`
	Username string `json:"username" doc:"Username"`
}

type LoginUserDTO struct {
	ID       string `json:"id" doc:"User ID"`
	Username string `json:"username" doc:"Username"`
	Role     string `json:"role" doc:"User role"`
}

type LoginDTO struct {
	Token     string       `json:"token" doc:"JWT token"`
	ExpiresIn int          `json:"expires_in" doc:"Token lifetime in seconds"`
	User      LoginUserDTO `json:"user" doc:"User info"`
}

type MeDTO struct {
	ID       string `json:"id" doc:"User ID"`
	Username string `json:"username" doc:"Username"`
	Role     string `json:"role" doc:"User role"`
}

// --- Handlers ---

func (h *AuthHandler) Register(ctx context.Context, input *RegisterInput) (*DataOutput[RegisterDTO], error) {
	if _, err := h.store.GetUserByUsername(ctx, input.Body.Username); err == nil {
		return nil, huma.Error409Conflict("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Body.Password), 12)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to hash password")
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     input.Body.Username,
		PasswordHash: string(hash),
		Role:         "user",
	}
	if err := h.store.CreateUser(ctx, user); err != nil {
		return nil, huma.Error409Conflict("username already taken")
	}

	return OK(RegisterDTO{ID: user.ID, Username: user.Username}), nil
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*DataOutput[LoginDTO], error) {
	user, err := h.store.GetUserByUsername(ctx, input.Body.Username)
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Body.Password)); err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	token, err := middleware.GenerateJWT(user.ID, user.Role, h.jwtSecret, h.jwtExpiry)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}

	return OK(LoginDTO{
		Token:     token,
		ExpiresIn: int(h.jwtExpiry.Seconds()),
		User:      LoginUserDTO{ID: user.ID, Username: user.Username, Role: user.Role},
	}), nil
}

func (h *AuthHandler) Me(ctx context.Context, _ *EmptyInput) (*DataOutput[MeDTO], error) {
	user, err := h.store.GetUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("user not found")
		}
		return nil, huma.Error500InternalServerError("failed to load user")
	}

	return OK(MeDTO{ID: user.ID, Username: user.Username, Role: user.Role}), nil
}
