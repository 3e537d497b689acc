package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/middleware"
	"github.com/AnTengye/creditreport/model"
	"github.com/AnTengye/creditreport/pkg/logger"
	"github.com/AnTengye/creditreport/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users  *service.UserService
	config *config.AuthConfig
}

func NewAuthHandler(users *service.UserService, cfg *config.AuthConfig) *AuthHandler {
	useJSONFieldNames()
	return &AuthHandler{users: users, config: cfg}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest fields are optional; empty values are left unchanged
type UpdateProfileRequest struct {
	Name     string `json:"name" binding:"omitempty,max=100"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register, login and profile update
type AuthResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// withToken issues a fresh token for user and replies with status
func (h *AuthHandler) withToken(c *gin.Context, status int, message string, user *model.User) {
	token, expiresAt, err := middleware.GenerateToken(user, h.config)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to generate token", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respond(c, status, message, AuthResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// userError maps user service errors to responses
func userError(c *gin.Context, err error, fallback string) {
	var weak *service.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		fail(c, http.StatusBadRequest, "Password must be at least "+strconv.Itoa(weak.MinLength)+" characters long")
	case errors.Is(err, service.ErrEmailTaken):
		fail(c, http.StatusBadRequest, "User already exists with this email")
	case errors.Is(err, service.ErrUserNotFound):
		fail(c, http.StatusNotFound, "User not found")
	default:
		logger.Error(c.Request.Context(), fallback, "error", err)
		fail(c, http.StatusInternalServerError, fallback)
	}
}

// Register creates an account and signs it in
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Please fill all fields")
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		userError(c, err, "Server error during registration")
		return
	}

	logger.Info(c.Request.Context(), "user registered", "user_id", user.ID)
	h.withToken(c, http.StatusCreated, "User registered successfully", user)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Please provide email and password")
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		userError(c, err, "Server error during login")
		return
	}

	h.withToken(c, http.StatusOK, "Login successful", user)
}

// GetCurrentUser returns the signed-in user's profile
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		userError(c, err, "Server error while fetching profile")
		return
	}
	respond(c, http.StatusOK, "", user)
}

// UpdateProfile changes name, email or password and returns a fresh token
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Invalid profile data")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), service.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		userError(c, err, "Server error while updating profile")
		return
	}

	h.withToken(c, http.StatusOK, "Profile updated successfully", user)
}
