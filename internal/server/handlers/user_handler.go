package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/wattwise/internal/domain/models"
	repo "github.com/mamadbah2/wattwise/internal/repository/mongodb"
	"github.com/mamadbah2/wattwise/internal/service/auth"
)

const tokenCookie = "token"

// UserHandler serves the cookie-based auth and user-data endpoints.
type UserHandler struct {
	svc          *auth.Service
	users        repo.UserRepository
	secureCookie bool
	logger       *zap.Logger
}

// NewUserHandler constructs the HTTP handler adapter.
func NewUserHandler(svc *auth.Service, users repo.UserRepository, secureCookie bool, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{svc: svc, users: users, secureCookie: secureCookie, logger: logger}
}

// Welcome handles GET /.
func (h *UserHandler) Welcome(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to the Server")
}

// Register creates a new account and sets the session cookie.
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	user, token, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
			return
		}
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}

	h.setTokenCookie(c, token)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login authenticates credentials and sets the session cookie.
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}

	user, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email or password"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}

	h.setTokenCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "User logged in successfully",
		"user":    user,
	})
}

// Logout clears the session cookie.
func (h *UserHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(tokenCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully"})
}

// GetUserData returns the authenticated user's aggregate, password excluded.
func (h *UserHandler) GetUserData(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.logger.Error("failed to load user data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User data retrieved successfully",
		"user":    user,
	})
}

// IsAuth reports whether the request carries a valid session cookie.
func (h *UserHandler) IsAuth(c *gin.Context) {
	if _, ok := h.authenticate(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"isVerified": true})
}

func (h *UserHandler) authenticate(c *gin.Context) (string, bool) {
	token, err := c.Cookie(tokenCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return "", false
	}

	userID, err := h.svc.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
		return "", false
	}

	return userID, true
}

func (h *UserHandler) setTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	maxAge := int(h.svc.TokenTTL().Seconds())
	c.SetCookie(tokenCookie, token, maxAge, "/", "", h.secureCookie, true)
}
