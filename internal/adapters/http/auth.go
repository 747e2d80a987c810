package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/store"
)

// AuthHandlers exposes the account routes. Room membership never checks
// them; a client that can open the socket may join rooms.
type AuthHandlers struct {
	Users *store.Users
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

func (h *AuthHandlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token, user, err := h.Users.Register(req.Name, req.Email, req.Password)
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
	case errors.Is(err, store.ErrAccountExists):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("register failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	default:
		c.JSON(http.StatusOK, authResponse{Token: token, User: user})
	}
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token, user, err := h.Users.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
	case errors.Is(err, store.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	default:
		c.JSON(http.StatusOK, authResponse{Token: token, User: user})
	}
}
