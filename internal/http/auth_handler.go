package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounts-api/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de autenticacion.
type AuthHandler struct {
	logger      *zap.Logger
	accountServ *service.AccountService
	authServ    *service.AuthService
	jwtServ     *service.JWTService
	emailVerif  *service.EmailVerificationService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(
	logger *zap.Logger,
	accountServ *service.AccountService,
	authServ *service.AuthService,
	jwtServ *service.JWTService,
	emailVerif *service.EmailVerificationService,
) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		accountServ: accountServ,
		authServ:    authServ,
		jwtServ:     jwtServ,
		emailVerif:  emailVerif,
	}
}

// Register maneja POST /auth/signup.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Phone           string `json:"phone"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	account, err := h.accountServ.Register(c.Request.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		var verrs service.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
			return
		}
		h.logger.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		return
	}

	// El link de activacion se envia fuera de la respuesta; una falla de
	// entrega no revierte el registro.
	if err := h.emailVerif.RequestLink(c.Request.Context(), account); err != nil {
		h.logger.Warn("activation email not sent", zap.Error(err), zap.String("account_id", account.ID))
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Phone      string `json:"phone"`
		Email      string `json:"email"`
		Password   string `json:"password" binding:"required"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	account, policy, err := h.authServ.Login(c.Request.Context(), service.LoginInput{
		Phone:      req.Phone,
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingIdentifier):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "phone or email is required"})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrInactiveAccount):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account is inactive"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		}
		return
	}

	tokens, err := h.jwtServ.GeneratePair(c.Request.Context(), account, policy)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "tokens": tokens})
}

// RefreshToken maneja POST /auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	_ = h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// ConfirmEmail maneja GET /auth/verify-email.
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	token := c.Query("token")
	account, err := h.emailVerif.Confirm(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOrExpiredToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		case errors.Is(err, service.ErrUnknownAccount):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		default:
			h.logger.Error("verify email failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify email"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}
