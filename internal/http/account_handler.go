package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/repository"
	"accounts-api/internal/service"
)

// AccountHandler mantiene dependencias para endpoints de cuenta autenticada.
type AccountHandler struct {
	logger      *zap.Logger
	accounts    repository.AccountRepository
	accountServ *service.AccountService
	phoneVerif  *service.PhoneVerificationService
	emailVerif  *service.EmailVerificationService
}

// NewAccountHandler crea una instancia de AccountHandler con dependencias necesarias.
func NewAccountHandler(
	logger *zap.Logger,
	accounts repository.AccountRepository,
	accountServ *service.AccountService,
	phoneVerif *service.PhoneVerificationService,
	emailVerif *service.EmailVerificationService,
) *AccountHandler {
	return &AccountHandler{
		logger:      logger,
		accounts:    accounts,
		accountServ: accountServ,
		phoneVerif:  phoneVerif,
		emailVerif:  emailVerif,
	}
}

// currentAccount carga la cuenta referida por los claims del middleware.
func (h *AccountHandler) currentAccount(c *gin.Context) (domain.Account, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return domain.Account{}, false
	}
	account, err := h.accounts.GetByID(c.Request.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown account"})
			return domain.Account{}, false
		}
		h.logger.Error("load account failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load account"})
		return domain.Account{}, false
	}
	return account, true
}

// Me maneja GET /account.
func (h *AccountHandler) Me(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// RequestPhoneCode maneja POST /account/phone/request-code. Tambien sirve de
// reenvio: cada solicitud invalida el codigo anterior.
func (h *AccountHandler) RequestPhoneCode(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	if err := h.phoneVerif.RequestCode(c.Request.Context(), account); err != nil {
		h.respondVerificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "code_sent"})
}

// ConfirmPhone maneja POST /account/phone/verify.
func (h *AccountHandler) ConfirmPhone(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid phone verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.phoneVerif.Confirm(c.Request.Context(), account, req.Code); err != nil {
		h.respondVerificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "phone_verified"})
}

// ResendActivation maneja POST /account/email/resend-activation.
func (h *AccountHandler) ResendActivation(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	if err := h.emailVerif.RequestLink(c.Request.Context(), account); err != nil {
		if errors.Is(err, service.ErrEmailSendFailure) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
			return
		}
		h.logger.Error("resend activation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resend activation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "activation_sent"})
}

// UpdateProfile maneja PUT /account/profile.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	updated, err := h.accountServ.UpdateProfile(c.Request.Context(), account, service.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondUpdateError(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": updated})
}

// UpdateEmail maneja PUT /account/email. El nuevo email queda sin verificar y
// recibe un link de activacion nuevo.
func (h *AccountHandler) UpdateEmail(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	var req struct {
		NewEmail string `json:"new_email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid email update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	updated, err := h.accountServ.UpdateEmail(c.Request.Context(), account, req.NewEmail, req.Password)
	if err != nil {
		h.respondUpdateError(c, err, "update email")
		return
	}
	if err := h.emailVerif.RequestLink(c.Request.Context(), updated); err != nil {
		h.logger.Warn("activation email not sent", zap.Error(err), zap.String("account_id", updated.ID))
	}
	c.JSON(http.StatusOK, gin.H{"account": updated})
}

// UpdatePhone maneja PUT /account/phone. El nuevo telefono queda sin verificar.
func (h *AccountHandler) UpdatePhone(c *gin.Context) {
	account, ok := h.currentAccount(c)
	if !ok {
		return
	}
	var req struct {
		NewPhone string `json:"new_phone"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid phone update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	updated, err := h.accountServ.UpdatePhone(c.Request.Context(), account, req.NewPhone, req.Password)
	if err != nil {
		h.respondUpdateError(c, err, "update phone")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": updated})
}

func (h *AccountHandler) respondVerificationError(c *gin.Context, err error) {
	var verrs service.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
	case errors.Is(err, service.ErrAlreadyVerified):
		c.JSON(http.StatusBadRequest, gin.H{"error": "already verified"})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	case errors.Is(err, service.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification provider unavailable"})
	default:
		h.logger.Error("phone verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify phone"})
	}
}

func (h *AccountHandler) respondUpdateError(c *gin.Context, err error, op string) {
	var verrs service.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
	case errors.Is(err, service.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not " + op})
	}
}
