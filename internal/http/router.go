package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounts-api/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtServ *service.JWTService,
	authH *AuthHandler,
	accountH *AccountHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/signup", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.RefreshToken)
	auth.GET("/verify-email", authH.ConfirmEmail)
	auth.POST("/logout", JWTAuthMiddleware(jwtServ), authH.Logout)

	account := r.Group("/account", JWTAuthMiddleware(jwtServ))
	account.GET("", accountH.Me)
	account.POST("/phone/request-code", accountH.RequestPhoneCode)
	account.POST("/phone/verify", accountH.ConfirmPhone)
	account.POST("/email/resend-activation", accountH.ResendActivation)
	account.PUT("/profile", accountH.UpdateProfile)
	account.PUT("/email", accountH.UpdateEmail)
	account.PUT("/phone", accountH.UpdatePhone)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
