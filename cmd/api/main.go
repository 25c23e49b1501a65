package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"accounts-api/internal/config"
	"accounts-api/internal/db"
	"accounts-api/internal/email"
	apihttp "accounts-api/internal/http"
	"accounts-api/internal/repository"
	"accounts-api/internal/service"
	"accounts-api/internal/sms"
	"accounts-api/internal/verify"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis unavailable, falling back to memory stores", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	var mailSender email.Sender
	if cfg.SMTPHost != "" {
		smtpSender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Fatal("smtp config", zap.Error(err))
		}
		mailSender = smtpSender
	} else {
		logger.Warn("smtp not configured, activation emails disabled")
		mailSender = email.NewDisabledSender("smtp not configured")
	}

	var smsSender sms.Sender
	if cfg.SMSGatewayURL != "" {
		smsSender, err = sms.NewHTTPSender(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSSenderID, 10*time.Second)
		if err != nil {
			logger.Fatal("sms gateway config", zap.Error(err))
		}
	} else {
		smsSender = sms.NewLogSender(logger)
	}

	var provider verify.Provider
	switch {
	case cfg.VerifyBaseURL != "":
		provider, err = verify.NewGatewayProvider(cfg.VerifyBaseURL, cfg.VerifyAPIKey, 5*time.Second)
		if err != nil {
			logger.Fatal("verify gateway config", zap.Error(err))
		}
	case redisClient != nil:
		provider = verify.NewRedisProvider(redisClient, smsSender, 10*time.Minute)
	default:
		logger.Warn("no verification provider configured, phone verification disabled")
		provider = verify.NewDisabledProvider("verification provider not configured")
	}

	var refreshStore service.RefreshTokenStore
	var codeLimiter service.CodeRateLimiter
	if redisClient != nil {
		refreshStore = service.NewRedisRefreshTokenStore(redisClient)
		codeLimiter = service.NewRedisCodeRateLimiter(redisClient, 10*time.Minute, 3)
	}

	accounts := repository.NewPgAccountRepository(pool)

	accountServ := service.NewAccountService(logger, accounts)
	authServ := service.NewAuthService(logger, service.NewRepoAuthenticator(accounts))
	jwtServ := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		refreshStore,
	)
	phoneVerif := service.NewPhoneVerificationService(logger, accounts, provider, codeLimiter)
	emailVerif := service.NewEmailVerificationService(logger, accounts, mailSender, cfg.JWTSecret, cfg.BaseURL)

	authH := apihttp.NewAuthHandler(logger, accountServ, authServ, jwtServ, emailVerif)
	accountH := apihttp.NewAccountHandler(logger, accounts, accountServ, phoneVerif, emailVerif)

	router := apihttp.NewRouter(logger, jwtServ, authH, accountH)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
