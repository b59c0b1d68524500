package setup

import (
	"github.com/redis/go-redis/v9"

	"github.com/teofly/gallery-api/internal/config"
	"github.com/teofly/gallery-api/internal/handler"
	"github.com/teofly/gallery-api/internal/logger"
	"github.com/teofly/gallery-api/internal/middleware"
	"github.com/teofly/gallery-api/internal/middleware/ratelimiter"
	"github.com/teofly/gallery-api/internal/service"
	"github.com/teofly/gallery-api/internal/storage/pg"
	"github.com/teofly/gallery-api/internal/token"
)

// Dependencies holds every initialized component the router needs.
type Dependencies struct {
	Config        *config.Config
	Storage       *pg.Storage
	Auth          *service.Auth
	Handler       *handler.Handler
	HealthHandler *handler.HealthHandler
	AuthMw        *middleware.Auth
	LoginLimiter  ratelimiter.Limiter
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := token.New(
		cfg.Private.AccessTokenSecret,
		cfg.Private.RefreshTokenSecret,
		cfg.Public.AccessTokenTTL,
		cfg.Public.RefreshTokenTTL,
	)
	if err != nil {
		return nil, err
	}

	auth := service.NewAuth(storage, tokens, cfg)
	h := handler.New(auth)

	return &Dependencies{
		Config:        cfg,
		Storage:       storage,
		Auth:          auth,
		Handler:       h,
		HealthHandler: handler.NewHealth(storage),
		AuthMw:        middleware.NewAuth(tokens, storage),
		LoginLimiter:  newLoginLimiter(cfg),
	}, nil
}

// newLoginLimiter picks the login attempt counter backend. With a Redis
// address configured the window is shared across instances; otherwise a
// per-process one is used.
func newLoginLimiter(cfg *config.Config) ratelimiter.Limiter {
	if cfg.Private.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Private.Redis.Addr,
			Password: cfg.Private.Redis.Password,
		})
		logger.Log.Info("using redis login rate limiter", "addr", cfg.Private.Redis.Addr)
		return ratelimiter.NewRedis(client, cfg.Public.LoginRateWindow, cfg.Public.LoginRateMaxAttempts)
	}
	logger.Log.Info("using in-memory login rate limiter")
	return ratelimiter.NewMemory(cfg.Public.LoginRateWindow, cfg.Public.LoginRateMaxAttempts)
}
