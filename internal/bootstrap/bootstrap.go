// Package bootstrap wires configuration into the running application:
// storage, queue, notification delivery, token handling and services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderly/app/controllers"
	"github.com/shashiranjanraj/orderly/app/notifications"
	"github.com/shashiranjanraj/orderly/app/repositories"
	"github.com/shashiranjanraj/orderly/app/routes"
	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/config"
	"github.com/shashiranjanraj/orderly/internal/kernel"
	"github.com/shashiranjanraj/orderly/pkg/auth"
	"github.com/shashiranjanraj/orderly/pkg/bind"
	"github.com/shashiranjanraj/orderly/pkg/database"
	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/mail"
	"github.com/shashiranjanraj/orderly/pkg/middleware"
	"github.com/shashiranjanraj/orderly/pkg/notification"
	"github.com/shashiranjanraj/orderly/pkg/queue"
	"github.com/shashiranjanraj/orderly/pkg/router"
	"github.com/shashiranjanraj/orderly/pkg/schedule"
	"github.com/shashiranjanraj/orderly/pkg/workerpool"
)

// ErrNoSigningKey is returned by Router when the JWT keys are not configured.
var ErrNoSigningKey = errors.New("bootstrap: SECRET_JWT_PRIVATE_KEY and SECRET_JWT_PUBLIC_KEY are required to serve")

// App is the wired application. Build it with New and release it with Close.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *repositories.Store
	Redis  *redis.Client // nil unless QUEUE_DRIVER=redis

	Queue      *queue.Manager
	Pool       *workerpool.Pool
	Dispatcher *notification.Dispatcher
	Limiter    *middleware.RateLimiter

	// Tokens is nil when no key pair is configured.
	Tokens   *auth.Authenticator
	Accounts *services.AuthService
	Orders   *services.OrderService
	Queries  *services.OrderQueryService
}

// SetupLogging installs the process logger for cfg. When LOG_MONGO_URI is
// set, records are also written to MongoDB; the returned func flushes them.
func SetupLogging(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	uri := cfg.Get("LOG_MONGO_URI", "")
	if uri == "" {
		logger.Setup(cfg.AppEnv(), os.Stdout)
		return func(context.Context) error { return nil }, nil
	}

	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	mongo, err := logger.NewMongoHandler(ctx, logger.MongoOptions{
		URI:        uri,
		Database:   cfg.Get("LOG_MONGO_DATABASE", "orderly"),
		Collection: cfg.Get("LOG_MONGO_COLLECTION", "logs"),
		Level:      level,
	})
	if err != nil {
		logger.Setup(cfg.AppEnv(), os.Stdout)
		return nil, err
	}
	logger.Setup(cfg.AppEnv(), os.Stdout, mongo)
	return mongo.Close, nil
}

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	return database.Open(ctx, database.Options{
		Driver: cfg.DatabaseDriver(),
		DSN:    cfg.DatabaseDSN(),
	})
}

// New wires every component. Nothing is started: the caller decides
// whether to run queue workers, the scheduler or the HTTP server.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	if app.DB, err = OpenDB(ctx, cfg); err != nil {
		return nil, err
	}
	app.Store = repositories.NewStore(app.DB)

	if app.Queue, err = app.newQueue(ctx); err != nil {
		return nil, err
	}

	app.Dispatcher = notification.NewDispatcher(
		mail.NewMailer(mail.Config{
			Host:     cfg.Get("MAIL_HOST", ""),
			Port:     cfg.Get("MAIL_PORT", "587"),
			Username: cfg.Get("MAIL_USERNAME", ""),
			Password: cfg.Get("MAIL_PASSWORD", ""),
			From:     cfg.Get("STORE_EMAIL", ""),
			FromName: cfg.Get("MAIL_FROM_NAME", "Orderly"),
			Timeout:  15 * time.Second,
		}),
		notification.WithSlackWebhook(cfg.SlackWebhook()),
		notification.WithWebhookURL(cfg.StoreWebhook()),
	)
	notifications.RegisterJobs(app.Queue, app.Dispatcher)

	app.Pool = workerpool.New(cfg.NotifyPoolSize(), workerpool.WithPanicHandler(func(r any) {
		logger.Error("notify: pool task panicked", "panic", r)
	}))

	if app.Tokens, err = loadAuthenticator(cfg); err != nil {
		return nil, err
	}
	var issuer services.TokenIssuer = unconfiguredIssuer{}
	if app.Tokens != nil {
		issuer = app.Tokens
	}

	app.Accounts, err = services.NewAuthService(services.AuthServiceDeps{
		Store:      app.Store,
		Tokens:     issuer,
		AccessTTL:  cfg.AccessTokenTTL(),
		RefreshTTL: cfg.RefreshTokenTTL(),
		BcryptCost: cfg.BcryptCost(),
	})
	if err != nil {
		return nil, err
	}

	app.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Store:    app.Store,
		Pricing:  services.NewPricingService(),
		Notifier: notifications.NewQueueNotifier(app.Pool, app.Queue),
	})
	if err != nil {
		return nil, err
	}
	app.Queries = services.NewOrderQueryService(app.Store)
	app.Limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute(), time.Minute)

	return app, nil
}

func (a *App) newQueue(ctx context.Context) (*queue.Manager, error) {
	opts := []queue.Option{
		queue.WithMaxRetry(a.Config.QueueMaxRetry()),
		queue.WithFailedJobStore(a.DB),
	}

	if a.Config.QueueDriver() == "redis" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     a.Config.RedisAddr(),
			Password: a.Config.RedisPassword(),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.Redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("bootstrap: redis ping %s: %w", a.Config.RedisAddr(), err)
		}
		opts = append(opts, queue.WithDriver(queue.NewRedisDriver(a.Redis, "orderly")))
	}

	return queue.New(opts...), nil
}

// loadAuthenticator returns nil when neither key is configured.
func loadAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	private, privErr := cfg.JWTPrivateKey()
	public, pubErr := cfg.JWTPublicKey()
	if privErr != nil && pubErr != nil {
		return nil, nil
	}
	if pubErr != nil {
		return nil, pubErr
	}
	if privErr != nil {
		private = nil
	}
	return auth.NewAuthenticator(private, public, cfg.Issuer())
}

type unconfiguredIssuer struct{}

func (unconfiguredIssuer) Issue(uint, time.Duration) (string, error) {
	return "", ErrNoSigningKey
}

// Router builds the full HTTP handler tree.
func (a *App) Router() (*router.Router, error) {
	if a.Tokens == nil {
		return nil, ErrNoSigningKey
	}
	return a.buildRouter(a.Tokens), nil
}

// RouteTable lists the named routes. It works without a key pair.
func (a *App) RouteTable() []router.RouteInfo {
	var v middleware.TokenValidator = rejectAll{}
	if a.Tokens != nil {
		v = a.Tokens
	}
	return a.buildRouter(v).Routes()
}

type rejectAll struct{}

func (rejectAll) Validate(string) (uint, error) { return 0, ErrNoSigningKey }

func (a *App) buildRouter(v middleware.TokenValidator) *router.Router {
	b := bind.New(a.Config.MaxBodyBytes())
	ctrls := routes.Controllers{
		Auth:   controllers.NewAuthController(a.Accounts, b),
		Orders: controllers.NewOrderController(a.Orders, a.Queries, b),
	}
	return kernel.NewHTTPKernel(kernel.Options{
		Limiter: a.Limiter,
		CORS:    middleware.DefaultCORSOptions(a.Config.CORSAllowedOrigins()...),
		Health:  a.Ping,
		Routes: func(r *router.Router) {
			routes.RegisterAPI(r, ctrls, middleware.Authenticate(v))
		},
	})
}

// Scheduler returns the maintenance tasks of a serving process.
func (a *App) Scheduler() *schedule.Scheduler {
	s := schedule.New()
	s.Every(a.Limiter.Window()).Name("rate-limit.prune").Run(func(context.Context) error {
		a.Limiter.Prune()
		return nil
	})

	if retention := a.Config.FailedJobRetention(); retention > 0 {
		s.Every(time.Hour).Name("failed-jobs.prune").WithoutOverlapping().Run(func(ctx context.Context) error {
			n, err := queue.PruneFailed(ctx, a.DB, time.Now().Add(-retention))
			if n > 0 {
				logger.Info("schedule: pruned failed jobs", "count", n)
			}
			return err
		})
	}
	return s
}

// Ping checks the database and, when used, redis.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		return a.Redis.Ping(ctx).Err()
	}
	return nil
}

// Close drains the notification pool and releases connections. It is safe
// on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notify pool: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Describe summarises the wiring for the startup log line.
func (a *App) Describe() []any {
	return []any{
		"env", a.Config.AppEnv(),
		"db", a.Config.DatabaseDriver(),
		"queue", a.Config.QueueDriver(),
		"slack", a.Dispatcher.SlackEnabled(),
		"webhook", a.Dispatcher.WebhookEnabled(),
		"auth", a.Tokens != nil,
		"cors", strings.Join(a.Config.CORSAllowedOrigins(), ","),
	}
}
