// Command licensekeyd runs the license key service: Postgres-backed stores,
// optional Redis cache and rate limiting, and the gin request gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"

	ginadapter "github.com/tuan304201/generate-license-key/adapters/gin"
	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	"github.com/tuan304201/generate-license-key/catalog"
	"github.com/tuan304201/generate-license-key/clock"
	core "github.com/tuan304201/generate-license-key/core"
	"github.com/tuan304201/generate-license-key/identity"
	jwtkit "github.com/tuan304201/generate-license-key/jwt"
	"github.com/tuan304201/generate-license-key/keygen"
	migrations "github.com/tuan304201/generate-license-key/migrations/postgres"
	memorylimiter "github.com/tuan304201/generate-license-key/ratelimit/memory"
	redislimiter "github.com/tuan304201/generate-license-key/ratelimit/redis"
	pgstore "github.com/tuan304201/generate-license-key/storage/postgres"
	redisstore "github.com/tuan304201/generate-license-key/storage/redis"
)

type config struct {
	Addr    string `envconfig:"ADDR" default:":8080"`
	GinMode string `envconfig:"GIN_MODE" default:"release"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBSchema    string `envconfig:"DB_SCHEMA" default:"licensing"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	BcryptSaltRounds     int           `envconfig:"BCRYPT_SALT_ROUNDS" default:"10"`
	EscalationWindowDays int           `envconfig:"ESCALATION_WINDOW_DAYS" default:"30"`
	CheckCacheTTL        time.Duration `envconfig:"CHECK_CACHE_TTL" default:"30s"`

	AuthIssuer   string `envconfig:"AUTH_ISSUER"`
	AuthAudience string `envconfig:"AUTH_AUDIENCE"`
	AuthJWKSURL  string `envconfig:"AUTH_JWKS_URL"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logrus.StandardLogger()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	if err := runMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	dir := identity.NewStore(pool, cfg.DBSchema)
	events := identity.NewEventStore(pool, cfg.DBSchema)
	cat := catalog.NewStore(pool, cfg.DBSchema)
	licenses := pgstore.NewLicenseStore(db)

	gen := keygen.New(keygen.Config{BcryptCost: cfg.BcryptSaltRounds})

	svc := core.NewService(core.Config{
		EscalationWindow: time.Duration(cfg.EscalationWindowDays) * 24 * time.Hour,
	}, licenses, dir, cat, gen, clock.System{}).
		WithLogger(log).
		WithEventLogger(events)

	var limiter ginutil.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		svc.WithStatusCache(redisstore.NewStatusCache(rdb, "license:check:", cfg.CheckCacheTTL))
		limiter = redislimiter.New(rdb, redisBuckets())
		log.Info("redis cache and rate limiting enabled")
	} else {
		limiter = memorylimiter.New(memoryBuckets())
		log.Warn("redis not configured; using in-memory rate limiting")
	}

	var verifier ginadapter.TokenVerifier
	if cfg.AuthJWKSURL != "" {
		v, err := jwtkit.NewVerifier(ctx, jwtkit.AcceptConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to configure token verifier")
		}
		verifier = v
	} else {
		log.Warn("AUTH_JWKS_URL not set; admin routes will reject all requests")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	ginadapter.Mount(r, ginadapter.Deps{
		Service:   svc,
		Directory: dir,
		Catalog:   cat,
		Limiter:   limiter,
		Auth:      verifier,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		log.WithField("addr", cfg.Addr).Info("license key service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func runMigrations(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if !group.IsZero() {
		logrus.WithField("group", group.String()).Info("applied migrations")
	}
	return nil
}

func redisBuckets() map[string]redislimiter.Limit {
	return map[string]redislimiter.Limit{
		ginutil.RLIssue:    {Limit: 30, Window: time.Minute},
		ginutil.RLActivate: {Limit: 10, Window: time.Minute},
		ginutil.RLCheck:    {Limit: 60, Window: time.Minute},
		ginutil.RLUsage:    {Limit: 120, Window: time.Minute},
		"default":          {Limit: 100, Window: time.Minute},
	}
}

func memoryBuckets() map[string]memorylimiter.Limit {
	return map[string]memorylimiter.Limit{
		ginutil.RLIssue:    {Limit: 30, Window: time.Minute},
		ginutil.RLActivate: {Limit: 10, Window: time.Minute},
		ginutil.RLCheck:    {Limit: 60, Window: time.Minute},
		ginutil.RLUsage:    {Limit: 120, Window: time.Minute},
		"default":          {Limit: 100, Window: time.Minute},
	}
}
