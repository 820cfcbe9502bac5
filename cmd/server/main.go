package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iliyamo/onstream-api/internal/config"
	"github.com/iliyamo/onstream-api/internal/database"
	"github.com/iliyamo/onstream-api/internal/handler"
	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/middleware"
	"github.com/iliyamo/onstream-api/internal/queue"
	"github.com/iliyamo/onstream-api/internal/repository"
	"github.com/iliyamo/onstream-api/internal/router"
	"github.com/iliyamo/onstream-api/internal/service"
	"github.com/iliyamo/onstream-api/internal/upstream"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.Log)
	logging.Info().Str("env", cfg.Env).Msg("starting OnStream API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	client, db, err := database.Open(startCtx, cfg.MongoURL, cfg.DBName)
	if err != nil {
		cancel()
		logging.Fatal().Err(err).Msg("connect to mongodb")
	}
	if err := database.EnsureSchema(startCtx, db); err != nil {
		cancel()
		logging.Fatal().Err(err).Msg("prepare database schema")
	}
	cancel()

	users := repository.NewUserRepo(db)
	titles := repository.NewTitleRepo(db)
	streams := repository.NewStreamRepo(db)
	favorites := repository.NewFavoriteRepo(db)
	history := repository.NewHistoryRepo(db)

	tmdb := upstream.NewTMDBClient(cfg.Upstream, nil)
	provider := upstream.NewStreamProvider(cfg.Upstream, nil, nil)

	var pub service.Publisher = service.NopPublisher{}
	if cfg.MessagingEnabled() {
		pub = service.NewAMQPPublisher(cfg.RabbitURL)
	}

	auth := service.NewAuthService(users, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost)
	resolver := service.NewResolver(titles, streams, tmdb, provider, cfg.Upstream.MetadataTTL, cfg.Upstream.StreamTTL)
	catalog := service.NewCatalog(titles, tmdb, cfg.Upstream.MetadataTTL)
	library := service.NewLibrary(favorites, history, pub)
	admin := service.NewAdmin(users, titles, streams, resolver, pub)

	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := auth.SeedAdmin(seedCtx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logging.Error().Err(err).Msg("seeding admin user failed")
	}
	cancel()

	rdb := config.NewRedisClient()
	e := router.New(cfg.CORSOrigins)
	router.RegisterRoutes(e, router.Handlers{
		Auth:    handler.NewAuthHandler(auth),
		Catalog: handler.NewCatalogHandler(catalog, resolver),
		Library: handler.NewLibraryHandler(library),
		Admin:   handler.NewAdminHandler(admin),
		Health:  handler.Health(database.Probe{Client: client}),
	}, router.Middleware{
		Auth:   auth,
		Limits: middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb),
		Cache:  middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	var wg sync.WaitGroup
	if cfg.MessagingEnabled() {
		consumers := []*queue.Consumer{
			queue.NewConsumer(cfg.RabbitURL, queue.ActivityQueue, queue.NewActivityLog(cfg.ActivityLogDir).Handle),
			queue.NewConsumer(cfg.RabbitURL, queue.PurgeQueue, admin.HandlePurgeJob),
		}
		for _, c := range consumers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = c.Run(ctx)
			}()
		}
	} else {
		logging.Info().Msg("messaging disabled; activity events are dropped and purges run in-process")
	}

	addr := ":" + cfg.Port
	go func() {
		logging.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("mongodb disconnect")
	}
	logging.Info().Msg("bye")
}
