package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/wishly/internal/config"
	"github.com/iliyamo/wishly/internal/database"
	"github.com/iliyamo/wishly/internal/handler"
	"github.com/iliyamo/wishly/internal/metrics"
	"github.com/iliyamo/wishly/internal/middleware"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/readmodel"
	"github.com/iliyamo/wishly/internal/realtime"
	"github.com/iliyamo/wishly/internal/repository"
	"github.com/iliyamo/wishly/internal/router"
	"github.com/iliyamo/wishly/internal/service"
	"github.com/iliyamo/wishly/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel)
	instanceID := uuid.NewString()
	base := logger.WithFields(log, logrus.Fields{"env": cfg.Env, "instance_id": instanceID})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB, base.WithField("component", "db"))
	if err != nil {
		base.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	if err := database.Migrate(db, log); err != nil {
		base.WithError(err).Fatal("failed to migrate database")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Redis is optional: without it there is no rate limiting and no
	// snapshot cache.
	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	switch {
	case err != nil:
		base.WithError(err).Warn("redis unavailable, running without rate limiting and snapshot cache")
	case rdb == nil:
		base.Info("redis disabled")
	default:
		defer rdb.Close()
	}
	var invalidator service.Invalidator
	var cache *readmodel.Cache
	if cc := cfg.Cache; cc.Enabled && rdb != nil {
		cache = readmodel.NewCache(rdb, cc.Prefix, cc.TTL)
		cache.OnResult = m.CacheResult
		invalidator = cache
	}

	hub := realtime.NewHub(cfg.Realtime.SendBuffer, m, base.WithField("component", "hub"))

	g, gctx := errgroup.WithContext(ctx)

	var publisher service.EventPublisher
	if events := cfg.Events; events.RabbitURL != "" {
		p := queue.NewPublisher(events.RabbitURL, events.Exchange, instanceID, base.WithField("component", "publisher"))
		defer p.Close()
		publisher = p
		relay := &queue.Relay{
			URL:        events.RabbitURL,
			Exchange:   events.Exchange,
			InstanceID: instanceID,
			Deliver: func(ev queue.Event) {
				// Another instance already invalidated the shared cache.
				hub.Broadcast(ev)
				m.Event("relay", nil)
			},
			Log: base.WithField("component", "relay"),
		}
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		base.Info("RABBITMQ_URL not set, realtime events stay on this instance")
	}

	notifier := service.NewNotifier(invalidator, hub, publisher, m, base.WithField("component", "notifier"))

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	wishlistRepo := repository.NewWishlistRepo(db)
	itemRepo := repository.NewItemRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	contributionRepo := repository.NewContributionRepo(db)

	svcLog := base.WithField("component", "service")
	wishlists := service.NewWishlistService(wishlistRepo, itemRepo, cache, notifier, svcLog)
	reservations := service.NewReservationService(itemRepo, reservationRepo, notifier, m, svcLog)
	contributions := service.NewContributionService(itemRepo, contributionRepo, notifier, m, svcLog)

	hLog := base.WithField("component", "http")
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.GuestHeader},
	}))
	e.Use(middleware.RequestLogger(log))

	limiter := middleware.GuestRateLimit(cfg.RateLimit, rdb, base.WithField("component", "ratelimit"))
	router.RegisterRoutes(e, db, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, hLog), cfg.JWTSecret)
	router.RegisterOwner(e, handler.NewOwnerHandler(wishlists, hLog), cfg.JWTSecret)
	router.RegisterGuest(e,
		handler.NewGuestHandler(reservations, contributions, hLog),
		handler.NewPublicHandler(wishlists, hLog),
		handler.NewRealtimeHandler(wishlists, realtime.NewServer(hub, cfg.Realtime, cfg.CORSOrigins, base.WithField("component", "ws")), hLog),
		cfg.JWTSecret,
		limiter,
	)

	addr := ":" + cfg.Port // Address string with port
	g.Go(func() error {
		base.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		base.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		base.WithError(err).Error("server stopped with error")
	}
	notifier.Close()
	base.Info("bye")
}
