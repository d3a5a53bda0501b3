package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/analytics"
	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/config"
	"github.com/iliyamo/parkease/internal/database"
	"github.com/iliyamo/parkease/internal/handler"
	"github.com/iliyamo/parkease/internal/logger"
	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/push"
	"github.com/iliyamo/parkease/internal/queue"
	"github.com/iliyamo/parkease/internal/repository"
	"github.com/iliyamo/parkease/internal/router"
	"github.com/iliyamo/parkease/internal/wallet"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.OptionsFromEnv(cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connect failed")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("schema migration failed")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	areas := repository.NewAreaRepo(db)
	slots := repository.NewSlotRepo(db)
	wallets := repository.NewWalletRepo(db)
	store := repository.NewStore(db)

	hub := push.NewHub(log.WithField("component", "push"))

	var wg sync.WaitGroup
	var notifier booking.Notifier = hub
	if cfg.RabbitURL != "" {
		notifier = startBroker(ctx, &wg, cfg, hub, log)
	} else {
		log.Info("RABBITMQ_URL not set; booking events go straight to the local push hub")
	}

	engine := booking.NewEngine(store, booking.Policy(cfg.Policy),
		booking.WithNotifier(notifier),
		booking.WithLogger(log.WithField("component", "booking")),
	)
	sweeper, err := booking.NewSweeper(engine, cfg.SweepSchedule, log.WithField("component", "sweeper"))
	if err != nil {
		log.WithError(err).Fatal("invalid sweep schedule")
	}
	sweeper.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.WithField("component", "http")))

	owner := handler.NewOwnerHandler(areas, slots,
		analytics.NewService(repository.NewAnalyticsRepo(db), analytics.WithLocation(cfg.Location)), log)
	owner.Loc = cfg.Location

	h := router.Handlers{
		Health:  handler.Health(db),
		Auth:    handler.NewAuthHandler(cfg, users, tokens, log),
		User:    handler.NewUserHandler(users, vehicles, wallets, log),
		Booking: handler.NewBookingHandler(engine, log),
		Slot:    handler.NewSlotHandler(areas, slots, log),
		Wallet:  handler.NewWalletHandler(wallet.NewService(store), wallets, model.Rupees(cfg.WalletMaxTopUp), log),
		Owner:   owner,
		Staff:   handler.NewStaffHandler(users, areas, slots, cfg.BcryptCost, log),
		Push:    handler.NewPushHandler(hub, cfg.JWTSecret, log.WithField("component", "push")),
		JWT:     cfg.JWTSecret,
	}
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		h.API = append(h.API, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		h.SlotsAll = append(h.SlotsAll, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	} else {
		log.Warn("redis unavailable; rate limiting and response caching disabled")
	}
	router.Register(e, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Env}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sweeper.Stop(shutdownCtx)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("broker workers did not stop in time")
	}
	log.Info("bye")
}

// startBroker wires the RabbitMQ publisher and both consumers.  The
// returned notifier publishes to the exchange and falls back to hub.
func startBroker(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, hub *push.Hub, log *logrus.Logger) booking.Notifier {
	qlog := log.WithField("component", "queue")
	pub := queue.NewPublisher(cfg.RabbitURL, hub, qlog)
	audit := logger.Rotating(cfg.AuditLogPath)

	wg.Add(3)
	go func() { defer wg.Done(); pub.Run(ctx) }()
	go func() { defer wg.Done(); queue.Consume(ctx, cfg.RabbitURL, queue.RelayBinding, queue.Relay(hub), qlog) }()
	go func() {
		defer wg.Done()
		defer audit.Close()
		queue.Consume(ctx, cfg.RabbitURL, queue.AuditBinding, queue.NewAuditLog(audit).Handle, qlog)
	}()
	return pub
}
