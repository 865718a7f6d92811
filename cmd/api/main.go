package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"equiplend/internal/config"
	"equiplend/internal/database"
	"equiplend/internal/events"
	"equiplend/internal/lock"
	"equiplend/internal/modules/booking"
	"equiplend/internal/modules/equipment"
	jwtsvc "equiplend/internal/pkg/jwt"
	"equiplend/internal/pkg/logger"
	"equiplend/internal/pkg/metrics"
	redispkg "equiplend/internal/pkg/redis"
	"equiplend/internal/pkg/telemetry"
	"equiplend/internal/repository"
)

const serviceName = "equiplend-api"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			lg.Error(sctx, "telemetry shutdown", err)
		}
	}()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	var (
		locker      lock.Locker = lock.NewLocalLocker()
		redisClient *redispkg.Client
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redispkg.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		rl, err := lock.NewRedisLocker(redisClient, cfg.Booking.LockTTL)
		if err != nil {
			return err
		}
		locker = rl
		lg.Info(ctx, "redis enabled: distributed booking locks and rate limiting")
	}

	hub := events.NewHub(cfg.CORS.AllowedOrigins)
	defer hub.Close()
	publishers := events.Fanout{hub}
	if brokers := events.SplitBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kp.Close()
		publishers = append(publishers, kp)
		lg.Info(ctx, "kafka booking events enabled")
	}

	bookingRepo := repository.NewBookingRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)

	j := jwtsvc.New(cfg.JWT.Secret, cfg.JWT.TTL)

	bookingService := booking.NewService(
		bookingRepo,
		equipmentRepo,
		repository.NewTxManager(db),
		locker,
		booking.Policy{
			MinDurationHours: cfg.Booking.MinDurationHours,
			MaxDurationHours: cfg.Booking.MaxDurationHours,
			MaxAdvance:       cfg.Booking.MaxAdvance,
			DayLocation:      cfg.Booking.DayLocation(),
		},
		booking.WithPublisher(publishers),
		booking.WithPublishTimeout(cfg.Booking.PublishTimeout),
		booking.WithMetrics(bookingMetrics),
		booking.WithLogger(lg),
	)
	bookingHandler := booking.NewHandler(bookingService)

	equipmentHandler := equipment.NewHandler(equipment.NewService(equipmentRepo, bookingRepo))

	if !cfg.App.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := routerDeps{
		log:       lg,
		jwt:       j,
		hub:       hub,
		registry:  reg,
		bookings:  bookingHandler,
		equipment: equipmentHandler,
		origins:   cfg.CORS.AllowedOrigins,
		health:    []func(context.Context) error{pingDB(db)},
	}
	if redisClient != nil {
		deps.limiter = redisClient
		deps.rateLimit = cfg.RateLimit
		deps.health = append(deps.health, redisClient.Ping)
	}
	r := newRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           otelhttp.NewHandler(r, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info(ctx, "listening on "+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info(context.Background(), "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func pingDB(db *gorm.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
