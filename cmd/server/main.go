package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inventory-backend/internal/alerting"
	"inventory-backend/internal/audit"
	"inventory-backend/internal/auth"
	"inventory-backend/internal/config"
	"inventory-backend/internal/database"
	"inventory-backend/internal/detection"
	"inventory-backend/internal/inventory"
	"inventory-backend/internal/lock"
	"inventory-backend/internal/logger"
	"inventory-backend/internal/metrics"
	"inventory-backend/internal/monitoring"
	"inventory-backend/internal/scheduler"
	"inventory-backend/internal/stock"
	"inventory-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.MetricsPrefix, reg)

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	st := store.NewGormStore(db, m)

	loc, err := cfg.Detection.Location()
	if err != nil {
		return err
	}
	policy, err := alerting.PolicyByName(cfg.Detection.AlertPolicy)
	if err != nil {
		return err
	}

	engine := detection.NewEngine(st, log.Named("detection"), m, detection.WithLocation(loc))
	gate := detection.NewGate(st, log.Named("detection"), m)
	generator := alerting.NewGenerator(st, policy, log.Named("alerting"), m)
	svc := detection.NewService(engine, gate, generator, log.Named("detection"), m)

	var locker lock.Locker = lock.NopLocker{}
	if cfg.Redis.Addr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.MetricsPrefix+":lock:")
		log.Info("redis connected, detection passes coordinated", zap.String("addr", cfg.Redis.Addr))
	}

	sched := scheduler.New(svc, locker, scheduler.Config{
		Interval:     cfg.Detection.Interval,
		InitialDelay: cfg.Detection.InitialDelay,
		LockTTL:      cfg.Detection.LockTTL,
	}, log.Named("scheduler"), m)
	sched.Start(ctx)
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			log.Error("unexpected error", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unexpected server error"})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(m.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok", "detection": sched.Stats()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	api := app.Group("/api", auth.JWTMiddleware(cfg.JWTSecret))
	auditor := audit.NewService(st)

	inventory.Register(api, inventory.Deps{
		Store:   st,
		Mutator: stock.NewMutator(st, log.Named("stock"), m),
		Audit:   auditor,
		Log:     log,
	})
	monitoring.Register(api, monitoring.Deps{
		Anomalies: st,
		Alerts:    st,
		Audit:     auditor,
		Trigger:   sched,
		Log:       log,
	})
	api.Get("/audit-logs", audit.ListAuditLogsHandler(st))

	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("port", cfg.HTTPPort))
		errc <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
