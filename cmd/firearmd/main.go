// Package main is the firearm charge service. It listens for host hook RPCs,
// applies charge and misfire rules to muzzle-loading firearms, and exposes
// metrics and health checks on an admin HTTP port.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/config"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/dice"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/gameserver"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/metrics"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/observability"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/scripting"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/server"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	shutdownTimeout := flag.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	healthInterval := flag.Duration("health-interval", 30*time.Second, "database health check interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "firearmd")
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting firearm service",
		zap.String("config", *configPath),
		zap.Duration("config_load", time.Since(start)),
	)

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected", zap.Duration("elapsed", time.Since(start)))

	weapons := postgres.NewWeaponRepository(pool.DB())
	chat := postgres.NewChatRepository(pool.DB())

	registry, err := firearm.BuildRegistry(cfg.Firearm.Names, cfg.Firearm.RegistryFile)
	if err != nil {
		logger.Fatal("building firearm registry", zap.Error(err))
	}
	logger.Info("firearm registry loaded", zap.Int("count", registry.Len()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	metrics.RegisterPoolStats(reg, pool)

	notifier := observability.NewLogNotifier(logger)
	broker := gameserver.NewPromptBroker(cfg.Firearm.PromptTimeout, logger)

	classifier := firearm.NewClassifier(registry, weapons, cfg.Firearm.FlagNamespace, logger)
	charges := firearm.NewChargeTracker(weapons, logger)
	reload := firearm.NewReloadInteraction(broker, charges, notifier, chat, logger)
	resolver := firearm.NewResolver(classifier, charges, reload, weapons, firearm.Rules{
		MisfireEnabled:      cfg.Firearm.MisfireEnabled,
		CatastrophicMisfire: cfg.Firearm.CatastrophicMisfire,
		MagicConsumesCharge: cfg.Firearm.MagicConsumesCharge,
	}, notifier, chat, logger)
	resolver.OnResolved = m.ObserveResolution

	if cfg.Firearm.ScriptDir != "" {
		scripts := scripting.NewManager(dice.NewLoggedRoller(dice.NewCryptoSource(), logger), logger)
		if _, err := scripts.Load(cfg.Firearm.ScriptDir, cfg.Firearm.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading house rule scripts", zap.Error(err))
		}
		defer scripts.Close()
		resolver.Policy = scripting.NewMisfirePolicy(scripts, logger)
	}

	dispatcher := gameserver.NewHookDispatcher()
	firearm.NewHooks(classifier, resolver, logger).Register(dispatcher)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			gameserver.UnaryInterceptor(logger, m.ObserveRPC),
			gameserver.OperatorAuth(cfg.Server.OperatorTokenHash),
		),
	)
	gameserver.NewFirearmService(dispatcher, broker, weapons, logger).Register(grpcServer)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(gameserver.ServiceName, healthpb.HealthCheckResponse_SERVING)

	adminServer := &http.Server{
		Addr: cfg.Admin.Addr(),
		Handler: metrics.NewAdminRouter(reg, m, logger, map[string]metrics.HealthChecker{
			"database": pool,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lifecycle := server.NewLifecycle(logger)

	// Added first so the pool closes after the listeners drain.
	stopHealth := make(chan struct{})
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(*healthInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stopHealth:
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
						healthServer.SetServingStatus(gameserver.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
						continue
					}
					healthServer.SetServingStatus(gameserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
				}
			}
		},
		StopFn: func() {
			healthServer.Shutdown()
			close(stopHealth)
			pool.Close()
		},
	})

	grpcSvc := server.NewGRPCService(grpcServer, cfg.Server.Addr(), *shutdownTimeout)
	addr, err := grpcSvc.Listen()
	if err != nil {
		logger.Fatal("opening grpc listener", zap.Error(err))
	}
	lifecycle.Add("grpc", grpcSvc)
	lifecycle.Add("admin", server.NewHTTPService(adminServer, *shutdownTimeout))

	if cfg.Server.OperatorTokenHash == "" {
		logger.Warn("operator token not configured; prompt RPCs are unauthenticated")
	}

	logger.Info("firearm service initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", addr.String()),
		zap.String("admin_addr", cfg.Admin.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
