// cmd/warden/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/FairForge/warden/internal/alerting"
	"github.com/FairForge/warden/internal/api"
	"github.com/FairForge/warden/internal/audit"
	"github.com/FairForge/warden/internal/auth"
	"github.com/FairForge/warden/internal/config"
	"github.com/FairForge/warden/internal/events"
	"github.com/FairForge/warden/internal/failover"
	"github.com/FairForge/warden/internal/logger"
	"github.com/FairForge/warden/internal/notify"
	"github.com/FairForge/warden/internal/ratelimit"
	"github.com/FairForge/warden/internal/rbac"
)

func main() {
	configPath := flag.String("config", config.GetEnvOrDefault("WARDEN_CONFIG", "warden.yaml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("config load failed", zap.Error(err))
	}

	logger := logger.New(cfg.Server.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus with every event mirrored onto the structured log.
	bus := events.NewSimpleEventBus()
	eventLogger := events.NewEventLogger(logger)
	if err := bus.Subscribe("*", func(_ context.Context, e events.Event) error {
		eventLogger.Log(e)
		return nil
	}); err != nil {
		logger.Fatal("event logger subscription failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := failover.NewMetrics(registry)

	manager := failover.NewManager(logger,
		failover.WithProber(failover.NewHTTPProber()),
		failover.WithNotifier(failover.NewBusNotifier(bus)),
		failover.WithMetrics(metrics),
	)
	defer manager.Stop()

	for _, svc := range cfg.Services {
		if err := manager.RegisterService(svc); err != nil {
			logger.Fatal("service registration failed",
				zap.String("service", svc.ServiceName), zap.Error(err))
		}
	}

	// Notification fan-out for failover and alert events.
	dispatcher := notify.NewDispatcher(logger)
	for _, chCfg := range cfg.Notify {
		ch, err := notify.NewChannel(chCfg.Kind)
		if err != nil {
			logger.Fatal("unknown notify channel", zap.String("name", chCfg.Name), zap.Error(err))
		}
		if err := ch.Configure(chCfg.Settings); err != nil {
			logger.Fatal("notify channel misconfigured", zap.String("name", chCfg.Name), zap.Error(err))
		}
		dispatcher.AddChannel(chCfg.Name, ch)
	}
	for _, pattern := range []string{"failover.*", "alert.*", string(events.HealthCheckFailed)} {
		if err := dispatcher.SubscribeTo(bus, pattern); err != nil {
			logger.Fatal("notify subscription failed", zap.Error(err))
		}
	}

	alerts := alerting.NewManager(alerting.ManagerConfig{
		EvaluationInterval: cfg.Alerting.EvaluationInterval,
	}, logger, bus)
	alerts.SetMetricsProvider(alerting.FailoverMetricsProvider(manager))
	for _, rule := range cfg.Alerting.Rules {
		if _, err := alerts.AddRule(rule); err != nil {
			logger.Fatal("alert rule rejected", zap.String("rule", rule.Name), zap.Error(err))
		}
	}
	go alerts.Start(ctx)

	if cfg.Audit.PostgresDSN != "" {
		store, err := audit.Open(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			logger.Fatal("audit store unavailable", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		if err := store.SubscribeTo(bus, "*", logger); err != nil {
			logger.Fatal("audit subscription failed", zap.Error(err))
		}
		logger.Info("audit store connected")
	}

	var authSvc *auth.Service
	if cfg.Auth.Secret != "" {
		authSvc, err = auth.NewService(cfg.Auth.Secret)
		if err != nil {
			logger.Fatal("auth setup failed", zap.Error(err))
		}
		authSvc.SetTokenTTL(cfg.Auth.TokenTTL)
		if pw := os.Getenv("WARDEN_ADMIN_PASSWORD"); pw != "" {
			if err := authSvc.AddOperator("admin", pw, rbac.RoleAdmin); err != nil {
				logger.Fatal("admin operator setup failed", zap.Error(err))
			}
		}
	} else {
		logger.Warn("auth secret not set, API is unauthenticated")
	}

	limiter := ratelimit.NewClientLimiter(cfg.RateLimit)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep(time.Hour)
			}
		}
	}()

	// Hot reload: config edits reshape the live service set.
	watcher := config.NewWatcher(*configPath, logger, func(next *config.Config) {
		applyServices(logger, manager, next.Services)
	})
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("config watcher stopped", zap.Error(err))
		}
	}()

	server := api.NewServer(cfg.Server, logger, manager, alerts, authSvc, limiter, registry)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		cancel()
	}()

	logger.Info("warden started",
		zap.Int("port", cfg.Server.Port),
		zap.Int("services", len(cfg.Services)))

	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// applyServices reconciles the registered services against the new
// config: updates in place, registers additions, unregisters removals.
func applyServices(logger *zap.Logger, manager *failover.Manager, services []failover.ServiceConfig) {
	wanted := make(map[string]bool, len(services))
	for _, svc := range services {
		wanted[svc.ServiceName] = true
		err := manager.UpdateServiceConfig(svc)
		if err == failover.ErrServiceNotFound {
			err = manager.RegisterService(svc)
		}
		if err != nil {
			logger.Error("service config apply failed",
				zap.String("service", svc.ServiceName), zap.Error(err))
		}
	}
	for _, name := range manager.ListServices() {
		if !wanted[name] {
			if err := manager.UnregisterService(name); err != nil {
				logger.Error("service unregister failed",
					zap.String("service", name), zap.Error(err))
			}
		}
	}
}
