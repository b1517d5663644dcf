// README: Entry point; loads config, wires services, starts HTTP server and background monitors.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sokoni/internal/config"
	"sokoni/internal/earnings"
	httptransport "sokoni/internal/http"
	"sokoni/internal/infra"
	"sokoni/internal/logger"
	"sokoni/internal/maps"
	"sokoni/internal/modules/dispatch"
	"sokoni/internal/modules/order"
	"sokoni/internal/modules/pricing"
	"sokoni/internal/modules/returns"
	"sokoni/internal/modules/tracking"
	"sokoni/internal/notify"
	"sokoni/internal/stock"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Get().Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	pricingSvc, err := pricing.NewService(pricing.NewStore(dbPool), cfg.Fee, cfg.Dispatch)
	if err != nil {
		logger.Get().Fatal("pricing init", zap.Error(err))
	}
	if err := pricingSvc.Reload(ctx); err != nil {
		logger.Get().Warn("fee tier reload failed, using configured policy", zap.Error(err))
	}

	ledger := earnings.NewLedger(dbPool, cfg.Earnings.CommissionBps)
	releaser := stock.NewReleaser(dbPool)
	notifier := notify.NewLogNotifier()

	orderSvc := order.NewService(order.NewStore(dbPool), ledger, releaser, notifier)

	var refiner dispatch.ETARefiner
	if r, err := maps.NewETARefiner(cfg.MapsAPIKey); err != nil {
		logger.Get().Warn("maps client init failed, ETA stays speed-based", zap.Error(err))
	} else if r != nil {
		refiner = r
	}

	pendingSLA := time.Duration(cfg.Dispatch.PendingSLAMinutes) * time.Minute
	dispatchSvc := dispatch.NewService(dispatch.NewStore(dbPool, redisClient), pricingSvc, refiner, orderSvc, notifier, pendingSLA)

	trackingSvc := tracking.NewService(tracking.NewStore(dbPool, redisClient), dispatchSvc)

	window := time.Duration(cfg.Returns.WindowHours) * time.Hour
	returnsSvc := returns.NewService(returns.NewStore(dbPool), orderSvc, ledger, notifier, window)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Order:    orderSvc,
		Dispatch: dispatchSvc,
		Tracking: trackingSvc,
		Returns:  returnsSvc,
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go dispatchSvc.RunPendingMonitor(ctx)
	go dispatchSvc.RunDeliveredReconciler(ctx)

	go func() {
		logger.Get().Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Get().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("shutdown", zap.Error(err))
	}
}
