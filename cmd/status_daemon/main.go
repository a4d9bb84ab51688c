package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"currency_status/internal/app/operator"
	"currency_status/internal/app/service"
	"currency_status/internal/infrastructure/configloader"
	clientprovider "currency_status/internal/infrastructure/network/client"
	networkdefinition "currency_status/internal/infrastructure/network/definition"
	"currency_status/internal/infrastructure/networkstatus"
	"currency_status/internal/infrastructure/preferences"
	"currency_status/internal/infrastructure/quotes"
	"currency_status/internal/infrastructure/refresher"
	"currency_status/internal/infrastructure/restapi"
	"currency_status/internal/infrastructure/staking"
	"currency_status/internal/infrastructure/walletloader"
	"currency_status/internal/pkg/logger"
	"currency_status/internal/pkg/metrics"
	"currency_status/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

func main() {
	cfgPath := utils.GetEnv("CONFIG_PATH", configloader.DefaultPath)
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		logrus.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger.RedirectSlog(zapLogger)
	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.MustRegisterMetrics()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Status daemon stopped with error", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}

func run(cfg *configloader.Config, zapLogger *zap.Logger) error {
	registry := networkdefinition.NewRegistry(cfg.Networks, zapLogger)
	zapLogger.Info("Networks registered", zap.Int("count", len(registry.AllNetworks())))

	wallets := walletloader.NewLoader(cfg.Files.Wallets, registry, cfg.Cache.DefaultExpiration(), zapLogger)
	if _, err := wallets.Wallets(false); err != nil {
		return fmt.Errorf("failed to load wallets: %w", err)
	}

	sortingStore, err := preferences.NewFileStore(cfg.Files.Preferences, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}

	clients := clientprovider.NewEVMClientProvider(cfg.RpcClient, zapLogger)
	networkStatuses := networkstatus.NewRepository(
		wallets,
		wallets,
		clients,
		cfg.Cache.DefaultExpiration(),
		cfg.Cache.CleanupInterval(),
		cfg.Performance.MaxConcurrentRoutines,
		zapLogger,
	)

	dexScreenerClient := quotes.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		cfg.DEXScreener.RequestTimeout(),
		cfg.Quotes.MaxTokensPerBatchRequest,
		zapLogger,
	)
	quoteRepo := quotes.NewRepository(
		dexScreenerClient,
		cfg.Quotes.CacheTTL(),
		cfg.Quotes.MaxTokensPerBatchRequest,
		cfg.Performance.MaxConcurrentRoutines,
		zapLogger,
	)

	var yieldClient staking.YieldClient
	if cfg.Staking.BaseURL != "" {
		yieldClient = staking.NewYieldClient(cfg.Staking.BaseURL, cfg.Staking.APIKey, cfg.Staking.RequestTimeout(), zapLogger)
	}
	stakingRepo := staking.NewRepository(yieldClient, wallets, cfg.Staking.CacheTTL(), cfg.Cache.CleanupInterval(), zapLogger)

	merge := operator.NewMergeOperator(zapLogger)
	statuses := operator.NewCurrenciesStatusOperator(networkStatuses, quoteRepo, stakingRepo, merge, cfg.Supplier.BufferSize, zapLogger)
	builder := operator.NewTokenListBuilder(registry, zapLogger)
	loader := service.NewCurrenciesLoader(wallets, zapLogger)

	tokenListService := service.NewTokenListService(loader, statuses, builder, networkStatuses, quoteRepo, stakingRepo, sortingStore, zapLogger)
	currencyStatusService := service.NewCurrencyStatusService(loader, statuses, zapLogger)
	zapLogger.Info("Status engine initialized")

	if cfg.Refresh.Schedule != "" {
		backgroundRefresh, err := refresher.New(cfg.Refresh.Schedule, tokenListService, wallets, cfg.Refresh.Timeout(), zapLogger)
		if err != nil {
			return err
		}
		backgroundRefresh.Start()
		defer func() { <-backgroundRefresh.Stop().Done() }()
	}

	handler := restapi.NewTokenHandler(tokenListService, currencyStatusService, wallets, cfg.Server.SettleTimeout(), zapLogger)
	router := restapi.SetupRouter(handler, restapi.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnablePprof:    cfg.Server.EnablePprof,
	}, zapLogger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		zapLogger.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
