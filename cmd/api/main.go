package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	domain "github.com/blkd-app/wallet-api/internal/domain"
	"github.com/blkd-app/wallet-api/internal/handlers"
	"github.com/blkd-app/wallet-api/internal/ledger"
	"github.com/blkd-app/wallet-api/internal/platform/config"
	"github.com/blkd-app/wallet-api/internal/platform/idempotency"
	"github.com/blkd-app/wallet-api/internal/platform/observability"
	"github.com/blkd-app/wallet-api/internal/repositories/memory"
	"github.com/blkd-app/wallet-api/internal/services"
)

func main() {
	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("wallet-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	tiers, businesses := memory.SeedCatalog(cfg.Pricing.BaseRate)
	catalogRepo := memory.NewCatalogRepository(tiers, businesses)
	walletRepo := memory.NewWalletRepository(memory.SeedWallets())
	sessionRepo := memory.NewSessionRepository()

	simulated := ledger.NewSimulatedLedger(ledger.WithDelay(cfg.Ledger.SubmitDelay))

	// Top-up settlements credit the user's cash wallet once the ledger accepts
	// the submission.
	topUp := ledger.SubmitterFunc(func(ctx context.Context, sub ledger.Submission) (domain.Receipt, error) {
		receipt, err := simulated.Submit(ctx, sub)
		if err != nil {
			return receipt, err
		}
		if err := walletRepo.Credit(ctx, sub.UserID, domain.WalletKindCash, receipt.Amount); err != nil {
			logger.Warn("top-up credit failed",
				zap.String("sessionID", sub.SessionID),
				zap.Error(err))
		}
		return receipt, nil
	})

	ledgerManager, err := ledger.NewManager(simulated, ledger.WithFlowSubmitter(domain.FlowTopUp, topUp))
	if err != nil {
		logger.Fatal("failed to initialise ledger manager", zap.Error(err))
	}

	var disabledFlows []domain.FlowKind
	if !cfg.Features.EnableGiftCards {
		disabledFlows = append(disabledFlows, domain.FlowGiftCard)
	}
	if !cfg.Features.EnableDonations {
		disabledFlows = append(disabledFlows, domain.FlowDonation)
	}

	logFunc := observability.ServiceLogFunc(logger)

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Catalog:       catalogRepo,
		Wallets:       walletRepo,
		Sessions:      sessionRepo,
		Ledger:        ledgerManager,
		Logger:        logFunc,
		SubmitTimeout: cfg.Ledger.SubmitTimeout,
		BaseRate:      cfg.Pricing.BaseRate,
		DisabledFlows: disabledFlows,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog:  catalogRepo,
		Wallets:  walletRepo,
		Logger:   logFunc,
		BaseRate: cfg.Pricing.BaseRate,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	idempotencyStore := idempotency.NewMemoryStore()
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(cfg.Idempotency.CleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-cleanupTicker.C:
				removed, err := idempotencyStore.CleanupExpired(cleanupCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
				if err != nil {
					logger.Warn("idempotency cleanup failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("idempotency records expired", zap.Int("removed", removed))
				}
			}
		}
	}()

	health := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("catalog", func(ctx context.Context) error {
			_, err := catalogRepo.ListTiers(ctx)
			return err
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.IdentityMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			handlers.RateLimitMiddleware(cfg.RateLimits.DefaultPerMinute),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithWalletRoutes(handlers.NewWalletHandlers(catalogService).Routes),
		handlers.WithPricingRoutes(handlers.NewPricingHandlers(catalogService).Routes),
		handlers.WithBusinessRoutes(handlers.NewBusinessHandlers(catalogService).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(checkoutService).Routes),
		handlers.WithCheckoutMiddlewares(
			handlers.RateLimitMiddleware(cfg.RateLimits.CheckoutPerMinute),
			idempotency.Middleware(idempotencyStore,
				idempotency.WithHeader(cfg.Idempotency.Header),
				idempotency.WithTTL(cfg.Idempotency.TTL),
				idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("wallet api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("WALLET_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}
