// Package main запускает HTTP-сервер инвестиционной платформы.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/accrual"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/config"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/exchange"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/handler"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/notify"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/repository"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var dispatcher *notify.Dispatcher
	if cfg.EventWebhookURL != "" {
		dispatcher = notify.NewDispatcher(cfg.EventWebhookURL, logger)
	}

	svc := service.NewService(repo, dispatcher, service.Settings{
		Rates: exchange.Rates{
			ArToUsdt:           cfg.RateArToUsdt,
			UsdtToAr:           cfg.RateUsdtToAr,
			PointsToArInvestor: cfg.RatePointsToArInvestor,
			PointsToArStandard: cfg.RatePointsToArStandard,
		},
		WithdrawalFeeRate: cfg.WithdrawalFeeRate,
		MinDepositAr:      cfg.MinDepositAr,
		MinDepositUsdt:    cfg.MinDepositUsdt,
		MinWithdrawalAr:   cfg.MinWithdrawalAr,
		MinWithdrawalUsdt: cfg.MinWithdrawalUsdt,
		SignupBonusAr:     cfg.SignupBonusAr,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	worker := accrual.NewWorker(svc, logger, cfg.AccrualSchedule)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового начисления доходности
	g.Go(func() error {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("accrual worker error: %w", err)
		}
		worker.Stop()
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting cusinart server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
