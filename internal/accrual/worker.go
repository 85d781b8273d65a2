// Package accrual содержит фоновый процесс ежедневного начисления доходности.
package accrual

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Accruer начисляет ежедневную доходность по активным вкладам.
type Accruer interface {
	RunDailyAccrual(ctx context.Context, asOf time.Time) (int, error)
}

// Worker запускает начисление по cron-расписанию.
type Worker struct {
	accruer  Accruer
	logger   *zap.Logger
	cron     *cron.Cron
	schedule string
}

// NewWorker создаёт воркер с расписанием в стандартном cron-формате.
func NewWorker(accruer Accruer, logger *zap.Logger, schedule string) *Worker {
	return &Worker{
		accruer:  accruer,
		logger:   logger,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start регистрирует задание и запускает планировщик. Повторное начисление
// за один день безопасно, обработанные вклады пропускаются.
func (w *Worker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		w.runOnce(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("accrual worker started", zap.String("schedule", w.schedule))

	<-ctx.Done()
	return nil
}

// Stop останавливает планировщик и дожидается завершения текущего запуска.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("accrual worker stopped")
}

func (w *Worker) runOnce(ctx context.Context) {
	start := time.Now()
	applied, err := w.accruer.RunDailyAccrual(ctx, start.UTC())
	if err != nil {
		w.logger.Error("daily accrual failed", zap.Error(err))
		return
	}

	w.logger.Info("daily accrual finished",
		zap.Int("applied", applied),
		zap.Duration("duration", time.Since(start)),
	)
}
