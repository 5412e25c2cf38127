package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner запускает периодические задачи по cron-расписанию с секундами
type Runner struct {
	cron    *cron.Cron
	logger  *slog.Logger
	baseCtx context.Context
}

// NewRunner создает планировщик. Задачи получают baseCtx, отмена которого прерывает их работу.
func NewRunner(baseCtx context.Context, loc *time.Location, logger *slog.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	if loc == nil {
		loc = time.UTC
	}

	return &Runner{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add регистрирует задачу. Ошибка задачи логируется и не останавливает планировщик.
func (r *Runner) Add(spec, name string, job func(ctx context.Context) error) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		started := time.Now()

		if err := job(r.baseCtx); err != nil {
			r.logger.Error("Job failed",
				slog.String("job", name),
				slog.Duration("took", time.Since(started)),
				slog.Any("error", err))
			return
		}

		r.logger.Info("✅ Job done", slog.String("job", name), slog.Duration("took", time.Since(started)))
	})
}

// Start запускает планировщик в фоне
func (r *Runner) Start() {
	r.logger.Info("⏰ Cron started", slog.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop останавливает планировщик и ждет завершения запущенных задач
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("🛑 Cron stopped")
}
