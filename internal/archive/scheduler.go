package archive

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler dispara o arquivamento do ledger periodicamente via cron expression.
type Scheduler struct {
	cron      *cron.Cron
	logger    *slog.Logger
	archiveFn func(ctx context.Context) error
	mu        sync.Mutex // garante apenas um arquivamento por vez
	running   bool
}

// NewScheduler cria um Scheduler com a expressão cron fornecida.
func NewScheduler(schedule string, logger *slog.Logger, fn func(ctx context.Context) error) (*Scheduler, error) {
	s := &Scheduler{
		logger:    logger,
		archiveFn: fn,
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, s.execute); err != nil {
		return nil, err
	}

	s.cron = c
	return s, nil
}

// Start inicia o scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("archive scheduler started")
	s.cron.Start()
}

// Stop para o scheduler e aguarda jobs em andamento.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("archive scheduler stopping")
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		s.logger.Info("archive scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("archive scheduler stop timed out")
	}
}

func (s *Scheduler) execute() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("archive already running, skipping scheduled execution")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduled archive triggered")
	if err := s.archiveFn(context.Background()); err != nil {
		s.logger.Error("archive failed", "error", err)
	}
}
