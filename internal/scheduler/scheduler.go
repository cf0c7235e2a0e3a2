package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type beneficiaryActivator interface {
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
}

type autoPayRunner interface {
	RunDuePayments(ctx context.Context, now time.Time) (int, error)
}

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// Scheduler drives the two unattended sweeps: beneficiary activation and
// standing-instruction execution. The services take now as a parameter, so
// the scheduler is the only place wall-clock time enters the core.
type Scheduler struct {
	cron          *cron.Cron
	beneficiaries beneficiaryActivator
	autopay       autoPayRunner
	idempotency   idempotencyCleaner
	logger        *slog.Logger
}

func New(beneficiaries beneficiaryActivator, autopay autoPayRunner, idempotency idempotencyCleaner, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:          cron.New(cron.WithChain(cron.Recover(cronLogger))),
		beneficiaries: beneficiaries,
		autopay:       autopay,
		idempotency:   idempotency,
		logger:        logger,
	}
}

// Start registers both jobs and starts the cron loop in the background.
func (s *Scheduler) Start(sweepSchedule, autoPaySchedule string) error {
	if _, err := s.cron.AddFunc(sweepSchedule, s.runBeneficiarySweep); err != nil {
		return err
	}
	s.logger.Info("scheduled beneficiary activation sweep", "schedule", sweepSchedule)

	if _, err := s.cron.AddFunc(autoPaySchedule, s.runAutoPay); err != nil {
		return err
	}
	s.logger.Info("scheduled standing instruction run", "schedule", autoPaySchedule)

	if _, err := s.cron.AddFunc("@hourly", s.cleanIdempotencyCache); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling; the returned context is done once in-flight jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runBeneficiarySweep() {
	ctx := context.Background()
	if _, err := s.beneficiaries.ActivateDue(ctx, time.Now().UTC()); err != nil {
		s.logger.Error("beneficiary activation sweep failed", "error", err)
	}
}

func (s *Scheduler) cleanIdempotencyCache() {
	n, err := s.idempotency.CleanExpired(context.Background())
	if err != nil {
		s.logger.Error("idempotency cache cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired idempotency entries removed", "count", n)
	}
}

func (s *Scheduler) runAutoPay() {
	ctx := context.Background()
	executed, err := s.autopay.RunDuePayments(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("standing instruction run failed", "error", err)
		return
	}
	if executed > 0 {
		s.logger.Info("standing instruction run finished", "executed", executed)
	}
}
