package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/locks"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/models"
)

// Scheduler polls for due retraining schedules on a cron tick and runs each
// through the orchestrator. A schedule failing does not block the others;
// NextExecution always advances so a broken pipeline cannot wedge the loop.
type Scheduler struct {
	orchestrator *Orchestrator
	store        Store
	tickSpec     string
	cron         *cron.Cron
	logger       *slog.Logger
}

func NewScheduler(o *Orchestrator, store Store, tickSpec string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if tickSpec == "" {
		tickSpec = "@every 5m"
	}
	return &Scheduler{
		orchestrator: o,
		store:        store,
		tickSpec:     tickSpec,
		logger:       logger,
	}
}

// Start begins ticking. The context bounds each tick's work, not the cron
// runner itself; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.tickSpec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("starting retraining scheduler: %w", err)
	}
	s.cron.Start()
	s.logger.Info("retraining scheduler started", "tick", s.tickSpec)
	return nil
}

// Stop halts ticking and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("retraining scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.store.ListDueSchedules(ctx, time.Now())
	if err != nil {
		s.logger.Error("listing due retraining schedules", "error", err)
		return
	}

	for _, schedule := range due {
		if err := s.runSchedule(ctx, schedule); err != nil {
			s.logger.Error("scheduled retraining failed",
				"schedule_id", schedule.ID,
				"task_type", schedule.TaskType,
				"error", err)
		}
	}
}

func (s *Scheduler) runSchedule(ctx context.Context, schedule models.RetrainingSchedule) error {
	req, err := runRequestFromConfig(schedule)
	if err != nil {
		return err
	}

	now := time.Now()
	next, err := nextExecution(now, schedule.Frequency)
	if err != nil {
		return err
	}
	// Advance before running so a crash mid-pipeline does not replay the
	// schedule on every subsequent tick.
	if err := s.store.UpdateScheduleAfterRun(ctx, schedule.ID, now, next); err != nil {
		return fmt.Errorf("advancing schedule: %w", err)
	}

	s.logger.Info("running scheduled retraining",
		"schedule_id", schedule.ID,
		"task_type", schedule.TaskType,
		"next_execution", next)

	exec, err := s.orchestrator.ExecuteCompletePipeline(ctx, req)
	if errors.Is(err, locks.ErrAlreadyHeld) {
		s.logger.Warn("scheduled retraining skipped, pipeline already running",
			"schedule_id", schedule.ID,
			"task_type", schedule.TaskType)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("scheduled retraining finished",
		"schedule_id", schedule.ID,
		"pipeline_id", exec.PipelineID,
		"status", exec.OverallStatus)
	return nil
}

func runRequestFromConfig(schedule models.RetrainingSchedule) (RunRequest, error) {
	raw, err := json.Marshal(schedule.PipelineConfig)
	if err != nil {
		return RunRequest{}, fmt.Errorf("decoding schedule config: %w", err)
	}
	var req RunRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return RunRequest{}, fmt.Errorf("decoding schedule config: %w", err)
	}
	if req.TaskType == "" {
		req.TaskType = schedule.TaskType
	}
	return req, nil
}
