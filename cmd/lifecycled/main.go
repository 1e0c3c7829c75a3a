package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/analytics"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/compute"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/config"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/decisiontrail"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/deployment"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/feedback"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/learning"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/locks"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/objectstore"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/orchestrator"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/store"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/trainingdata"
	"github.com/Shamsejaz/PrivacyGuard-sub006/internal/trainingpipeline"
)

const (
	driftSweepInterval   = time.Hour
	learningPassInterval = 6 * time.Hour
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	locker, err := locks.NewRedisLocker(locks.Config{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer locker.Close()

	objects, err := objectstore.NewS3Store(ctx, objectstore.Config{
		Region: cfg.AWS.Region,
		Bucket: cfg.AWS.ArtifactBucket,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	sagemaker, err := compute.New(ctx, cfg.AWS.Region)
	if err != nil {
		log.Fatalf("Failed to create SageMaker client: %v", err)
	}
	metrics, err := compute.NewMetricsClient(ctx, cfg.AWS.Region)
	if err != nil {
		log.Fatalf("Failed to create CloudWatch client: %v", err)
	}

	collector := trainingdata.NewCollector(db, objects, cfg.Pipeline.DatasetSplitSeed, logger)

	pipeline := trainingpipeline.New(collector, sagemaker, db, trainingpipeline.Options{
		RoleARN:        cfg.AWS.ExecutionRoleARN,
		ArtifactBucket: cfg.AWS.ArtifactBucket,
		InstanceType:   cfg.Pipeline.InstanceType,
		InstanceCount:  cfg.Pipeline.InstanceCount,
		VolumeSizeGB:   cfg.Pipeline.VolumeSizeGB,
		PollInterval:   cfg.Pipeline.PollInterval,
		MaxRuntime:     cfg.Pipeline.MaxRuntime,
	}, logger)

	deployer := deployment.NewManager(sagemaker, metrics, db, deployment.Options{
		RoleARN:       cfg.AWS.ExecutionRoleARN,
		InstanceType:  cfg.Pipeline.ServingInstance,
		InstanceCount: cfg.Pipeline.ServingMinReplicas,
		CaptureS3URI:  "s3://" + cfg.AWS.ArtifactBucket + "/data-capture",
		WaitTimeout:   cfg.Pipeline.EndpointWait,
	}, logger)

	orch := orchestrator.New(pipeline, deployer, db, metrics, locker, orchestrator.Options{
		DriftThreshold: cfg.Monitoring.DriftThreshold,
		RecentWindow:   cfg.Monitoring.RecentWindow,
		BaselineWindow: cfg.Monitoring.BaselineWindow,
	}, logger)

	tracker := decisiontrail.NewTracker(db, objects, logger)
	feedbackSvc := feedback.NewService(db, objects, logger)
	analyzer := analytics.NewAnalyzer(db, metrics, objects, analytics.Options{}, logger)
	learner := learning.NewSystem(tracker, feedbackSvc, collector, analyzer, logger)

	scheduler := orchestrator.NewScheduler(orch, db, cfg.Scheduler.TickSpec, logger)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runDriftSweeps(ctx, orch, db, logger)
	}()
	go func() {
		defer wg.Done()
		runLearningPasses(ctx, learner, logger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()
	scheduler.Stop()
	wg.Wait()
}

// runDriftSweeps checks every active endpoint for accuracy drift on a fixed
// interval. A degraded endpoint is logged; retraining itself stays on the
// schedule so sweeps never queue surprise training jobs.
func runDriftSweeps(ctx context.Context, orch *orchestrator.Orchestrator, db *store.Store, logger *slog.Logger) {
	ticker := time.NewTicker(driftSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		endpoints, err := db.ListActiveEndpoints(ctx)
		if err != nil {
			logger.Error("listing endpoints for drift sweep", "error", err)
			continue
		}
		for _, endpoint := range endpoints {
			status, err := orch.MonitorModelPerformance(ctx, endpoint)
			if err != nil {
				logger.Error("drift check failed", "endpoint", endpoint, "error", err)
				continue
			}
			logger.Info("drift check",
				"endpoint", endpoint,
				"trend", status.PerformanceTrend,
				"accuracy_drift", status.AccuracyDrift,
				"retraining_recommended", status.RetrainingRecommended)
		}
	}
}

// runLearningPasses folds accumulated feedback into fresh training data.
func runLearningPasses(ctx context.Context, learner *learning.System, logger *slog.Logger) {
	ticker := time.NewTicker(learningPassInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		result, err := learner.ProcessFeedbackForLearning(ctx)
		if err != nil {
			logger.Error("learning pass failed", "error", err)
			continue
		}
		if result.ProcessedFeedbackCount > 0 {
			logger.Info("learning pass complete",
				"processed", result.ProcessedFeedbackCount,
				"datasets", len(result.DatasetKeys))
		}
	}
}
