package main

import (
	"log"
	"os"
	"strings"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/activities"
	gpmetrics "github.com/yourorg/guest-provisioner/internal/metrics"
	"github.com/yourorg/guest-provisioner/internal/workflow"
)

func main() {
	// Support both TEMPORAL_TARGET_HOST and TEMPORAL_ADDRESS for compatibility
	taddr := getenv("TEMPORAL_TARGET_HOST", getenv("TEMPORAL_ADDRESS", "localhost:7233"))
	ns := getenv("TEMPORAL_NAMESPACE", "default")
	q := getenv("TEMPORAL_TASK_QUEUE", "guest-provisioner")
	tmpDir := getenv("GP_TMP_DIR", "/var/guest-provisioner")
	// Ensure scratch dir exists and is writable
	_ = os.MkdirAll(tmpDir, 0o777)

	// Structured logger (zap)
	zl := newZap(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// Metrics server
	gpmetrics.Init()
	go func() {
		addr := gpmetrics.AddrFromEnv()
		_ = gpmetrics.Serve(addr)
	}()

	c, err := client.Dial(client.Options{HostPort: taddr, Namespace: ns})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	w := worker.New(c, q, worker.Options{})
	acts := activities.New(activities.Config{ScratchDir: tmpDir}, zl)
	// Register activities with explicit names matching workflow.ExecuteActivity calls
	w.RegisterActivityWithOptions(acts.LoadOperators, tactivity.RegisterOptions{Name: "Activities.LoadOperators"})
	w.RegisterActivityWithOptions(acts.DedupePool, tactivity.RegisterOptions{Name: "Activities.DedupePool"})
	w.RegisterActivityWithOptions(acts.PartitionPool, tactivity.RegisterOptions{Name: "Activities.PartitionPool"})
	w.RegisterActivityWithOptions(acts.RunOperator, tactivity.RegisterOptions{Name: "Activities.RunOperator"})
	w.RegisterActivityWithOptions(acts.RunSideEffect, tactivity.RegisterOptions{Name: "Activities.RunSideEffect"})
	w.RegisterActivityWithOptions(acts.WriteSummary, tactivity.RegisterOptions{Name: "Activities.WriteSummary"})
	w.RegisterActivityWithOptions(acts.CleanupScratch, tactivity.RegisterOptions{Name: "Activities.CleanupScratch"})
	w.RegisterWorkflow(workflow.ProvisionWorkflow)

	zl.Info("worker started", zap.String("namespace", ns), zap.String("taskQueue", q), zap.String("tmp", tmpDir), zap.String("metrics", getenv("METRICS_ADDR", ":9090")))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
