package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"

	"github.com/yourorg/guest-provisioner/internal/api"
	"github.com/yourorg/guest-provisioner/internal/db"
	"github.com/yourorg/guest-provisioner/internal/storage"
	"github.com/yourorg/guest-provisioner/internal/types"
)

func main() {
	// Initialize database
	dbConfig := db.FromEnv()

	database, err := db.NewDatabase(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Object store for intake uploads (file:// or s3:// destinations)
	store, err := storage.NewS3(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	// Initialize Gin
	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20 // 8MB

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Run journal for the standalone runner path
	jPool, err := db.Connect(context.Background(), dbConfig)
	if err != nil {
		log.Printf("Warning: run journal unavailable: %v", err)
	} else {
		defer jPool.Close()
		if err := db.Migrate(context.Background(), jPool); err != nil {
			log.Fatalf("Failed to migrate run journal: %v", err)
		}
	}

	// Initialize Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort:  getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
	})
	if err != nil {
		log.Printf("Warning: Failed to connect to Temporal: %v", err)
		// Continue without Temporal for now
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	defaults := runDefaultsFromEnv()

	// API routes
	apiV1 := r.Group("/api/v1")
	{
		handler := api.NewHandler(database.DB, defaults.SuccessLedgerPath, defaults.FailureLedgerPath)
		uploadHandler := api.NewUploadHandler(database.DB, store, defaults.PoolURI, defaults.RecordsURI)

		// Run bookkeeping routes
		apiV1.GET("/runs", handler.GetRuns)
		apiV1.GET("/runs/:id", handler.GetRun)

		// Intake routes
		apiV1.GET("/intakes", handler.GetIntakes)
		apiV1.POST("/upload", uploadHandler.UploadFile)

		// Ledger routes
		apiV1.GET("/ledgers", handler.GetLedgers)

		// Journal route (only if the pgx pool is available)
		if jPool != nil {
			enqueueHandler := api.NewEnqueueHandler(db.NewRunRepo(jPool), defaults)
			apiV1.POST("/runs", enqueueHandler.EnqueueRun)
		}

		// Workflow routes (only if Temporal is available)
		if temporalClient != nil {
			workflowHandler := api.NewWorkflowHandler(
				database.DB,
				temporalClient,
				getEnv("TEMPORAL_TASK_QUEUE", "guest-provisioner"),
				defaults,
			)
			apiV1.POST("/workflows/provision", workflowHandler.StartProvisionWorkflow)
			apiV1.GET("/workflows/:id/status", workflowHandler.GetWorkflowStatus)
		}
	}

	// Start server
	port := getEnv("PORT", "8080")
	log.Printf("Server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// runDefaultsFromEnv builds the server-side portion of the run parameters:
// where the intake files live, where the ledgers and summary go, and the
// knob defaults a start request may override.
func runDefaultsFromEnv() types.RunParams {
	p := types.RunParams{
		PoolURI:            getEnv("GP_POOL_URI", "file:///var/guest-provisioner/pool.txt"),
		RecordsURI:         getEnv("GP_RECORDS_URI", "file:///var/guest-provisioner/operators.txt"),
		StorageURI:         getEnv("GP_STORAGE_URI", "file:///var/guest-provisioner/chunks"),
		SuccessLedgerPath:  getEnv("GP_SUCCESS_LEDGER", "/var/guest-provisioner/success.txt"),
		FailureLedgerPath:  getEnv("GP_FAILURE_LEDGER", "/var/guest-provisioner/failed.txt"),
		SummaryURI:         os.Getenv("GP_SUMMARY_URI"),
		BatchSize:          getEnvInt("GP_BATCH_SIZE", 3),
		WorkersPerOperator: getEnvInt("GP_WORKERS_PER_OPERATOR", 4),
		ScratchSubdir:      getEnv("GP_SCRATCH_SUBDIR", "runs"),
		SideEffectLogPath:  os.Getenv("GP_SIDE_EFFECT_LOG"),
	}
	if cmd := os.Getenv("GP_SIDE_EFFECT_CMD"); cmd != "" {
		p.SideEffectCommand = strings.Fields(cmd)
	}
	return p
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
