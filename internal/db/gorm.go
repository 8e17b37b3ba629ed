package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourorg/guest-provisioner/internal/models"
)

// Database is the gorm handle used by the API for run bookkeeping. The
// runner binary uses the pgx pool instead; both share Config.
type Database struct {
	DB *gorm.DB
}

func NewDatabase(cfg Config) (*Database, error) {
	gl := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	gdb, err := gorm.Open(postgres.Open(cfg.ConnString()), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := gdb.AutoMigrate(&models.ProvisionRun{}, &models.IntakeFile{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return &Database{DB: gdb}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("error getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}
