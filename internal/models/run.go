package models

import (
	"time"

	"gorm.io/gorm"
)

// ProvisionRun is the API's bookkeeping row for one started workflow.
type ProvisionRun struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	WorkflowID  string `json:"workflow_id" gorm:"index"`
	RunID       string `json:"run_id"`
	RequestedBy string `json:"requested_by"`
	Status      string `json:"status"`

	CutSize            int `json:"cut_size"`
	BatchSize          int `json:"batch_size"`
	WorkersPerOperator int `json:"workers_per_operator"`

	Operators    int `json:"operators"`
	TotalCreated int `json:"total_created"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// IntakeFile records an uploaded pool or operator-records resource.
type IntakeFile struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Kind       string    `json:"kind" gorm:"index"` // pool | operators
	URI        string    `json:"uri"`
	Lines      int       `json:"lines"`
	Skipped    int       `json:"skipped"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}
