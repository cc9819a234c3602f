package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncRunLog records one finished (or stopped) historical import run.
// Append-only: one row per run, written when the run reaches Done.
type SyncRunLog struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string         `gorm:"column:run_id;size:36;index" json:"runId"`
	Provider      string         `gorm:"column:provider;not null;index" json:"provider"` // "amazon"
	Status        string         `gorm:"column:status;not null;index" json:"status"`     // "success", "partial", "stopped"
	StartedAt     time.Time      `gorm:"column:started_at;not null" json:"startedAt"`
	CompletedAt   *time.Time     `gorm:"column:completed_at" json:"completedAt"`
	Duration      int            `gorm:"column:duration;default:0" json:"duration"` // milliseconds
	TotalBatches  int            `gorm:"column:total_batches;default:0" json:"totalBatches"`
	OrdersCreated int            `gorm:"column:orders_created;default:0" json:"ordersCreated"`
	OrdersUpdated int            `gorm:"column:orders_updated;default:0" json:"ordersUpdated"`
	ItemsSynced   int            `gorm:"column:items_synced;default:0" json:"itemsSynced"`
	Skipped       int            `gorm:"column:skipped;default:0" json:"skipped"`
	Errors        int            `gorm:"column:errors;default:0" json:"errors"`
	RateLimitHits int            `gorm:"column:rate_limit_hits;default:0" json:"rateLimitHits"`
	BatchResults  datatypes.JSON `gorm:"column:batch_results;type:jsonb" json:"batchResults"`
	CreatedAt     time.Time      `gorm:"column:created_at" json:"-"`
	UpdatedAt     time.Time      `gorm:"column:updated_at" json:"-"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (SyncRunLog) TableName() string {
	return "sync_run_logs"
}
