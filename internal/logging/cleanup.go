package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"gorm.io/gorm"
)

const DefaultRetentionDays = 30

// CleanupJob returns a job that deletes system_logs older than retentionDays.
// It is scheduled on the cron runner next to the retention sweep.
func CleanupJob(db *gorm.DB, retentionDays int) func() {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
		if result.Error != nil {
			slog.Error("log cleanup failed", "action", "log_cleanup", "error", result.Error)
		} else if result.RowsAffected > 0 {
			slog.Info("log cleanup completed", "deleted", result.RowsAffected)
		}
	}
}
