package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderly/pkg/logger"
)

// FailedJobRecord is a row in failed_jobs. The table is created by the
// application migrations.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"not null"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

// recentFailedLimit bounds the in-memory failure list; failed_jobs keeps the
// full history.
const recentFailedLimit = 100

func (m *Manager) persistFailed(ctx context.Context, env envelope, lastErr error) {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	at := m.now().UTC()

	m.mu.Lock()
	if len(m.failed) == recentFailedLimit {
		m.failed = append(m.failed[:0], m.failed[1:]...)
	}
	m.failed = append(m.failed, FailedJob{
		Name:     env.Type,
		Payload:  append(json.RawMessage(nil), env.Payload...),
		Err:      lastErr,
		Attempts: env.Attempts,
		FailedAt: at,
	})
	m.mu.Unlock()

	if m.failedDB == nil {
		return
	}

	record := FailedJobRecord{
		JobType:  env.Type,
		Payload:  string(env.Payload),
		Error:    msg,
		Attempts: env.Attempts,
		FailedAt: at,
	}
	if err := m.failedDB.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", env.Type, "error", err)
	}
}

// PruneFailed deletes persisted failed jobs recorded before cutoff.
func PruneFailed(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("failed_at < ?", cutoff.UTC()).Delete(&FailedJobRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("queue: prune failed jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
