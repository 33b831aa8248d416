package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/vallegrande/notification-engine/internal/repository"
	"gorm.io/gorm"
)

func createNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_notifications_status_channel_created ON notifications (status, channel, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_idempotency_key ON notifications (idempotency_key) WHERE idempotency_key IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_scheduled_due ON notifications (scheduled_at) WHERE status = 'PENDING' AND scheduled_at IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_correlation_id ON notifications (correlation_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
