package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/vallegrande/notification-engine/internal/repository"
	"gorm.io/gorm"
)

func createNotificationAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationAttemptModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE notification_attempts
					ADD CONSTRAINT fk_attempts_notification
					FOREIGN KEY (notification_id) REFERENCES notifications (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_notification_created ON notification_attempts (notification_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_channel_created ON notification_attempts (channel, created_at)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationAttemptModel{})
		},
	}
}
