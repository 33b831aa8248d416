package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/vallegrande/notification-engine/internal/repository"
	"gorm.io/gorm"
)

func createPreferencesAndTemplatesTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_preferences_and_templates",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.PreferenceModel{}, &repository.TemplateModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TemplateModel{}, &repository.PreferenceModel{})
		},
	}
}
