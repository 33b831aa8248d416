package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var seededTemplates = []string{
	`INSERT INTO notification_templates (id, code, name, type, channel, subject, body, variables, status, created_at, updated_at)
VALUES ('7b0c6a2e-3f1d-4c53-9a3e-5d2f0c1b8a01', 'USER_CREDENTIALS', 'Credenciales de acceso', 'USER_CREDENTIALS', 'EMAIL',
'Bienvenido a {systemName} - Credenciales de Acceso',
'Bienvenido al {systemName}

Tus credenciales de acceso son:
Usuario: {username}
Contraseña temporal: {temporaryPassword}

IMPORTANTE: Por seguridad, cambia tu contraseña en el primer inicio de sesión.',
'["username","temporaryPassword","systemName"]', 'ACTIVE', NOW(), NOW())
ON CONFLICT (code) DO NOTHING`,
	`INSERT INTO notification_templates (id, code, name, type, channel, subject, body, variables, status, created_at, updated_at)
VALUES ('7b0c6a2e-3f1d-4c53-9a3e-5d2f0c1b8a02', 'RECEIPT_GENERATED', 'Recibo de pago', 'RECEIPT_GENERATED', 'EMAIL',
'Recibo de Pago Generado - {receiptNumber}',
'¡Pago recibido exitosamente!

Recibo N°: {receiptNumber}
Monto: {currency} {amount}
Fecha de pago: {paymentDate}

Gracias por tu pago. Puedes descargar el recibo completo desde el sistema.',
'["receiptNumber","amount","paymentDate","currency"]', 'ACTIVE', NOW(), NOW())
ON CONFLICT (code) DO NOTHING`,
}

func seedTemplates() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_seed_templates",
		Migrate: func(tx *gorm.DB) error {
			for _, sql := range seededTemplates {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DELETE FROM notification_templates WHERE code IN ('USER_CREDENTIALS', 'RECEIPT_GENERATED')`).Error
		},
	}
}
