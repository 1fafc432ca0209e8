package database

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cleanupDuplicateInventory folds rows that share an identity key into the newest row
// before the unique index is added. Safe to run on every start.
func cleanupDuplicateInventory(db *gorm.DB, log logrus.FieldLogger) error {
	if !db.Migrator().HasTable("inventory_records") {
		return nil
	}
	if db.Migrator().HasIndex("inventory_records", "idx_inventory_identity") {
		return nil
	}

	identity := "owner_id, card_name, set_code, collector_number, is_foil, `condition`"
	if db.Dialector.Name() == "sqlite" {
		identity = `owner_id, card_name, set_code, collector_number, is_foil, "condition"`
	}

	// Carry the summed quantity onto the surviving row first
	result := db.Exec(`
		UPDATE inventory_records
		SET quantity = (
			SELECT SUM(d.quantity) FROM (SELECT * FROM inventory_records) d
			WHERE d.owner_id = inventory_records.owner_id
			AND d.card_name = inventory_records.card_name
			AND d.set_code = inventory_records.set_code
			AND d.collector_number = inventory_records.collector_number
			AND d.is_foil = inventory_records.is_foil
			AND d.` + quoteCondition(db) + ` = inventory_records.` + quoteCondition(db) + `
		)
		WHERE id IN (
			SELECT keep_id FROM (
				SELECT MAX(id) AS keep_id FROM inventory_records GROUP BY ` + identity + ` HAVING COUNT(*) > 1
			) k
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	result = db.Exec(`
		DELETE FROM inventory_records
		WHERE id NOT IN (
			SELECT keep_id FROM (
				SELECT MAX(id) AS keep_id FROM inventory_records GROUP BY ` + identity + `
			) k
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Infof("Cleaned up %d duplicate inventory records", result.RowsAffected)
	}
	return nil
}

func quoteCondition(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return `"condition"`
	}
	return "`condition`"
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB, log logrus.FieldLogger) error {
	if err := migrateDefaults(db, log); err != nil {
		return err
	}
	return migrateDerivedValues(db, log)
}

// migrateDefaults fills columns that older rows may have left empty
func migrateDefaults(db *gorm.DB, log logrus.FieldLogger) error {
	if db.Migrator().HasColumn("inventory_records", "language") {
		result := db.Exec(`UPDATE inventory_records SET language = 'English' WHERE language IS NULL OR language = '' OR language = 'en'`)
		if result.Error != nil {
			log.Warnf("failed to normalize language values: %v", result.Error)
		}
	}

	result := db.Exec(`UPDATE price_alerts SET alert_type = 'price_change' WHERE alert_type IS NULL OR alert_type = ''`)
	if result.Error != nil {
		log.Warnf("failed to normalize alert types: %v", result.Error)
	}
	return nil
}

// migrateDerivedValues recomputes total value and price change where they drifted
func migrateDerivedValues(db *gorm.DB, log logrus.FieldLogger) error {
	result := db.Exec(`
		UPDATE inventory_records
		SET total_value = current_price * quantity,
			price_change = current_price - purchase_price
		WHERE ABS(total_value - current_price * quantity) > 0.0001
		OR ABS(price_change - (current_price - purchase_price)) > 0.0001
	`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Infof("Recomputed derived values for %d inventory records", result.RowsAffected)
	}
	return nil
}
