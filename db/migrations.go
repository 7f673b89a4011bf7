package db

import (
	"gorm.io/gorm"
)

// CreateWallEnums создает типы ENUM wall_role и wall_status, если их нет.
// На SQLite (тесты) enum-типов нет, там выражение просто не выполняется.
func CreateWallEnums(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	createRoleSQL := `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'wall_role') THEN
			CREATE TYPE wall_role AS ENUM ('student', 'teacher', 'assistant', 'admin');
		END IF;
	END
	$$;
	`
	if err := db.Exec(createRoleSQL).Error; err != nil {
		return err
	}

	createStatusSQL := `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'wall_status') THEN
			CREATE TYPE wall_status AS ENUM ('pending', 'approved', 'rejected');
		END IF;
	END
	$$;
	`
	return db.Exec(createStatusSQL).Error
}
