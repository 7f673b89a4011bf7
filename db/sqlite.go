package db

import (
	"wall/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectSQLiteDB поднимает локальную SQLite базу. Используется в тестах,
// чтобы не требовать PostgreSQL.
func ConnectSQLiteDB(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&models.User{}, &models.Migration{}, &models.UserTokens{},
		&models.Post{}, &models.Comment{}, &models.Reaction{},
	)
	if err != nil {
		return err
	}

	ORM = db
	return nil
}
