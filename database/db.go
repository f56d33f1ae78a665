// Package database owns the gorm connection to the SQLite store.
package database

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path"

	"github.com/designdesk/designdesk/config"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/util/crypto"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func initModels() error {
	models := []any{
		&model.User{},
		&model.Category{},
		&model.DesignRequest{},
		&model.Setting{},
		&model.AuditLog{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

// initStaff creates the bootstrap staff account from the environment when the
// users table is empty. Nothing is created if the variables are unset.
func initStaff() error {
	login := os.Getenv("DESIGNDESK_ADMIN_LOGIN")
	password := os.Getenv("DESIGNDESK_ADMIN_PASSWORD")
	if login == "" || password == "" {
		return nil
	}
	empty, err := isTableEmpty("users")
	if err != nil {
		log.Printf("Error checking if users table is empty: %v", err)
		return err
	}
	if !empty {
		return nil
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return err
	}
	email := os.Getenv("DESIGNDESK_ADMIN_EMAIL")
	if email == "" {
		email = login + "@localhost"
	}
	user := &model.User{
		Login:        login,
		Email:        email,
		PasswordHash: hash,
		IsStaff:      true,
	}
	return db.Create(user).Error
}

func isTableEmpty(tableName string) (bool, error) {
	var count int64
	err := db.Table(tableName).Count(&count).Error
	return count == 0, err
}

// InitDB opens (creating if needed) the database at dbPath and migrates the schema.
func InitDB(dbPath string) error {
	dir := path.Dir(dbPath)
	err := os.MkdirAll(dir, fs.ModePerm)
	if err != nil {
		return err
	}

	var gormLogger logger.Interface

	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000"
	db, err = gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	_, err = sqlDB.Exec("PRAGMA temp_store = MEMORY;")
	if err != nil {
		return err
	}

	if err := initModels(); err != nil {
		return err
	}
	return initStaff()
}

func CloseDB() error {
	if db != nil {
		if err := Checkpoint(); err != nil {
			log.Printf("error executing checkpoint: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func Checkpoint() error {
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
