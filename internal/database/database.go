package database

import (
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tdhoang/Talaria/internal/model"
)

// Open opens an embedded sqlite database at path. Both the candidate-local
// store and the admin store use the same driver; they differ only in schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// MigrateCandidate migrates the candidate-device schema.
func MigrateCandidate(db *gorm.DB) error {
	log.Info().Msg("Running candidate store migrations")
	return db.AutoMigrate(
		&model.LocalSession{},
		&model.LocalAnswer{},
		&model.LocalRecording{},
		&model.SyncQueueItem{},
		&model.Setting{},
	)
}

// MigrateAdmin migrates the admin server schema.
func MigrateAdmin(db *gorm.DB) error {
	log.Info().Msg("Running admin store migrations")
	return db.AutoMigrate(
		&model.Event{},
		&model.TestResult{},
		&model.SyncLog{},
		&model.RecordingFile{},
	)
}
