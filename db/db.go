package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bikraj2/10101/logger"
)

// NewDB opens the trader/node sqlite database and migrates the schema.
func NewDB(uri string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(uri), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = gormDB.AutoMigrate(&Order{}, &Position{}, &Payment{}, &Channel{})
	if err != nil {
		return nil, err
	}

	logger.Logger.Debug().Str("uri", uri).Msg("Opened database")

	return gormDB, nil
}
