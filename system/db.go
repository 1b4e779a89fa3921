package system

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gaia/api/config"
	"gaia/api/log"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

var ErrDbNotInit = errors.New("database not initialised")

// InitDb opens the MySQL connection pool described by cfg and makes it the package
// instance returned by GetDb.
func InitDb(cfg config.DatabaseConfig) (*gorm.DB, error) {
	conn, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	dbMu.Lock()
	db = conn
	dbMu.Unlock()
	log.Info("mysql connected")
	return conn, nil
}

// GetDb returns the instance set by InitDb, or nil.
func GetDb() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

func QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	conn := GetDb()
	if conn == nil {
		return nil, ErrDbNotInit
	}
	return conn.WithContext(ctx).Raw(query, args...).Rows()
}

func CloseDb() error {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}
