package database

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenGorm opens a SQL connection for driver ("mysql", "postgres" or
// "sqlite") and checks it with a ping. SQL statements are logged through the
// service logger; slow queries are reported at warn level.
func OpenGorm(ctx context.Context, driver, dsn string, timeout time.Duration) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	level := gormlogger.Warn
	if logger.LevelString() == "debug" {
		level = gormlogger.Info
	}
	gl := gormlogger.New(zap.NewStdLog(logger.L()), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s handle: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer at a time; concurrent transactions would fail with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%s ping: %w", driver, err)
	}
	return db, nil
}
