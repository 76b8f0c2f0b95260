package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"rafflehub/config"
	"rafflehub/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql", "":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := Open(dialector, cfg.LogQueries)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Open applies the gorm settings every store relies on. TranslateError turns
// unique violations into gorm.ErrDuplicatedKey, which the idempotency checks
// depend on.
func Open(dialector gorm.Dialector, logQueries bool) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(log.New(os.Stdout, "\r\n", log.LstdFlags), logQueries),
		TranslateError: true,
	})
}

// newLogger reports errors and slow queries. Lookups that find nothing are
// an expected outcome for GetOrCreate and the natural-key checks, so they
// are not logged.
func newLogger(w logger.Writer, logQueries bool) logger.Interface {
	level := logger.Error
	if logQueries {
		level = logger.Info
	}
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Order{},
		&models.Commission{},
		&models.FinancialStatement{},
		&models.Raffle{},
		&models.Ticket{},
		&models.RaffleApplication{},
		&models.RaffleTicket{},
		&models.TicketAllowance{},
		&models.Withdrawal{},
	)
}
