// internal/db/db.go
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Handle struct {
	DB     *gorm.DB
	Driver string
}

// Open selects the dialector from the configured driver. sqlite is the
// default (pure-Go driver, also used by the test suites).
func Open(driver, dsn string) (*Handle, error) {
	var dial gorm.Dialector
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "pharmsync.db"
		}
		dial = sqlite.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	gdb, err := gorm.Open(dial, &gorm.Config{
		// Logger: logger.Default.LogMode(logger.Info), // verbose SQL if needed
	})
	if err != nil {
		return nil, err
	}
	return &Handle{DB: gdb, Driver: driver}, nil
}
