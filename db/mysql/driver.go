package mysql

import (
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dsnDefaults are the connection options the schema depends on: parseTime so
// DATETIME columns scan into time.Time, utf8mb4 for display names and badge
// text, and UTC so streak day arithmetic matches the ledger's clock.
var dsnDefaults = []string{"parseTime=true", "charset=utf8mb4", "loc=UTC"}

// Open creates a GORM *DB backed by MySQL with a connection pool.
func Open(dsn string, maxOpen, maxIdle int, maxLife time.Duration) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(withDefaults(dsn)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLife)

	return db, nil
}

// withDefaults appends each required option unless the DSN already sets the
// key; an explicit value in config wins.
func withDefaults(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, kv := range dsnDefaults {
		key := kv[:strings.IndexByte(kv, '=')+1]
		if !strings.Contains(dsn, key) {
			dsn += sep + kv
			sep = "&"
		}
	}
	return dsn
}
