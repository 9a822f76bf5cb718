package datastore

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// performAutoMigration migrates the game cache schema.
func performAutoMigration(db *gorm.DB, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	migrationLogger := logger.With("db_type", dbType, "connection", redactSensitiveInfo(connectionInfo))

	migrationLogger.Debug("Starting database migration")

	tableExists := db.Migrator().HasTable(&Game{})
	if err := db.AutoMigrate(&Game{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType, "table", "games")
	}

	action := "updated"
	if !tableExists {
		action = "created"
	}
	migrationLogger.Debug("Database migration completed",
		"table", "games",
		"action", action,
		"duration", time.Since(migrationStart))

	return nil
}

var keywordPasswordPattern = regexp.MustCompile(`(?i)(password\s*=\s*)(\S+)`)

// redactSensitiveInfo hides the password in URL and keyword/value DSNs.
func redactSensitiveInfo(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "[REDACTED DSN]"
		}
		if u.User != nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), "xxxxx")
			}
		}
		return u.String()
	}
	return keywordPasswordPattern.ReplaceAllString(dsn, "${1}xxxxx")
}
