package setup

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// MigrateDB 自动迁移数据库模式。
// 字符串列均已在模型上显式限制长度，避免 MySQL 对 TEXT/BLOB 索引的限制。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.User{},
		&domain.Project{},
		&domain.Bug{},
		&domain.ProgressNote{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}
