package setup

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// EnsureAdmin 确保存在至少一个管理员账户。
// 没有任何 admin 角色用户时，按给定凭据创建引导管理员；
// 已存在则什么都不做。注册接口不发放 admin 角色，这是唯一的引导入口。
func EnsureAdmin(db *gorm.DB, username, email, password string) error {
	var existing domain.User
	err := db.Where("role = ?", domain.RoleAdmin).First(&existing).Error
	if err == nil {
		return nil // 已有管理员
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := domain.User{
		Username:  username,
		Password:  string(hash),
		Email:     email,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      domain.RoleAdmin,
		IsActive:  true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create initial admin: %w", err)
	}

	logrus.WithFields(logrus.Fields{"username": username, "email": email}).
		Info("Initial admin user created")
	return nil
}

// SeedDemoProjects 在项目表为空时写入演示项目，供本地开发使用。
// 由 SEED_DEMO_DATA 配置开关控制，生产环境保持关闭。
func SeedDemoProjects(db *gorm.DB) error {
	var admin domain.User
	if err := db.Where("role = ?", domain.RoleAdmin).First(&admin).Error; err != nil {
		return fmt.Errorf("no admin user found for project seeding: %w", err)
	}

	var count int64
	if err := db.Model(&domain.Project{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count projects: %w", err)
	}
	if count > 0 {
		logrus.Debug("Projects already exist, skipping demo seed")
		return nil
	}

	projects := []domain.Project{
		{
			Name:        "Bug Tracker Web App",
			Description: "Main bug tracking web application for XYZ Corp",
			Status:      domain.ProjectStatusActive,
			CreatedByID: admin.ID,
		},
		{
			Name:        "Mobile App",
			Description: "XYZ Corp mobile application for iOS and Android",
			Status:      domain.ProjectStatusActive,
			CreatedByID: admin.ID,
		},
		{
			Name:        "API Gateway",
			Description: "Microservices API gateway and authentication service",
			Status:      domain.ProjectStatusActive,
			CreatedByID: admin.ID,
		},
		{
			Name:        "Legacy System",
			Description: "Old legacy system being phased out",
			Status:      domain.ProjectStatusInactive,
			CreatedByID: admin.ID,
		},
	}
	if err := db.Create(&projects).Error; err != nil {
		return fmt.Errorf("failed to seed demo projects: %w", err)
	}

	logrus.WithField("count", len(projects)).Info("Demo projects seeded")
	return nil
}
