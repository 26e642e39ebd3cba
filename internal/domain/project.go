package domain

import "time"

// ProjectStatus 表示项目的生命周期状态。
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusInactive ProjectStatus = "inactive"
	ProjectStatusArchived ProjectStatus = "archived"
)

// ValidProjectStatus 判断给定的项目状态值是否合法。
func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusInactive, ProjectStatusArchived:
		return true
	}
	return false
}

// Project 表示一个可以提交缺陷的项目。
// 只有状态为 active 的项目对公共提交者可见。
type Project struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"type:varchar(100);uniqueIndex:idx_project_name;not null" json:"name"`
	Description string        `gorm:"type:varchar(500);not null" json:"description"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedByID uint          `gorm:"index;not null" json:"-"`
	CreatedBy   *User         `gorm:"foreignKey:CreatedByID" json:"createdBy,omitempty"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}
