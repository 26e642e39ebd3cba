// Package domain 定义了应用程序的核心数据结构 (数据库模型) 与业务规则。
package domain

import "time"

// Role 表示用户在系统中的角色。
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleTester    Role = "tester"
)

// ValidRole 判断给定的角色值是否合法。
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleTester:
		return true
	}
	return false
}

// User 表示应用程序中的用户。
// 用户从不物理删除，停用通过 IsActive 软标记实现。
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"type:varchar(191);uniqueIndex:idx_username;not null" json:"username"`
	Email     string     `gorm:"type:varchar(191);uniqueIndex:idx_email;not null" json:"email"`
	Password  string     `gorm:"type:text;not null" json:"-"` // 存储的是哈希后的密码，绝不序列化
	FirstName string     `gorm:"type:varchar(50);not null" json:"firstName"`
	LastName  string     `gorm:"type:varchar(50);not null" json:"lastName"`
	Role      Role       `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive  bool       `gorm:"not null;default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Sanitized 返回去除敏感字段后的副本，用于响应序列化。
func (u User) Sanitized() User {
	u.Password = ""
	return u
}
