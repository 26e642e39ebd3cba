package domain

import (
	"strings"
	"time"
)

// BugPriority 表示缺陷的优先级。
type BugPriority string

const (
	PriorityLow      BugPriority = "low"
	PriorityMedium   BugPriority = "medium"
	PriorityHigh     BugPriority = "high"
	PriorityCritical BugPriority = "critical"
)

// ValidBugPriority 判断给定的优先级值是否合法。
func ValidBugPriority(p BugPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// BugStatus 表示缺陷的生命周期状态。
// 状态机允许任意状态之间的转换，但每次转换都受访问控制策略约束。
type BugStatus string

const (
	StatusOpen       BugStatus = "open"
	StatusInProgress BugStatus = "in-progress"
	StatusClosed     BugStatus = "closed"
)

// ValidBugStatus 判断给定的状态值是否合法。
func ValidBugStatus(s BugStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// ReporterType 标识报告者的两种变体。
type ReporterType string

const (
	ReporterInternal ReporterType = "internal" // 已认证的内部用户
	ReporterPublic   ReporterType = "public"   // 匿名公共提交者
)

// Reporter 是缺陷报告者的标签联合 (tagged union)：
// internal 变体必须携带用户 ID，public 变体携带可选的姓名和邮箱。
// 变体在创建时确定且不可变更；只能通过下面的构造函数创建，
// 使非法状态不可表示。
type Reporter struct {
	Type   ReporterType `gorm:"type:varchar(10);not null" json:"type"`
	UserID *uint        `gorm:"index" json:"user,omitempty"`
	Name   string       `gorm:"type:varchar(100)" json:"name,omitempty"`
	Email  string       `gorm:"type:varchar(191)" json:"email,omitempty"`

	// User 是报告者用户的展开视图，仅在详情响应中由服务层填充。
	User *User `gorm:"-" json:"userInfo,omitempty"`
}

// NewInternalReporter 创建内部报告者变体。
func NewInternalReporter(userID uint) Reporter {
	return Reporter{Type: ReporterInternal, UserID: &userID}
}

// NewPublicReporter 创建公共报告者变体。姓名和邮箱均为可选，
// 输入会被去除首尾空白。
func NewPublicReporter(name, email string) Reporter {
	return Reporter{
		Type:  ReporterPublic,
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
	}
}

// IsInternal 判断报告者是否为内部用户变体。
func (r Reporter) IsInternal() bool { return r.Type == ReporterInternal }

// IsUser 判断报告者是否为指定的内部用户。
func (r Reporter) IsUser(userID uint) bool {
	return r.Type == ReporterInternal && r.UserID != nil && *r.UserID == userID
}

// ProgressNote 是附加在缺陷上的一条不可变进度备注。
// 备注只增不改不删。
type ProgressNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BugID     uint      `gorm:"index;not null" json:"-"`
	Note      string    `gorm:"type:varchar(500);not null" json:"note"`
	AddedByID uint      `gorm:"not null" json:"addedBy"`
	AddedBy   *User     `gorm:"foreignKey:AddedByID" json:"addedByInfo,omitempty"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"addedAt"`
}

// Bug 表示一条缺陷记录。
type Bug struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"type:varchar(200);not null" json:"title"`
	Description string      `gorm:"type:varchar(2000);not null" json:"description"`
	Priority    BugPriority `gorm:"type:varchar(10);not null;default:'medium';index" json:"priority"`
	Status      BugStatus   `gorm:"type:varchar(15);not null;default:'open';index" json:"status"`

	ProjectID uint     `gorm:"index;not null" json:"-"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`

	Reporter Reporter `gorm:"embedded;embeddedPrefix:reporter_" json:"reporter"`

	AssignedToID *uint `gorm:"index" json:"-"`
	AssignedTo   *User `gorm:"foreignKey:AssignedToID" json:"assignedTo,omitempty"`

	StepsToReproduce string `gorm:"type:varchar(1000)" json:"stepsToReproduce,omitempty"`
	ExpectedBehavior string `gorm:"type:varchar(1000)" json:"expectedBehavior,omitempty"`
	ActualBehavior   string `gorm:"type:varchar(1000)" json:"actualBehavior,omitempty"`

	ProgressNotes []ProgressNote `gorm:"foreignKey:BugID" json:"progressNotes"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// IsAssignedTo 判断缺陷当前是否指派给指定用户。
func (b *Bug) IsAssignedTo(userID uint) bool {
	return b.AssignedToID != nil && *b.AssignedToID == userID
}
