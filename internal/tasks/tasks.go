package tasks

import (
	"encoding/json"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// 定义任务类型常量
const (
	TypeBugAssigned = "notification:bug_assigned" // 缺陷指派通知任务类型
	TypeBugStatus   = "notification:bug_status"   // 缺陷状态变更通知任务类型
)

// QueueNotifications 是通知任务使用的队列名。
const QueueNotifications = "notifications"

// BugAssignedPayload 定义了缺陷指派通知任务的数据结构
type BugAssignedPayload struct {
	BugID      uint `json:"bug_id"`
	AssigneeID uint `json:"assignee_id"`
	ActorID    uint `json:"actor_id"`
}

// BugStatusPayload 定义了缺陷状态变更通知任务的数据结构
type BugStatusPayload struct {
	BugID   uint             `json:"bug_id"`
	Status  domain.BugStatus `json:"status"`
	ActorID uint             `json:"actor_id"`
}

// NewBugAssignedPayload 序列化一个缺陷指派通知的 payload
func NewBugAssignedPayload(bugID, assigneeID, actorID uint) ([]byte, error) {
	return json.Marshal(BugAssignedPayload{
		BugID:      bugID,
		AssigneeID: assigneeID,
		ActorID:    actorID,
	})
}

// NewBugStatusPayload 序列化一个缺陷状态变更通知的 payload
func NewBugStatusPayload(bugID uint, status domain.BugStatus, actorID uint) ([]byte, error) {
	return json.Marshal(BugStatusPayload{
		BugID:   bugID,
		Status:  status,
		ActorID: actorID,
	})
}
