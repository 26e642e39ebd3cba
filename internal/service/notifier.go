package service

import (
	"context"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// Notifier 将缺陷事件投递到后台通知队列。
// 投递失败只记录日志，绝不导致触发它的请求失败。
type Notifier interface {
	// BugAssigned 在缺陷被指派给开发者后投递通知。
	BugAssigned(ctx context.Context, bugID, assigneeID, actorID uint) error

	// BugStatusChanged 在缺陷状态转换后投递通知。
	BugStatusChanged(ctx context.Context, bugID uint, status domain.BugStatus, actorID uint) error
}
