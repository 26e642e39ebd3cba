package tasks

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// AsynqNotifier 将通知任务投递到 Asynq 队列，由后台 worker 消费。
// 实现 service.Notifier 接口。
type AsynqNotifier struct {
	client *asynq.Client
}

// NewAsynqNotifier 创建 AsynqNotifier 实例。
func NewAsynqNotifier(client *asynq.Client) *AsynqNotifier {
	if client == nil {
		panic("asynq client cannot be nil for AsynqNotifier")
	}
	return &AsynqNotifier{client: client}
}

// BugAssigned 投递一个缺陷指派通知任务。
func (n *AsynqNotifier) BugAssigned(ctx context.Context, bugID, assigneeID, actorID uint) error {
	payload, err := NewBugAssignedPayload(bugID, assigneeID, actorID)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeBugAssigned, payload)
	_, err = n.client.EnqueueContext(ctx, task, asynq.Queue(QueueNotifications))
	return err
}

// BugStatusChanged 投递一个缺陷状态变更通知任务。
func (n *AsynqNotifier) BugStatusChanged(ctx context.Context, bugID uint, status domain.BugStatus, actorID uint) error {
	payload, err := NewBugStatusPayload(bugID, status, actorID)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeBugStatus, payload)
	_, err = n.client.EnqueueContext(ctx, task, asynq.Queue(QueueNotifications))
	return err
}
