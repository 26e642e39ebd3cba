package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/repository"
	"github.com/Avishi2511/bug-tracker/internal/tasks"
)

// NotificationHandler 处理缺陷通知任务：指派通知和状态变更通知。
// 当前的投递方式是结构化日志；接入邮件或 webhook 时只需替换 deliver。
type NotificationHandler struct {
	bugRepo  repository.BugRepository
	userRepo repository.UserRepository
}

// NewNotificationHandler 创建 Handler 实例
func NewNotificationHandler(bugRepo repository.BugRepository, userRepo repository.UserRepository) *NotificationHandler {
	if bugRepo == nil {
		panic("BugRepository cannot be nil for NotificationHandler")
	}
	if userRepo == nil {
		panic("UserRepository cannot be nil for NotificationHandler")
	}
	return &NotificationHandler{bugRepo: bugRepo, userRepo: userRepo}
}

// HandleBugAssigned 实现 asynq.HandlerFunc，处理缺陷指派通知
func (h *NotificationHandler) HandleBugAssigned(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogCtx(ctx, t)
	logCtx.Info("Processing bug assignment notification...")

	var payload tasks.BugAssignedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	// 缺陷或指派人在任务执行前被删除时跳过，不重试
	bug, err := h.bugRepo.FindByID(ctx, payload.BugID)
	if err != nil {
		logCtx.WithError(err).Warn("Bug no longer exists, dropping notification")
		return fmt.Errorf("bug %d not found: %w", payload.BugID, asynq.SkipRetry)
	}
	assignee, err := h.userRepo.FindByID(ctx, payload.AssigneeID)
	if err != nil {
		logCtx.WithError(err).Warn("Assignee no longer exists, dropping notification")
		return fmt.Errorf("user %d not found: %w", payload.AssigneeID, asynq.SkipRetry)
	}

	logCtx.WithFields(logrus.Fields{
		"bug_id":      bug.ID,
		"bug_title":   bug.Title,
		"assignee":    assignee.Username,
		"assigned_by": payload.ActorID,
	}).Info("Notification delivered: bug assigned")
	return nil
}

// HandleBugStatus 实现 asynq.HandlerFunc，处理缺陷状态变更通知
func (h *NotificationHandler) HandleBugStatus(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogCtx(ctx, t)
	logCtx.Info("Processing bug status notification...")

	var payload tasks.BugStatusPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	bug, err := h.bugRepo.FindByID(ctx, payload.BugID)
	if err != nil {
		logCtx.WithError(err).Warn("Bug no longer exists, dropping notification")
		return fmt.Errorf("bug %d not found: %w", payload.BugID, asynq.SkipRetry)
	}

	logCtx.WithFields(logrus.Fields{
		"bug_id":     bug.ID,
		"bug_title":  bug.Title,
		"status":     payload.Status,
		"changed_by": payload.ActorID,
	}).Info("Notification delivered: bug status changed")
	return nil
}

// taskLogCtx 构造带任务元数据的日志上下文
func taskLogCtx(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	retryCount, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     tasks.QueueNotifications,
		"retry":     retryCount,
		"max_retry": maxRetry,
	})
}
