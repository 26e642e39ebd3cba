package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/policy"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// BugService 负责缺陷生命周期的业务逻辑：
// 角色范围的查询、创建、描述性更新、指派和状态转换。
// 并发更新采用后写覆盖 (last-write-wins)，不做乐观锁版本检查；
// 唯一的原子性承诺是状态写入与配对的进度备注在同一事务中提交。
type BugService struct {
	bugRepo     repository.BugRepository
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

// NewBugService 创建 BugService 实例。notifier 可为 nil（测试或禁用通知时）。
func NewBugService(bugRepo repository.BugRepository, projectRepo repository.ProjectRepository, userRepo repository.UserRepository, notifier Notifier) *BugService {
	if bugRepo == nil {
		panic("BugRepository cannot be nil for BugService")
	}
	if projectRepo == nil {
		panic("ProjectRepository cannot be nil for BugService")
	}
	if userRepo == nil {
		panic("UserRepository cannot be nil for BugService")
	}
	return &BugService{
		bugRepo:     bugRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		notifier:    notifier,
	}
}

// Pagination 描述分页结果的元数据。
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// ListBugsInput 是缺陷列表查询的输入。过滤值为原始字符串，由服务层校验。
type ListBugsInput struct {
	Status     string
	Priority   string
	ProjectID  *uint
	AssignedTo *uint // 仅管理员生效，其他角色静默忽略
	Page       int
	Limit      int
}

// List 返回角色范围内的缺陷分页列表。
// 角色范围先于可选过滤应用：管理员可见全部，开发者仅指派给自己的，
// 测试者仅自己报告的。
func (s *BugService) List(ctx context.Context, p policy.Principal, input ListBugsInput) ([]domain.Bug, Pagination, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": p.UserID, "role": p.Role})

	// 1. 校验过滤值
	verr := &domain.ValidationError{}
	filter := repository.BugFilter{ProjectID: input.ProjectID}
	if input.Status != "" {
		status := domain.BugStatus(input.Status)
		if !domain.ValidBugStatus(status) {
			verr.Add("status", "status must be open, in-progress, or closed")
		}
		filter.Status = &status
	}
	if input.Priority != "" {
		priority := domain.BugPriority(input.Priority)
		if !domain.ValidBugPriority(priority) {
			verr.Add("priority", "priority must be low, medium, high, or critical")
		}
		filter.Priority = &priority
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, Pagination{}, err
	}

	// 2. 角色范围先于可选过滤
	switch p.Role {
	case policy.RoleAdmin:
		// 管理员不受范围限制，且独享 assignedTo 过滤
		filter.AssignedTo = input.AssignedTo
	case policy.RoleDeveloper:
		userID := p.UserID
		filter.AssignedTo = &userID
	case policy.RoleTester:
		userID := p.UserID
		filter.ReportedBy = &userID
	default:
		return nil, Pagination{}, ErrAccessDenied
	}

	// 3. 分页参数规范化
	filter.Page = input.Page
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.Limit = input.Limit
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	} else if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	// 4. 查询
	bugs, total, err := s.bugRepo.List(ctx, filter)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list bugs")
		return nil, Pagination{}, ErrInternalServer
	}
	for i := range bugs {
		sanitizeBugRefs(&bugs[i])
	}
	return bugs, newPagination(filter.Page, filter.Limit, total), nil
}

// CreateBugInput 是内部缺陷创建的输入。
type CreateBugInput struct {
	Title            string
	Description      string
	Priority         string
	ProjectID        uint
	StepsToReproduce string
	ExpectedBehavior string
	ActualBehavior   string
}

// Create 由已认证用户创建缺陷，报告者即调用者（internal 变体）。
// 状态强制初始化为 open，优先级缺省为 medium。
func (s *BugService) Create(ctx context.Context, p policy.Principal, input CreateBugInput) (*domain.Bug, error) {
	if policy.Can(p, policy.ResourceBug, policy.OpCreate) == policy.Deny || p.Role == policy.RolePublic {
		return nil, ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": p.UserID, "project_id": input.ProjectID})

	// 1. 验证全部字段
	priority, err := validateBugFields(input.Title, input.Description, input.Priority, input.ProjectID,
		input.StepsToReproduce, input.ExpectedBehavior, input.ActualBehavior, nil)
	if err != nil {
		logCtx.WithError(err).Warn("Bug creation failed: validation")
		return nil, err
	}

	// 2. 项目必须存在
	if _, err := s.projectRepo.FindByID(ctx, input.ProjectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		logCtx.WithError(err).Error("Failed to verify project for bug creation")
		return nil, ErrInternalServer
	}

	// 3. 构造并保存。状态由生命周期引擎固定为 open
	bug := &domain.Bug{
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		Priority:         priority,
		Status:           domain.StatusOpen,
		ProjectID:        input.ProjectID,
		Reporter:         domain.NewInternalReporter(p.UserID),
		StepsToReproduce: input.StepsToReproduce,
		ExpectedBehavior: input.ExpectedBehavior,
		ActualBehavior:   input.ActualBehavior,
	}
	if err := s.bugRepo.Save(ctx, bug); err != nil {
		logCtx.WithError(err).Error("Database error during bug creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("bug_id", bug.ID).Info("Bug created")
	return s.reload(ctx, bug.ID)
}

// PublicBugInput 是公共提交通道的输入。
// ReporterName 和 ReporterEmail 均为可选；提供时会被去除空白并校验。
type PublicBugInput struct {
	Title         string
	Description   string
	Priority      string
	ProjectID     uint
	ReporterName  string
	ReporterEmail string
}

// PublicBugReceipt 是公共提交的最小投影响应：
// 不暴露指派人、进度备注等内部字段。
type PublicBugReceipt struct {
	ID       uint               `json:"id"`
	Title    string             `json:"title"`
	Priority domain.BugPriority `json:"priority"`
	Project  *domain.Project    `json:"project"`
}

// CreatePublic 处理未认证的公共缺陷提交。
// 项目必须存在且为 active，否则返回未找到（inactive/archived 项目
// 对公共提交者不可见）。
func (s *BugService) CreatePublic(ctx context.Context, input PublicBugInput) (*PublicBugReceipt, error) {
	logCtx := logrus.WithField("project_id", input.ProjectID)

	// 1. 验证全部字段，包括可选的报告者信息
	reporterCheck := func(verr *domain.ValidationError) {
		name := strings.TrimSpace(input.ReporterName)
		if utf8.RuneCountInString(name) > 100 {
			verr.Add("reporterName", "reporter name cannot exceed 100 characters")
		}
		email := strings.TrimSpace(input.ReporterEmail)
		if email != "" && !domain.ValidEmail(email) {
			verr.Add("reporterEmail", "please provide a valid email")
		}
	}
	priority, err := validateBugFields(input.Title, input.Description, input.Priority, input.ProjectID,
		"", "", "", reporterCheck)
	if err != nil {
		logCtx.WithError(err).Warn("Public bug submission failed: validation")
		return nil, err
	}

	// 2. 项目必须存在且为 active
	project, err := s.projectRepo.FindByID(ctx, input.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		logCtx.WithError(err).Error("Failed to verify project for public submission")
		return nil, ErrInternalServer
	}
	if project.Status != domain.ProjectStatusActive {
		logCtx.Warn("Public bug submission rejected: project is not active")
		return nil, ErrProjectNotFound // 不向公共调用者泄露非 active 项目的存在
	}

	// 3. 构造并保存
	bug := &domain.Bug{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Priority:    priority,
		Status:      domain.StatusOpen,
		ProjectID:   input.ProjectID,
		Reporter:    domain.NewPublicReporter(input.ReporterName, input.ReporterEmail),
	}
	if err := s.bugRepo.Save(ctx, bug); err != nil {
		logCtx.WithError(err).Error("Database error during public bug submission")
		return nil, ErrInternalServer
	}

	logCtx.WithField("bug_id", bug.ID).Info("Public bug report submitted")
	project.CreatedBy = nil // 最小投影不携带创建者
	return &PublicBugReceipt{ID: bug.ID, Title: bug.Title, Priority: bug.Priority, Project: project}, nil
}

// Get 返回单个缺陷。
// 非管理员对无权读取的缺陷统一返回未找到，不泄露其存在性。
func (s *BugService) Get(ctx context.Context, p policy.Principal, id uint) (*domain.Bug, error) {
	bug, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessBug(p, policy.OpRead, bug) {
		logrus.WithFields(logrus.Fields{"user_id": p.UserID, "bug_id": id}).
			Warn("Bug read denied, returning not found")
		return nil, ErrBugNotFound
	}
	s.populateReporter(ctx, bug)
	return bug, nil
}

// UpdateBugInput 是描述性字段更新的输入。nil 字段保持不变。
// 指派变更不走此入口（仅 /assign），状态变更仅管理员或被指派的开发者可携带。
type UpdateBugInput struct {
	Title            *string
	Description      *string
	Priority         *string
	Status           *string
	StepsToReproduce *string
	ExpectedBehavior *string
	ActualBehavior   *string
}

// Update 更新缺陷的描述性字段。
// 读取权限不足时返回未找到；有读取权但无更新权时返回拒绝访问。
func (s *BugService) Update(ctx context.Context, p policy.Principal, id uint, input UpdateBugInput) (*domain.Bug, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": p.UserID, "bug_id": id})

	bug, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessBug(p, policy.OpRead, bug) {
		return nil, ErrBugNotFound
	}
	if !policy.CanAccessBug(p, policy.OpUpdate, bug) {
		return nil, ErrAccessDenied
	}
	// 状态字段经由一般更新时，仍受状态转换的准入约束：
	// 测试者不得通过描述性更新夹带状态变更
	if input.Status != nil && !policy.CanAccessBug(p, policy.OpUpdateStatus, bug) {
		logCtx.Warn("Bug update rejected: principal may not change status")
		return nil, ErrAccessDenied
	}

	verr := &domain.ValidationError{}
	if input.Title != nil {
		validateBugTitle(verr, *input.Title)
	}
	if input.Description != nil {
		validateBugDescription(verr, *input.Description)
	}
	if input.Priority != nil && !domain.ValidBugPriority(domain.BugPriority(*input.Priority)) {
		verr.Add("priority", "priority must be low, medium, high, or critical")
	}
	if input.Status != nil && !domain.ValidBugStatus(domain.BugStatus(*input.Status)) {
		verr.Add("status", "status must be open, in-progress, or closed")
	}
	validateOptionalText(verr, "stepsToReproduce", input.StepsToReproduce)
	validateOptionalText(verr, "expectedBehavior", input.ExpectedBehavior)
	validateOptionalText(verr, "actualBehavior", input.ActualBehavior)
	if err := verr.ErrOrNil(); err != nil {
		logCtx.WithError(err).Warn("Bug update failed: validation")
		return nil, err
	}

	if input.Title != nil {
		bug.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		bug.Description = *input.Description
	}
	if input.Priority != nil {
		bug.Priority = domain.BugPriority(*input.Priority)
	}
	if input.Status != nil {
		bug.Status = domain.BugStatus(*input.Status)
	}
	if input.StepsToReproduce != nil {
		bug.StepsToReproduce = *input.StepsToReproduce
	}
	if input.ExpectedBehavior != nil {
		bug.ExpectedBehavior = *input.ExpectedBehavior
	}
	if input.ActualBehavior != nil {
		bug.ActualBehavior = *input.ActualBehavior
	}

	detachBugAssociations(bug)
	if err := s.bugRepo.Save(ctx, bug); err != nil {
		logCtx.WithError(err).Error("Database error during bug update")
		return nil, ErrInternalServer
	}

	logCtx.Info("Bug updated")
	return s.reload(ctx, id)
}

// Delete 由管理员删除缺陷。
func (s *BugService) Delete(ctx context.Context, p policy.Principal, id uint) error {
	if policy.Can(p, policy.ResourceBug, policy.OpDelete) != policy.Allow {
		return ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "bug_id": id})

	if err := s.bugRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBugNotFound) {
			return ErrBugNotFound
		}
		logCtx.WithError(err).Error("Database error during bug deletion")
		return ErrInternalServer
	}
	logCtx.Info("Bug deleted")
	return nil
}

// Assign 由管理员将缺陷指派给开发者。
// 候选指派人在指派时刻必须是激活的开发者，否则返回验证错误，
// 缺陷的 assignedTo 保持不变。指派不改变状态。
func (s *BugService) Assign(ctx context.Context, p policy.Principal, id uint, assigneeID uint) (*domain.Bug, error) {
	if policy.Can(p, policy.ResourceBug, policy.OpAssign) != policy.Allow {
		return nil, ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "bug_id": id, "assignee_id": assigneeID})

	// 1. 缺陷必须存在
	bug, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 指派人必须是激活的开发者（此刻，而非曾经）
	assignee, err := s.userRepo.FindByID(ctx, assigneeID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		logCtx.WithError(err).Error("Failed to load candidate assignee")
		return nil, ErrInternalServer
	}
	if err != nil || assignee.Role != domain.RoleDeveloper || !assignee.IsActive {
		logCtx.Warn("Bug assignment rejected: assignee is not an active developer")
		verr := &domain.ValidationError{}
		verr.Add("assignedTo", "assigned user must be an active developer")
		return nil, verr
	}

	// 3. 写入指派。状态不变
	bug.AssignedToID = &assigneeID
	detachBugAssociations(bug)
	if err := s.bugRepo.Save(ctx, bug); err != nil {
		logCtx.WithError(err).Error("Database error during bug assignment")
		return nil, ErrInternalServer
	}

	// 4. 投递通知（失败不影响请求结果）
	if s.notifier != nil {
		if err := s.notifier.BugAssigned(ctx, id, assigneeID, p.UserID); err != nil {
			logCtx.WithError(err).Warn("Failed to enqueue assignment notification")
		}
	}

	logCtx.Info("Bug assigned")
	return s.reload(ctx, id)
}

// UpdateStatus 执行一次状态转换，可选地配对一条进度备注。
// 任意状态可以转换到任意状态；准入由访问控制策略决定：
// 仅管理员或当前被指派的开发者可以转换。备注追加与状态写入
// 在同一事务中提交。
func (s *BugService) UpdateStatus(ctx context.Context, p policy.Principal, id uint, status string, progressNote string) (*domain.Bug, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": p.UserID, "bug_id": id, "status": status})

	// 1. 缺陷必须存在
	bug, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 准入：管理员或被指派的开发者
	if !policy.CanAccessBug(p, policy.OpUpdateStatus, bug) {
		logCtx.Warn("Status change rejected: principal is not admin or the assigned developer")
		return nil, ErrAccessDenied
	}

	// 3. 验证
	verr := &domain.ValidationError{}
	newStatus := domain.BugStatus(status)
	if !domain.ValidBugStatus(newStatus) {
		verr.Add("status", "status must be open, in-progress, or closed")
	}
	note := strings.TrimSpace(progressNote)
	if utf8.RuneCountInString(note) > 500 {
		verr.Add("progressNote", "progress note cannot exceed 500 characters")
	}
	if err := verr.ErrOrNil(); err != nil {
		logCtx.WithError(err).Warn("Status change failed: validation")
		return nil, err
	}

	// 4. 状态与备注在单个存储调用中原子写入
	var noteRecord *domain.ProgressNote
	if note != "" {
		noteRecord = &domain.ProgressNote{Note: note, AddedByID: p.UserID}
	}
	if err := s.bugRepo.UpdateStatusWithNote(ctx, id, newStatus, noteRecord); err != nil {
		if errors.Is(err, repository.ErrBugNotFound) {
			return nil, ErrBugNotFound
		}
		logCtx.WithError(err).Error("Database error during status change")
		return nil, ErrInternalServer
	}

	// 5. 投递通知（失败不影响请求结果）
	if s.notifier != nil {
		if err := s.notifier.BugStatusChanged(ctx, id, newStatus, p.UserID); err != nil {
			logCtx.WithError(err).Warn("Failed to enqueue status notification")
		}
	}

	logCtx.Info("Bug status updated")
	return s.reload(ctx, id)
}

// --- 私有辅助函数 ---

// load 读取缺陷并把仓库错误映射为服务错误。
func (s *BugService) load(ctx context.Context, id uint) (*domain.Bug, error) {
	bug, err := s.bugRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBugNotFound) {
			return nil, ErrBugNotFound
		}
		logrus.WithError(err).WithField("bug_id", id).Error("Failed to load bug")
		return nil, ErrInternalServer
	}
	sanitizeBugRefs(bug)
	return bug, nil
}

// reload 在写入后重新读取缺陷，返回带关联数据的最新视图。
func (s *BugService) reload(ctx context.Context, id uint) (*domain.Bug, error) {
	bug, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.populateReporter(ctx, bug)
	return bug, nil
}

// populateReporter 为 internal 报告者填充用户展开视图（仅详情响应）。
func (s *BugService) populateReporter(ctx context.Context, bug *domain.Bug) {
	if !bug.Reporter.IsInternal() || bug.Reporter.UserID == nil {
		return
	}
	user, err := s.userRepo.FindByID(ctx, *bug.Reporter.UserID)
	if err != nil {
		logrus.WithError(err).WithField("bug_id", bug.ID).Warn("Failed to populate reporter user")
		return
	}
	sanitized := user.Sanitized()
	bug.Reporter.User = &sanitized
}

// detachBugAssociations 在保存前清空预加载的关联对象。
// gorm 的 Save 会先保存关联并用关联对象的主键回写外键，
// 留着过期的 AssignedTo 会把刚改过的 assigned_to_id 覆盖回旧值。
// 进度备注是只增的子记录，一般更新也绝不触碰。
func detachBugAssociations(bug *domain.Bug) {
	bug.Project = nil
	bug.AssignedTo = nil
	bug.ProgressNotes = nil
}

// sanitizeBugRefs 去除关联用户上的敏感字段。
func sanitizeBugRefs(bug *domain.Bug) {
	if bug.AssignedTo != nil {
		sanitized := bug.AssignedTo.Sanitized()
		bug.AssignedTo = &sanitized
	}
	if bug.Project != nil && bug.Project.CreatedBy != nil {
		sanitized := bug.Project.CreatedBy.Sanitized()
		bug.Project.CreatedBy = &sanitized
	}
	for i := range bug.ProgressNotes {
		if bug.ProgressNotes[i].AddedBy != nil {
			sanitized := bug.ProgressNotes[i].AddedBy.Sanitized()
			bug.ProgressNotes[i].AddedBy = &sanitized
		}
	}
}

// validateBugFields 校验缺陷创建的公共字段，返回规范化后的优先级。
// extra 用于附加通道特定的校验（例如公共报告者字段）。
func validateBugFields(title, description, priority string, projectID uint,
	steps, expected, actual string, extra func(*domain.ValidationError)) (domain.BugPriority, error) {

	verr := &domain.ValidationError{}
	validateBugTitle(verr, title)
	validateBugDescription(verr, description)

	normalized := domain.PriorityMedium // 优先级缺省为 medium
	if priority != "" {
		normalized = domain.BugPriority(priority)
		if !domain.ValidBugPriority(normalized) {
			verr.Add("priority", "priority must be low, medium, high, or critical")
		}
	}
	if projectID == 0 {
		verr.Add("project", "project is required")
	}
	if steps != "" && utf8.RuneCountInString(steps) > 1000 {
		verr.Add("stepsToReproduce", "steps to reproduce cannot exceed 1000 characters")
	}
	if expected != "" && utf8.RuneCountInString(expected) > 1000 {
		verr.Add("expectedBehavior", "expected behavior cannot exceed 1000 characters")
	}
	if actual != "" && utf8.RuneCountInString(actual) > 1000 {
		verr.Add("actualBehavior", "actual behavior cannot exceed 1000 characters")
	}
	if extra != nil {
		extra(verr)
	}
	return normalized, verr.ErrOrNil()
}

func validateBugTitle(verr *domain.ValidationError, title string) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		verr.Add("title", "title is required")
	} else if utf8.RuneCountInString(trimmed) > 200 {
		verr.Add("title", "title cannot exceed 200 characters")
	}
}

func validateBugDescription(verr *domain.ValidationError, description string) {
	if description == "" {
		verr.Add("description", "description is required")
	} else if utf8.RuneCountInString(description) > 2000 {
		verr.Add("description", "description cannot exceed 2000 characters")
	}
}

func validateOptionalText(verr *domain.ValidationError, field string, value *string) {
	if value != nil && utf8.RuneCountInString(*value) > 1000 {
		verr.Add(field, field+" cannot exceed 1000 characters")
	}
}
