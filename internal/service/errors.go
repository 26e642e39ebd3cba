package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrBugNotFound          = errors.New("bug not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDisabled      = errors.New("account is deactivated")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrAccessDenied         = errors.New("access denied")
	ErrProjectNameTaken     = errors.New("project with this name already exists")
	ErrInternalServer       = errors.New("internal server error")
)

// ProjectInUseError 表示项目删除被引用完整性约束阻止：
// 项目下仍有缺陷引用它，必须先重新指派或删除这些缺陷。
type ProjectInUseError struct {
	BugCount int64
}

func (e *ProjectInUseError) Error() string {
	return fmt.Sprintf("cannot delete project: it has %d associated bug(s), please reassign or delete the bugs first", e.BugCount)
}
