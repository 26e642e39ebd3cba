// Package policy 实现基于角色的访问控制决策。
// 决策是 (角色, 资源, 操作) 的纯函数，以静态数据表的形式定义，
// 在读写路径上以完全相同的方式求值。
package policy

import "github.com/Avishi2511/bug-tracker/internal/domain"

// Role 是策略层的角色，在 domain 角色之外补充了未认证的公共访问者。
type Role string

const (
	RoleAdmin     Role = Role(domain.RoleAdmin)
	RoleDeveloper Role = Role(domain.RoleDeveloper)
	RoleTester    Role = Role(domain.RoleTester)
	RolePublic    Role = "public"
)

// Principal 是一次请求的主体：已认证用户或公共访问者。
// 主体身份在每次请求时由服务端从令牌重新解析，绝不信任客户端缓存的角色声明。
type Principal struct {
	UserID uint
	Role   Role
}

// Public 返回未认证的公共主体。
func Public() Principal { return Principal{Role: RolePublic} }

// FromUser 由已认证用户构造主体。
func FromUser(u *domain.User) Principal {
	return Principal{UserID: u.ID, Role: Role(u.Role)}
}

// IsAdmin 判断主体是否为管理员。
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Resource 是受策略保护的资源种类。
type Resource string

const (
	ResourceBug     Resource = "bug"
	ResourceProject Resource = "project"
	ResourceUser    Resource = "user"
)

// Operation 是可以对资源执行的操作。
type Operation string

const (
	OpCreate       Operation = "create"
	OpRead         Operation = "read"
	OpUpdate       Operation = "update"        // 缺陷的描述性字段更新
	OpUpdateStatus Operation = "update_status" // 缺陷状态转换
	OpAssign       Operation = "assign"        // 缺陷指派
	OpDelete       Operation = "delete"
	OpListActive   Operation = "list_active" // 仅列出 active 项目
)

// Decision 是策略表中的三态决策。
type Decision int

const (
	// Deny 拒绝操作。
	Deny Decision = iota
	// Allow 无条件允许操作。
	Allow
	// AllowOwn 仅当主体拥有该资源时允许；所有权由 Owns 按资源解析。
	AllowOwn
)

// rules 是完整的策略表：角色 × 资源 × 操作 → 决策。
// 表中未出现的组合一律拒绝。
var rules = map[Role]map[Resource]map[Operation]Decision{
	RoleAdmin: {
		ResourceBug: {
			OpCreate: Allow, OpRead: Allow, OpUpdate: Allow,
			OpUpdateStatus: Allow, OpAssign: Allow, OpDelete: Allow,
		},
		ResourceProject: {
			OpCreate: Allow, OpRead: Allow, OpUpdate: Allow,
			OpDelete: Allow, OpListActive: Allow,
		},
		ResourceUser: {
			OpCreate: Allow, OpRead: Allow, OpUpdate: Allow,
		},
	},
	RoleDeveloper: {
		ResourceBug: {
			// 开发者只能读取/更新指派给自己的缺陷，并在其上转换状态。
			OpCreate: Allow, OpRead: AllowOwn, OpUpdate: AllowOwn,
			OpUpdateStatus: AllowOwn,
		},
		ResourceProject: {
			OpRead: Allow, OpListActive: Allow,
		},
	},
	RoleTester: {
		ResourceBug: {
			// 测试者只能读取/更新自己报告的缺陷，不能转换状态或指派。
			OpCreate: Allow, OpRead: AllowOwn, OpUpdate: AllowOwn,
		},
		ResourceProject: {
			OpListActive: Allow,
		},
	},
	RolePublic: {
		ResourceBug: {
			OpCreate: Allow, // 公共提交通道，限定 active 项目
		},
		ResourceProject: {
			OpListActive: Allow,
		},
	},
}

// Can 对策略表求值。未知的角色、资源或操作一律返回 Deny。
func Can(p Principal, res Resource, op Operation) Decision {
	byResource, ok := rules[p.Role]
	if !ok {
		return Deny
	}
	byOp, ok := byResource[res]
	if !ok {
		return Deny
	}
	return byOp[op] // 缺失的 key 返回零值 Deny
}

// Owns 解析主体对一条缺陷记录的所有权：
// 开发者拥有指派给自己的缺陷，测试者拥有自己报告的缺陷。
func Owns(p Principal, bug *domain.Bug) bool {
	switch p.Role {
	case RoleDeveloper:
		return bug.IsAssignedTo(p.UserID)
	case RoleTester:
		return bug.Reporter.IsUser(p.UserID)
	}
	return false
}

// CanAccessBug 在静态决策之上解析 AllowOwn 的所有权，得到最终的允许/拒绝。
func CanAccessBug(p Principal, op Operation, bug *domain.Bug) bool {
	switch Can(p, ResourceBug, op) {
	case Allow:
		return true
	case AllowOwn:
		return Owns(p, bug)
	}
	return false
}
