package rbac

import "slices"

// 角色常量
const (
	RoleClient      = "client"
	RoleContributor = "contributor"
	RoleAdmin       = "admin"
)

// 权限常量
const (
	PermissionCreateProject   = "project:create"
	PermissionManageProject   = "project:manage"
	PermissionPlaceBid        = "bid:place"
	PermissionDecideBid       = "bid:decide"
	PermissionSubmitMilestone = "milestone:submit"
	PermissionReviewMilestone = "milestone:review"
	PermissionReview          = "review:create"
	PermissionReadEngagement  = "engagement:read"
	PermissionReplayOutbox    = "outbox:replay"
)

var rolePermissions = map[string][]string{
	RoleClient: {
		PermissionReadEngagement,
		PermissionCreateProject,
		PermissionManageProject,
		PermissionDecideBid,
		PermissionReviewMilestone,
		PermissionReview,
	},
	RoleContributor: {
		PermissionReadEngagement,
		PermissionPlaceBid,
		PermissionSubmitMilestone,
		PermissionReview,
	},
	RoleAdmin: {
		PermissionReadEngagement,
		PermissionCreateProject,
		PermissionManageProject,
		PermissionDecideBid,
		PermissionReviewMilestone,
		PermissionReplayOutbox,
	},
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	return slices.Contains(rolePermissions[role], permission)
}

// CheckPermission is HasPermission returning a typed error.
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: " + e.Role + " lacks " + e.Permission
}
