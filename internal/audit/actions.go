package audit

// Action labels written by this application. Labels are upper snake case so the
// classifier keywords apply.
const (
	ActionUserLogin              = "USER_LOGIN"
	ActionUserLoginFailed        = "USER_LOGIN_FAILED"
	ActionUserLogout             = "USER_LOGOUT"
	ActionUserRegistered         = "USER_REGISTERED"
	ActionAuthTokenIssued        = "AUTH_TOKEN_ISSUED"
	ActionPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	ActionPasswordResetCompleted = "PASSWORD_RESET_COMPLETED"
	ActionPasswordResetFailed    = "PASSWORD_RESET_FAILED"
	ActionUserRoleChanged        = "USER_ROLE_CHANGED"
	ActionUserSuspended          = "USER_SUSPENDED"
	ActionUserReactivated        = "USER_REACTIVATED"
	ActionAdminCreated           = "ADMIN_CREATED"
	ActionCourseCreated          = "COURSE_CREATED"
	ActionCourseUpdated          = "COURSE_UPDATED"
	ActionCourseDeleted          = "COURSE_DELETED"
	ActionRateLimitReset         = "RATE_LIMIT_RESET"
	ActionAuditExported          = "AUDIT_LOG_EXPORTED"
)

// Target types.
const (
	TargetUser      = "user"
	TargetCourse    = "course"
	TargetRateLimit = "rate_limit"
	TargetAuditLog  = "audit_log"
)
