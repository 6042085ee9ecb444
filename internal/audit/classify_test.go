package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySeverity(t *testing.T) {
	cases := map[string]Severity{
		"":                      SeverityInfo,
		"USER_DELETED":          SeverityCritical,
		"USER_ROLE_CHANGED":     SeverityCritical,
		"PERMISSION_GRANTED":    SeverityCritical,
		"DELETEDPOST":           SeverityCritical,
		"LOGIN_FAILED":          SeverityWarning,
		"PREFAILED":             SeverityWarning,
		"ENROLLMENT_REJECTED":   SeverityWarning,
		"WEBHOOK_RETRY":         SeverityWarning,
		"user_deleted":          SeverityInfo,
		"ASSIGNMENT_SUBMITTED":  SeverityInfo,
		"INTEGRATION_FAILURE":   SeverityCritical,
		"DELETE_FAILED":         SeverityWarning,
		"COURSE_DELETED_FAILED": SeverityCritical,
	}
	for action, want := range cases {
		assert.Equal(t, want, ClassifySeverity(action), "action %q", action)
		assert.Equal(t, ClassifySeverity(action), ClassifySeverity(action))
	}
}

func TestClassifyCategory(t *testing.T) {
	cases := map[string]Category{
		"":                     CategoryUserAction,
		"USER_LOGIN":           CategorySecurity,
		"USER_LOGIN_FAILED":    CategorySecurity,
		"USER_LOGOUT":          CategorySecurity,
		"AUTH_TOKEN_ISSUED":    CategorySecurity,
		"USER_ROLE_CHANGED":    CategoryAdminAction,
		"SYSTEM_ERROR":         CategorySystem,
		"INTEGRATION_SYNCED":   CategorySystem,
		"ROOM_CREATED":         CategoryAdminAction,
		"ASSIGNMENT_SUBMITTED": CategoryUserAction,
		"ENROLLMENT_REJECTED":  CategoryUserAction,
		"user_login":           CategoryUserAction,
	}
	for action, want := range cases {
		assert.Equal(t, want, ClassifyCategory(action), "action %q", action)
	}
}

func TestClassifyKeepsExplicitValues(t *testing.T) {
	e := Classify(Entry{Action: "RATE_LIMIT_RESET", Category: CategoryAdminAction})
	assert.Equal(t, SeverityInfo, e.Severity)
	assert.Equal(t, CategoryAdminAction, e.Category)

	e = Classify(Entry{Action: "USER_DELETED", Severity: SeverityError})
	assert.Equal(t, SeverityError, e.Severity)
	assert.Equal(t, CategoryAdminAction, e.Category)

	e = Classify(Entry{Action: "USER_DELETED", Severity: "HIGH"})
	assert.Equal(t, SeverityCritical, e.Severity)
}

func TestEveryKnownActionClassifies(t *testing.T) {
	actions := []string{
		ActionUserLogin, ActionUserLoginFailed, ActionUserLogout, ActionUserRegistered,
		ActionAuthTokenIssued, ActionPasswordResetRequested, ActionPasswordResetCompleted,
		ActionPasswordResetFailed, ActionUserRoleChanged, ActionUserSuspended,
		ActionUserReactivated, ActionAdminCreated, ActionCourseCreated, ActionCourseUpdated,
		ActionCourseDeleted, ActionRateLimitReset, ActionAuditExported,
	}
	for _, action := range actions {
		e := Classify(Entry{Action: action})
		assert.True(t, e.Severity.Valid(), action)
		assert.True(t, e.Category.Valid(), action)
	}
	assert.Equal(t, SeverityWarning, ClassifySeverity(ActionUserLoginFailed))
	assert.Equal(t, CategorySecurity, ClassifyCategory(ActionUserLoginFailed))
	assert.Equal(t, SeverityCritical, ClassifySeverity(ActionUserRoleChanged))
}

func TestParseSeverityAndCategory(t *testing.T) {
	s, err := ParseSeverity("warning")
	assert.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)
	_, err = ParseSeverity("loud")
	assert.Error(t, err)

	c, err := ParseCategory(" admin_action ")
	assert.NoError(t, err)
	assert.Equal(t, CategoryAdminAction, c)
	_, err = ParseCategory("misc")
	assert.Error(t, err)
}
