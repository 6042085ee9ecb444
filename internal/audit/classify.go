package audit

import "strings"

type severityRule struct {
	keyword  string
	severity Severity
}

type categoryRule struct {
	keyword  string
	category Category
}

// Ordered; the first keyword found anywhere in the action wins. Matching is
// case-sensitive, so lowercase labels fall through to the defaults.
var severityRules = []severityRule{
	{"ROLE_CHANGED", SeverityCritical},
	{"DELETED", SeverityCritical},
	{"PERMISSION", SeverityCritical},
	{"SYSTEM_ERROR", SeverityCritical},
	{"INTEGRATION_FAILURE", SeverityCritical},
	{"DATA_INCONSISTENCY", SeverityCritical},
	{"FAILED", SeverityWarning},
	{"RETRY", SeverityWarning},
	{"TIMEOUT", SeverityWarning},
	{"WARNING", SeverityWarning},
	{"REJECTED", SeverityWarning},
}

var categoryRules = []categoryRule{
	{"LOGIN", CategorySecurity},
	{"LOGOUT", CategorySecurity},
	{"AUTH", CategorySecurity},
	{"ERROR", CategorySystem},
	{"FAILURE", CategorySystem},
	{"SYSTEM", CategorySystem},
	{"INTEGRATION", CategorySystem},
	{"ROLE", CategoryAdminAction},
	{"PERMISSION", CategoryAdminAction},
	{"CREATED", CategoryAdminAction},
	{"DELETED", CategoryAdminAction},
	{"ROOM", CategoryAdminAction},
}

// ClassifySeverity derives a severity from an action label. INFO when nothing matches.
func ClassifySeverity(action string) Severity {
	for _, rule := range severityRules {
		if strings.Contains(action, rule.keyword) {
			return rule.severity
		}
	}
	return SeverityInfo
}

// ClassifyCategory derives a category from an action label. USER_ACTION when nothing matches.
func ClassifyCategory(action string) Category {
	for _, rule := range categoryRules {
		if strings.Contains(action, rule.keyword) {
			return rule.category
		}
	}
	return CategoryUserAction
}

// Classify fills Severity and Category when they are missing or unrecognised.
// Explicit valid values are kept as given.
func Classify(e Entry) Entry {
	if !e.Severity.Valid() {
		e.Severity = ClassifySeverity(e.Action)
	}
	if !e.Category.Valid() {
		e.Category = ClassifyCategory(e.Action)
	}
	return e
}
