package store

import "qms/dispatch-service/internal/models"

var transitionMap = map[string][]string{
	"call_next": {models.StatusPending},
}

var actionTarget = map[string]string{
	"call_next": models.StatusServed,
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// TargetStatus returns the status an action moves a ticket into.
func TargetStatus(action string) (string, bool) {
	status, ok := actionTarget[action]
	return status, ok
}

// ValidStatusChange reports whether a ticket may move from one status to another.
func ValidStatusChange(from, to string) bool {
	for action, target := range actionTarget {
		if target == to && ValidTransition(action, from) {
			return true
		}
	}
	return false
}
