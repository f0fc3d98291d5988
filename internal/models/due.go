package models

import "time"

// DueSoonWindow is how far ahead a due date counts as "due soon".
const DueSoonWindow = 24 * time.Hour

type DueStatus int

const (
	DueNone DueStatus = iota
	DueSoon
	DueOverdue
)

func (s DueStatus) String() string {
	switch s {
	case DueSoon:
		return "Due Soon"
	case DueOverdue:
		return "Overdue"
	default:
		return ""
	}
}

// ClassifyDue derives the badge for a due date relative to now.
// A due date strictly before now is overdue; one within the next
// DueSoonWindow (inclusive) is due soon; anything else has no badge.
func ClassifyDue(due *time.Time, now time.Time) DueStatus {
	if due == nil {
		return DueNone
	}
	if due.Before(now) {
		return DueOverdue
	}
	if due.Sub(now) <= DueSoonWindow {
		return DueSoon
	}
	return DueNone
}
