// Package casework records analyst decisions on client cases
package casework

import (
	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
)

// Action is an analyst decision on a case
type Action string

const (
	ActionAbandon         Action = "abandon"
	ActionSuspicionReport Action = "suspicion_report"
	ActionBlock           Action = "block"
	ActionValidate        Action = "validate"
)

// preset actions set a status and carry a fixed comment text
var presets = map[Action]models.CaseStatus{
	ActionAbandon:         models.CaseStatusAbandon,
	ActionSuspicionReport: models.CaseStatusSuspicionReport,
	ActionBlock:           models.CaseStatusBlock,
}

// Actions lists every action in display order
var Actions = []Action{ActionAbandon, ActionSuspicionReport, ActionBlock, ActionValidate}

// ParseAction validates a raw action name
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if a == ActionValidate {
		return a, nil
	}
	if _, ok := presets[a]; ok {
		return a, nil
	}
	return "", apperr.Validation("unknown action %q", s)
}

// IsPreset reports whether a sets a status
func (a Action) IsPreset() bool {
	_, ok := presets[a]
	return ok
}

// PresetText returns the fixed comment text of a preset action
func (a Action) PresetText() string {
	return string(presets[a])
}

// Transition returns the status after applying a to a case in current.
// Presets are re-enterable from any status; validate keeps the status.
func Transition(current models.CaseStatus, a Action) models.CaseStatus {
	if next, ok := presets[a]; ok {
		return next
	}
	if current == "" {
		return models.CaseStatusDefault
	}
	return current
}

// CanAct reports whether role may record case actions
func CanAct(role models.Role) bool {
	return role == models.RoleAnalyst || role == models.RoleAdmin
}
