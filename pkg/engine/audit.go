package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openlosa/losa/pkg/loan"
)

// systemActor is the audit actor for engine-driven events.
const systemActor = "system"

// newAuditEntry builds one audit entry. Sequence is left zero; the store
// assigns it at commit.
func newAuditEntry(appID string, stage loan.Stage, actor, action string, at time.Time) loan.AuditLogEntry {
	return loan.AuditLogEntry{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		Stage:         stage,
		Actor:         actor,
		Action:        action,
		RecordedAt:    at,
	}
}

// transitionEntry builds the audit entry for a status transition.
func transitionEntry(appID string, stage loan.Stage, actor string, from, to loan.Status, changes []loan.FieldChange, detail string, at time.Time) loan.AuditLogEntry {
	entry := newAuditEntry(appID, stage, actor, "transition", at)
	entry.FromStatus = from
	entry.ToStatus = to
	entry.Changes = changes
	entry.Detail = detail
	return entry
}

// renderValue renders a field value for a FieldChange.
func renderValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// setChange records a field being set for the first time.
func setChange(path string, after interface{}) loan.FieldChange {
	return loan.FieldChange{
		Path:   path,
		After:  renderValue(after),
		Action: loan.ChangeSet,
	}
}

// updateChange records a field moving from one value to another.
func updateChange(path string, before, after interface{}) loan.FieldChange {
	return loan.FieldChange{
		Path:   path,
		Before: renderValue(before),
		After:  renderValue(after),
		Action: loan.ChangeUpdate,
	}
}

// appendChange records an element appended to a collection field.
func appendChange(path string, after interface{}) loan.FieldChange {
	return loan.FieldChange{
		Path:   path,
		After:  renderValue(after),
		Action: loan.ChangeAppend,
	}
}
