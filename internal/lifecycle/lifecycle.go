// Package lifecycle is the item state machine. It validates an action against the
// item's current status, mutates the item in memory and reports which side effects
// the caller must persist (reminder cancellation, scheduling, escalation notices).
// It never touches storage.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

// Action is a user or scheduler operation on an item.
type Action string

const (
	ActionStart    Action = "start"
	ActionFix      Action = "fix"
	ActionIgnore   Action = "ignore"
	ActionDelegate Action = "delegate"
	ActionEscalate Action = "escalate"
	ActionAIFix    Action = "ai_fix"
)

// ExhaustedReason is recorded when the scheduler escalates an overdue item.
const ExhaustedReason = "reminders exhausted"

var (
	// ErrInvalidTransition is returned when the action is not allowed from the item's status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation is returned when a required action argument is missing.
	ErrValidation = errors.New("validation failed")
)

// edges lists every allowed (from, action) pair and the resulting status.
var edges = map[models.ItemStatus]map[Action]models.ItemStatus{
	models.StatusPending: {
		ActionStart:    models.StatusInProgress,
		ActionFix:      models.StatusResolved,
		ActionIgnore:   models.StatusIgnored,
		ActionDelegate: models.StatusDelegated,
		ActionAIFix:    models.StatusAIFixed,
	},
	models.StatusInProgress: {
		ActionFix:      models.StatusResolved,
		ActionIgnore:   models.StatusIgnored,
		ActionDelegate: models.StatusDelegated,
		ActionAIFix:    models.StatusAIFixed,
	},
	models.StatusDelegated: {
		ActionFix:      models.StatusResolved,
		ActionIgnore:   models.StatusIgnored,
		ActionDelegate: models.StatusDelegated,
		ActionEscalate: models.StatusEscalated,
		ActionAIFix:    models.StatusAIFixed,
	},
	models.StatusEscalated: {
		ActionIgnore:   models.StatusIgnored,
		ActionDelegate: models.StatusDelegated,
		ActionAIFix:    models.StatusAIFixed,
	},
	models.StatusResolved: {
		ActionDelegate: models.StatusDelegated,
	},
	models.StatusAIFixed: {
		ActionDelegate: models.StatusDelegated,
	},
	models.StatusIgnored: {},
}

// Next returns the status reached by applying action from status, or
// ErrInvalidTransition.
func Next(from models.ItemStatus, action Action) (models.ItemStatus, error) {
	to, ok := edges[from][action]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s an item that is %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// Allowed lists the actions valid from a status. Used to render item menus.
func Allowed(from models.ItemStatus) []Action {
	order := []Action{ActionStart, ActionFix, ActionAIFix, ActionDelegate, ActionEscalate, ActionIgnore}
	var out []Action
	for _, a := range order {
		if _, ok := edges[from][a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Request carries the arguments of one action. Only the fields the action needs are read.
type Request struct {
	Action         Action
	Actor          *uuid.UUID
	At             time.Time
	Value          *models.FieldValue // fix, ai_fix
	Confidence     *int               // ai_fix
	Assignee       *uuid.UUID         // delegate
	Message        string             // delegate
	DueDate        *time.Time         // delegate
	ConversationID *string            // delegate
	Target         *uuid.UUID         // escalate
	Reason         string             // escalate
}

// Policy holds the scheduling knobs the state machine needs.
type Policy struct {
	ReminderLead time.Duration
}

// Effects are the persistence side effects of a transition.
type Effects struct {
	From models.ItemStatus
	To   models.ItemStatus

	// CancelReminders asks the caller to cancel every pending reminder of the item.
	CancelReminders bool
	// ScheduleDueSoon, when set, is the time of the new due_soon reminder.
	ScheduleDueSoon *time.Time
	// NotifyEscalation asks the caller to queue an escalation reminder to the target.
	NotifyEscalation bool
}

func (r Request) validate() error {
	var missing []string
	switch r.Action {
	case ActionFix, ActionAIFix:
		if r.Value == nil || r.Value.IsZero() {
			missing = append(missing, "value")
		}
	case ActionDelegate:
		if r.Assignee == nil || *r.Assignee == uuid.Nil {
			missing = append(missing, "assignee")
		}
		if strings.TrimSpace(r.Message) == "" {
			missing = append(missing, "message")
		}
	case ActionEscalate:
		if r.Target == nil || *r.Target == uuid.Nil {
			missing = append(missing, "target")
		}
		if strings.TrimSpace(r.Reason) == "" {
			missing = append(missing, "reason")
		}
	case ActionStart, ActionIgnore:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrValidation, r.Action)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s %s required", ErrValidation, strings.Join(missing, " and "), plural(len(missing)))
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

// Apply validates req against item, mutates item to its new state and returns the
// side effects. On error item is left untouched.
func Apply(item *models.Item, req Request, p Policy) (Effects, error) {
	if err := req.validate(); err != nil {
		return Effects{}, err
	}
	to, err := Next(item.Status, req.Action)
	if err != nil {
		return Effects{}, err
	}
	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	eff := Effects{From: item.Status, To: to}

	switch req.Action {
	case ActionStart:
	case ActionFix, ActionAIFix:
		v := *req.Value
		if req.Action == ActionAIFix {
			item.AISuggestedValue = &v
			if req.Confidence != nil {
				c := *req.Confidence
				item.AIConfidence = &c
			}
		}
		item.CurrentValue = v
		item.ResolvedBy = req.Actor
		item.ResolvedAt = &at
		item.NextReminderAt = nil
		eff.CancelReminders = true
	case ActionIgnore:
		item.ResolvedBy = req.Actor
		item.ResolvedAt = &at
		item.NextReminderAt = nil
		eff.CancelReminders = true
	case ActionDelegate:
		assignee := *req.Assignee
		msg := req.Message
		item.DelegatedTo = &assignee
		item.DelegatedBy = req.Actor
		item.DelegatedAt = &at
		item.DelegationMessage = &msg
		item.DueDate = req.DueDate
		if req.ConversationID != nil {
			item.ConversationID = req.ConversationID
		}
		item.ResolvedBy = nil
		item.ResolvedAt = nil
		item.NextReminderAt = nil
		eff.CancelReminders = true
		if req.DueDate != nil {
			when := ReminderTime(at, *req.DueDate, p.ReminderLead)
			item.NextReminderAt = &when
			eff.ScheduleDueSoon = &when
		}
	case ActionEscalate:
		target := *req.Target
		reason := req.Reason
		item.EscalatedTo = &target
		item.EscalationReason = &reason
		item.EscalatedAt = &at
		item.NextReminderAt = nil
		eff.CancelReminders = true
		eff.NotifyEscalation = true
	}

	item.Status = to
	item.UpdatedAt = at
	return eff, nil
}

// ReminderTime is when the due_soon reminder fires: lead before due, but never
// before the delegation itself.
func ReminderTime(delegatedAt, due time.Time, lead time.Duration) time.Time {
	at := due.Add(-lead)
	if at.Before(delegatedAt) {
		return delegatedAt
	}
	return at
}

// Overdue reports whether a delegated item is past its due date plus grace.
func Overdue(item models.Item, now time.Time, grace time.Duration) bool {
	if item.Status != models.StatusDelegated || item.DueDate == nil {
		return false
	}
	return !now.Before(item.DueDate.Add(grace))
}

// AuditAction is the audit log action name for a lifecycle action.
func AuditAction(a Action) string {
	return "ITEM_" + strings.ToUpper(string(a))
}
