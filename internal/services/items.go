package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/lifecycle"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/scoring"
	"github.com/Bruce-k901/My-App-sub010/internal/security"
	"github.com/Bruce-k901/My-App-sub010/internal/suggest"
)

// DelegateInput carries the arguments of a delegation.
type DelegateInput struct {
	Assignee       uuid.UUID
	Message        string
	DueDate        *time.Time
	ConversationID *string
}

// ItemDetail is an item with the actions currently allowed on it.
type ItemDetail struct {
	Item    models.Item        `json:"item"`
	Allowed []lifecycle.Action `json:"allowed_actions"`
}

// ItemHistory is an item with its audit trail and reminder history.
type ItemHistory struct {
	ItemDetail
	Audit     []models.AuditLog `json:"audit"`
	Reminders []models.Reminder `json:"reminders"`
}

// ItemService applies lifecycle actions to items.
//
// Every transition runs in one transaction that locks the owning report and then the
// item, persists the item, cancels or schedules reminders, re-derives the report
// counters from item statuses and writes an audit entry. Two concurrent transitions on
// the same report therefore serialize and neither loses the other's counter update.
type ItemService struct {
	stores    Stores
	validator *security.ValidationService
	suggester suggest.Suggester
	policy    lifecycle.Policy
	weights   scoring.Weights
	log       zerolog.Logger
	now       func() time.Time
}

// NewItemService creates the item service. suggester may be nil, which disables
// Suggest and AIFix for items without a stored suggestion.
func NewItemService(st Stores, v *security.ValidationService, suggester suggest.Suggester, p lifecycle.Policy, w scoring.Weights, log zerolog.Logger) *ItemService {
	if v == nil {
		v = security.NewValidationService(nil)
	}
	return &ItemService{
		stores:    st,
		validator: v,
		suggester: suggester,
		policy:    p,
		weights:   w,
		log:       log.With().Str("component", "items").Logger(),
		now:       time.Now,
	}
}

// Get returns an item and its allowed actions.
func (s *ItemService) Get(ctx context.Context, companyID, itemID uuid.UUID) (*ItemDetail, error) {
	item, err := s.stores.Items.GetByID(ctx, companyID, itemID)
	if err != nil {
		return nil, translate(err, ErrItemNotFound)
	}
	return &ItemDetail{Item: *item, Allowed: lifecycle.Allowed(item.Status)}, nil
}

// History returns an item with its newest audit entries and every reminder.
func (s *ItemService) History(ctx context.Context, companyID, itemID uuid.UUID, limit int) (*ItemHistory, error) {
	detail, err := s.Get(ctx, companyID, itemID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	audit, err := s.stores.Audit.ListByItem(ctx, companyID, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	reminders, err := s.stores.Reminders.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	if audit == nil {
		audit = []models.AuditLog{}
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	return &ItemHistory{ItemDetail: *detail, Audit: audit, Reminders: reminders}, nil
}

// Start marks an item as being worked on.
func (s *ItemService) Start(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error) {
	return s.transition(ctx, companyID, itemID, lifecycle.Request{Action: lifecycle.ActionStart, Actor: &actor})
}

// Fix resolves an item with a corrected value.
func (s *ItemService) Fix(ctx context.Context, companyID, itemID, actor uuid.UUID, value models.FieldValue) (*models.TransitionResult, error) {
	if err := s.validator.ValidateFieldValue(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err)
	}
	return s.transition(ctx, companyID, itemID, lifecycle.Request{Action: lifecycle.ActionFix, Actor: &actor, Value: &value})
}

// Ignore closes an item without changing its value.
func (s *ItemService) Ignore(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error) {
	return s.transition(ctx, companyID, itemID, lifecycle.Request{Action: lifecycle.ActionIgnore, Actor: &actor})
}

// Delegate hands an item to another profile of the same company. With a due date a
// due_soon reminder is scheduled; re-delegating replaces any pending reminder.
func (s *ItemService) Delegate(ctx context.Context, companyID, itemID, actor uuid.UUID, in DelegateInput) (*models.TransitionResult, error) {
	msg, err := s.validator.ValidateMessage("message", in.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err)
	}
	if err := s.validator.ValidateDueDateAt(in.DueDate, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err)
	}
	assignee := in.Assignee
	return s.transition(ctx, companyID, itemID, lifecycle.Request{
		Action:         lifecycle.ActionDelegate,
		Actor:          &actor,
		Assignee:       &assignee,
		Message:        msg,
		DueDate:        in.DueDate,
		ConversationID: in.ConversationID,
	})
}

// Escalate hands a delegated item to target. actor is nil when the reminder scheduler
// escalates an overdue item.
func (s *ItemService) Escalate(ctx context.Context, companyID, itemID uuid.UUID, actor *uuid.UUID, target uuid.UUID, reason string) (*models.TransitionResult, error) {
	return s.escalate(ctx, companyID, itemID, actor, target, reason, time.Time{})
}

func (s *ItemService) escalate(ctx context.Context, companyID, itemID uuid.UUID, actor *uuid.UUID, target uuid.UUID, reason string, at time.Time) (*models.TransitionResult, error) {
	reason, err := s.validator.ValidateMessage("reason", reason)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err)
	}
	return s.transition(ctx, companyID, itemID, lifecycle.Request{
		Action: lifecycle.ActionEscalate,
		Actor:  actor,
		At:     at,
		Target: &target,
		Reason: reason,
	})
}

// Suggest asks the suggestion service for a value and stores it on the item. The
// item's status does not change.
func (s *ItemService) Suggest(ctx context.Context, companyID, itemID uuid.UUID) (*models.Suggestion, error) {
	item, err := s.stores.Items.GetByID(ctx, companyID, itemID)
	if err != nil {
		return nil, translate(err, ErrItemNotFound)
	}
	sg, err := s.fetchSuggestion(ctx, *item)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Items.SetSuggestion(ctx, item.ID, sg); err != nil {
		return nil, translate(err, ErrItemNotFound)
	}
	return &sg, nil
}

// AIFix resolves an item with its AI-suggested value. A stored suggestion is used when
// present; otherwise the suggestion service is asked first, outside the transaction.
func (s *ItemService) AIFix(ctx context.Context, companyID, itemID, actor uuid.UUID) (*models.TransitionResult, error) {
	item, err := s.stores.Items.GetByID(ctx, companyID, itemID)
	if err != nil {
		return nil, translate(err, ErrItemNotFound)
	}
	if _, err := lifecycle.Next(item.Status, lifecycle.ActionAIFix); err != nil {
		return nil, err
	}

	var sg models.Suggestion
	if item.AISuggestedValue != nil && !item.AISuggestedValue.IsZero() {
		sg.Value = *item.AISuggestedValue
		if item.AIConfidence != nil {
			sg.Confidence = *item.AIConfidence
		}
	} else if sg, err = s.fetchSuggestion(ctx, *item); err != nil {
		return nil, err
	}

	value, confidence := sg.Value, sg.Confidence
	return s.transition(ctx, companyID, itemID, lifecycle.Request{
		Action:     lifecycle.ActionAIFix,
		Actor:      &actor,
		Value:      &value,
		Confidence: &confidence,
	})
}

func (s *ItemService) fetchSuggestion(ctx context.Context, item models.Item) (models.Suggestion, error) {
	if s.suggester == nil {
		return models.Suggestion{}, ErrSuggestDisabled
	}
	sg, err := s.suggester.Suggest(ctx, item)
	if errors.Is(err, suggest.ErrUnavailable) {
		return models.Suggestion{}, ErrNoSuggestion
	}
	if err != nil {
		return models.Suggestion{}, fmt.Errorf("suggest: %w", err)
	}
	if err := s.validator.ValidateFieldValue(&sg.Value); err != nil {
		s.log.Warn().Str("item_id", item.ID.String()).Err(err).Msg("discarding invalid suggestion")
		return models.Suggestion{}, ErrNoSuggestion
	}
	return sg, nil
}

// transition runs one lifecycle action end to end. Locks are taken report first,
// then item.
func (s *ItemService) transition(ctx context.Context, companyID, itemID uuid.UUID, req lifecycle.Request) (*models.TransitionResult, error) {
	reportID, err := s.stores.Items.ReportOf(ctx, companyID, itemID)
	if err != nil {
		return nil, translate(err, ErrItemNotFound)
	}
	if req.At.IsZero() {
		req.At = s.now().UTC()
	}

	var res models.TransitionResult
	err = s.stores.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.stores.Reports.LockByID(ctx, companyID, reportID); err != nil {
			return translate(err, ErrReportNotFound)
		}
		item, err := s.stores.Items.LockByID(ctx, companyID, itemID)
		if err != nil {
			return translate(err, ErrItemNotFound)
		}
		if err := s.checkProfiles(ctx, companyID, req); err != nil {
			return err
		}

		eff, err := lifecycle.Apply(item, req, s.policy)
		if err != nil {
			return err
		}
		if err := s.stores.Items.Update(ctx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if err := s.applyEffects(ctx, item, req, eff); err != nil {
			return err
		}

		counters, status, err := recount(ctx, s.stores, reportID, s.weights)
		if err != nil {
			return fmt.Errorf("recount report: %w", err)
		}

		from, to := eff.From, eff.To
		entry := &models.AuditLog{
			CompanyID:  companyID,
			ActorID:    req.Actor,
			Action:     lifecycle.AuditAction(req.Action),
			ReportID:   &reportID,
			ItemID:     &item.ID,
			FromStatus: &from,
			ToStatus:   &to,
			Details:    auditDetails(item, req),
		}
		if err := s.stores.Audit.Log(ctx, entry); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		res = models.TransitionResult{Item: *item, Report: counters, ReportID: reportID, Status: status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("company_id", companyID.String()).
		Str("item_id", itemID.String()).
		Str("action", string(req.Action)).
		Str("status", string(res.Item.Status)).
		Str("report_status", string(res.Status)).
		Msg("item transitioned")
	return &res, nil
}

// checkProfiles makes sure a delegation assignee or escalation target is a profile
// of the item's company.
func (s *ItemService) checkProfiles(ctx context.Context, companyID uuid.UUID, req lifecycle.Request) error {
	var id *uuid.UUID
	switch req.Action {
	case lifecycle.ActionDelegate:
		id = req.Assignee
	case lifecycle.ActionEscalate:
		id = req.Target
	}
	if id == nil {
		return nil
	}
	if _, err := s.stores.Users.GetProfile(ctx, companyID, *id); err != nil {
		return translate(err, ErrProfileNotFound)
	}
	return nil
}

func (s *ItemService) applyEffects(ctx context.Context, item *models.Item, req lifecycle.Request, eff lifecycle.Effects) error {
	if eff.CancelReminders {
		if _, err := s.stores.Reminders.CancelPending(ctx, item.ID, req.At); err != nil {
			return fmt.Errorf("cancel reminders: %w", err)
		}
	}
	if eff.ScheduleDueSoon != nil && item.DelegatedTo != nil {
		rm := &models.Reminder{
			ItemID:       item.ID,
			CompanyID:    item.CompanyID,
			Type:         models.ReminderDueSoon,
			ScheduledFor: *eff.ScheduleDueSoon,
			Recipient:    *item.DelegatedTo,
			Message:      dueSoonMessage(*item),
		}
		if _, err := s.stores.Reminders.Create(ctx, rm); err != nil {
			return fmt.Errorf("schedule reminder: %w", err)
		}
	}
	if eff.NotifyEscalation && item.EscalatedTo != nil {
		rm := &models.Reminder{
			ItemID:       item.ID,
			CompanyID:    item.CompanyID,
			Type:         models.ReminderEscalation,
			ScheduledFor: req.At,
			Recipient:    *item.EscalatedTo,
			Message:      escalationMessage(*item),
		}
		if _, err := s.stores.Reminders.Create(ctx, rm); err != nil {
			return fmt.Errorf("queue escalation notice: %w", err)
		}
	}
	return nil
}

func dueSoonMessage(item models.Item) string {
	due := "soon"
	if item.DueDate != nil {
		due = "on " + item.DueDate.UTC().Format("2 Jan 2006 15:04 MST")
	}
	return fmt.Sprintf("Reminder: %q (%s) is due %s.", item.Title, item.Severity, due)
}

func escalationMessage(item models.Item) string {
	reason := ""
	if item.EscalationReason != nil {
		reason = *item.EscalationReason
	}
	return fmt.Sprintf("Escalated to you: %q (%s). Reason: %s", item.Title, item.Severity, reason)
}

func auditDetails(item *models.Item, req lifecycle.Request) map[string]any {
	d := map[string]any{"severity": item.Severity, "module": item.Module}
	switch req.Action {
	case lifecycle.ActionFix, lifecycle.ActionAIFix:
		d["value"] = item.CurrentValue.String()
		if req.Confidence != nil {
			d["confidence"] = *req.Confidence
		}
	case lifecycle.ActionDelegate:
		d["assignee"] = req.Assignee.String()
		d["message"] = req.Message
		if req.DueDate != nil {
			d["due_date"] = req.DueDate.UTC().Format(time.RFC3339)
		}
	case lifecycle.ActionEscalate:
		d["target"] = req.Target.String()
		d["reason"] = req.Reason
	}
	return d
}
