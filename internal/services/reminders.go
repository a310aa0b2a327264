package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bruce-k901/My-App-sub010/internal/lifecycle"
	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/Bruce-k901/My-App-sub010/internal/notify"
)

// SchedulerOptions tunes the reminder scheduler.
type SchedulerOptions struct {
	Lead        time.Duration // due_soon reminders fire this long before the due date
	Grace       time.Duration // delegated items escalate this long after the due date
	Batch       int
	MaxAttempts int
}

// PassResult counts what one scheduler pass did.
type PassResult struct {
	Scheduled int      `json:"reminders_scheduled"`
	Sent      int      `json:"reminders_sent"`
	Failed    int      `json:"reminders_failed"`
	Escalated int      `json:"items_escalated"`
	Errors    []string `json:"errors"`
}

// Scheduler delivers due reminders and escalates overdue delegated items.
//
// A pass is idempotent: running it twice at the same instant schedules, sends and
// escalates nothing the second time. Passes in one process are serialized; passes in
// separate processes are kept apart by the pending-reminder unique index and row locks.
type Scheduler struct {
	stores   Stores
	items    *ItemService
	notifier notify.Notifier
	opts     SchedulerOptions
	log      zerolog.Logger
	now      func() time.Time
	mu       sync.Mutex
}

func NewScheduler(st Stores, items *ItemService, n notify.Notifier, opts SchedulerOptions, log zerolog.Logger) *Scheduler {
	if opts.Batch <= 0 {
		opts.Batch = 200
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Scheduler{
		stores:   st,
		items:    items,
		notifier: n,
		opts:     opts,
		log:      log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
}

// Run executes a pass every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("reminder scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			res, err := s.Pass(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("scheduler pass failed")
				continue
			}
			if res.Sent+res.Failed+res.Escalated+res.Scheduled > 0 {
				s.log.Info().Int("scheduled", res.Scheduled).Int("sent", res.Sent).
					Int("failed", res.Failed).Int("escalated", res.Escalated).Msg("scheduler pass")
			}
		}
	}
}

// Pass runs one scheduler pass at the current time:
//  1. makes sure every delegated item with a due date has its due_soon reminder
//  2. escalates delegated items past due date plus grace to their delegator
//  3. delivers every pending reminder that is due
//
// Failures on single items or reminders are collected in PassResult.Errors; the
// returned error is reserved for failures that stop the whole pass.
func (s *Scheduler) Pass(ctx context.Context) (*PassResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	res := &PassResult{Errors: []string{}}

	if err := s.ensureReminders(ctx, now, res); err != nil {
		return res, err
	}
	if err := s.escalateOverdue(ctx, now, res); err != nil {
		return res, err
	}
	if err := s.deliverDue(ctx, now, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Scheduler) ensureReminders(ctx context.Context, now time.Time, res *PassResult) error {
	items, err := s.stores.Items.ListAwaitingReminder(ctx, now.Add(-s.opts.Grace), s.opts.Batch)
	if err != nil {
		return fmt.Errorf("list items awaiting reminders: %w", err)
	}
	for _, item := range items {
		if item.DelegatedTo == nil || item.DueDate == nil || lifecycle.Overdue(item, now, s.opts.Grace) {
			continue
		}
		delegatedAt := item.UpdatedAt
		if item.DelegatedAt != nil {
			delegatedAt = *item.DelegatedAt
		}
		rm := &models.Reminder{
			ItemID:       item.ID,
			CompanyID:    item.CompanyID,
			Type:         models.ReminderDueSoon,
			ScheduledFor: lifecycle.ReminderTime(delegatedAt, *item.DueDate, s.opts.Lead),
			Recipient:    *item.DelegatedTo,
			Message:      dueSoonMessage(item),
		}
		created, err := s.stores.Reminders.Create(ctx, rm)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("item %s: schedule reminder: %v", item.ID, err))
			continue
		}
		if created {
			res.Scheduled++
		}
	}
	return nil
}

func (s *Scheduler) escalateOverdue(ctx context.Context, now time.Time, res *PassResult) error {
	items, err := s.stores.Items.ListDelegated(ctx, now.Add(-s.opts.Grace), s.opts.Batch)
	if err != nil {
		return fmt.Errorf("list overdue items: %w", err)
	}
	for _, item := range items {
		if !lifecycle.Overdue(item, now, s.opts.Grace) {
			continue
		}
		if item.DelegatedBy == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("item %s: overdue but has no delegator to escalate to", item.ID))
			continue
		}
		_, err := s.items.escalate(ctx, item.CompanyID, item.ID, nil, *item.DelegatedBy, lifecycle.ExhaustedReason, now)
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			// Moved on since it was listed.
			continue
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("item %s: escalate: %v", item.ID, err))
			continue
		}
		res.Escalated++
		s.log.Info().Str("item_id", item.ID.String()).Str("escalated_to", item.DelegatedBy.String()).Msg("overdue item escalated")
	}
	return nil
}

// deliverDue sends due reminders, each claimed, notified and marked in its own
// transaction. A store error on one reminder leaves the others committed.
func (s *Scheduler) deliverDue(ctx context.Context, now time.Time, res *PassResult) error {
	due, err := s.stores.Reminders.ListDue(ctx, now, s.opts.MaxAttempts, s.opts.Batch)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	for _, rm := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var outcome deliveryOutcome
		err := s.stores.WithTx(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = s.deliver(ctx, rm, now)
			return err
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("reminder %s: %v", rm.ID, err))
			s.log.Error().Err(err).Str("reminder_id", rm.ID.String()).Msg("reminder delivery rolled back")
			continue
		}
		switch outcome {
		case deliverySent:
			res.Sent++
		case deliveryFailed:
			res.Failed++
		}
	}
	return nil
}

type deliveryOutcome int

const (
	deliverySkipped deliveryOutcome = iota
	deliverySent
	deliveryFailed
)

func (s *Scheduler) deliver(ctx context.Context, rm models.Reminder, now time.Time) (deliveryOutcome, error) {
	claimed, err := s.stores.Reminders.Claim(ctx, rm.ID, s.opts.MaxAttempts)
	if err != nil {
		return deliverySkipped, fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		return deliverySkipped, nil
	}

	delivered, err := s.notifier.Notify(ctx, notify.Message{
		ReminderID: rm.ID,
		CompanyID:  rm.CompanyID,
		ItemID:     rm.ItemID,
		Recipient:  rm.Recipient,
		Type:       rm.Type,
		Text:       rm.Message,
	})
	if err != nil || !delivered {
		reason := "not delivered"
		if err != nil {
			reason = err.Error()
		}
		if err := s.stores.Reminders.MarkFailed(ctx, rm.ID, reason); err != nil {
			return deliverySkipped, fmt.Errorf("mark failed: %w", err)
		}
		s.log.Warn().Str("reminder_id", rm.ID.String()).Int("attempts", rm.Attempts+1).
			Str("reason", reason).Msg("reminder delivery failed")
		return deliveryFailed, nil
	}

	marked, err := s.stores.Reminders.MarkSent(ctx, rm.ID, now)
	if err != nil {
		return deliverySkipped, fmt.Errorf("mark sent: %w", err)
	}
	if !marked {
		return deliverySkipped, nil
	}
	if err := s.stores.Items.RecordReminderSent(ctx, rm.ItemID, now); err != nil {
		return deliverySkipped, fmt.Errorf("record reminder on item %s: %w", rm.ItemID, err)
	}
	return deliverySent, nil
}
