package worker

// scheduler.go
// Periodic housekeeping driven by robfig/cron:
//   - unreconciled-session reminders to admins
//   - open-session timeout alerts to collectors
//   - nightly audit-chain verification
//   - completion sweep for paid payments left without an artifact
// Each tick takes a Redis lock so only one instance runs it.

import (
	"context"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	taskReminders   = "unreconciled_reminder"
	taskTimeouts    = "session_timeout"
	taskAuditVerify = "audit_verify"
	taskCompletion  = "payment_completion"

	timeoutAlertSpec = "0 * * * *"
	taskLockTTL      = 10 * time.Minute

	// completionGrace leaves in-flight post-commit calls alone.
	completionGrace = 2 * time.Minute
	completionBatch = 200
)

// SchedulerConfig holds all dependencies of the scheduler.
type SchedulerConfig struct {
	Reconciliation service.ReconciliationService
	Sessions       service.CashSessionService
	Audit          service.AuditService
	Completion     service.PaymentSuccessService
	Users          repository.UserRepository
	Notifier       service.NotificationDispatcher
	Locker         Locker // nil runs every tick locally

	ReminderSpec        string
	AuditVerifySpec     string
	CompletionSpec      string
	UnreconciledMaxDays int
}

type Scheduler struct {
	cfg  SchedulerConfig
	cron *cron.Cron
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{cfg: cfg, cron: cron.New()}
}

// Start registers the tasks and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	completionSpec := s.cfg.CompletionSpec
	if s.cfg.Completion == nil {
		completionSpec = ""
	}
	tasks := []struct {
		name, spec string
		fn         func(context.Context) error
	}{
		{taskReminders, s.cfg.ReminderSpec, s.RemindUnreconciled},
		{taskTimeouts, timeoutAlertSpec, s.AlertTimedOutSessions},
		{taskAuditVerify, s.cfg.AuditVerifySpec, s.VerifyAuditChain},
		{taskCompletion, completionSpec, s.ResumeIncompletePayments},
	}

	for _, t := range tasks {
		if t.spec == "" {
			continue
		}
		t := t
		if _, err := s.cron.AddFunc(t.spec, func() { s.runLocked(ctx, t.name, t.fn) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	log.Info().Msg("scheduler: started")
	return nil
}

// Stop waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler: stopped")
}

func (s *Scheduler) runLocked(ctx context.Context, name string, fn func(context.Context) error) {
	if s.cfg.Locker != nil {
		release, ok, err := s.cfg.Locker.Acquire(ctx, "cron:"+name, taskLockTTL)
		if err != nil {
			log.Warn().Err(err).Str("task", name).Msg("scheduler: lock failed")
			metrics.SchedulerRunsTotal.WithLabelValues(name, "lock_error").Inc()
			return
		}
		if !ok {
			log.Debug().Str("task", name).Msg("scheduler: another instance holds the lock")
			return
		}
		defer release()
	}
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("task", name).Msg("scheduler: task failed")
		metrics.SchedulerRunsTotal.WithLabelValues(name, "error").Inc()
		return
	}
	metrics.SchedulerRunsTotal.WithLabelValues(name, "ok").Inc()
}

// RemindUnreconciled tells every admin how many closed sessions wait for
// reconciliation.
func (s *Scheduler) RemindUnreconciled(ctx context.Context) error {
	var maxAge *int
	if s.cfg.UnreconciledMaxDays > 0 {
		days := s.cfg.UnreconciledMaxDays
		maxAge = &days
	}
	sessions, err := s.cfg.Reconciliation.GetUnreconciledSessions(ctx, maxAge)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}
	oldest := sessions[0].OpenedAt
	for _, cs := range sessions[1:] {
		if cs.OpenedAt.Before(oldest) {
			oldest = cs.OpenedAt
		}
	}
	return s.notifyRole(ctx, model.RoleAdmin, service.NotifyUnreconciledReminder, map[string]any{
		"session_count": len(sessions),
		"oldest_opened": oldest.UTC().Format(time.RFC3339),
	})
}

// AlertTimedOutSessions warns collectors whose session exceeded the timeout.
func (s *Scheduler) AlertTimedOutSessions(ctx context.Context) error {
	sessions, err := s.cfg.Sessions.ListTimedOutSessions(ctx)
	if err != nil {
		return err
	}
	for _, cs := range sessions {
		if err := s.cfg.Notifier.Notify(ctx, cs.CollectorID, service.NotifySessionTimeout, map[string]any{
			"session_id": cs.ID.String(),
			"opened_at":  cs.OpenedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			log.Warn().Err(err).Str("session_id", cs.ID.String()).Msg("scheduler: timeout alert failed")
		}
	}
	return nil
}

// VerifyAuditChain recomputes the whole chain and publishes the result on
// the audit_chain_valid gauge.
func (s *Scheduler) VerifyAuditChain(ctx context.Context) error {
	result, err := s.cfg.Audit.VerifyAuditTrail(ctx, nil, nil)
	if err != nil {
		return err
	}
	if result.Valid {
		metrics.AuditChainValid.Set(1)
		log.Info().Int("issues", 0).Msg("scheduler: audit chain verified")
		return nil
	}

	metrics.AuditChainValid.Set(0)
	log.Error().Int("issues", len(result.Issues)).Msg("scheduler: AUDIT CHAIN BROKEN")
	data := map[string]any{"issue_count": len(result.Issues)}
	if len(result.Issues) > 0 {
		data["first_sequence"] = result.Issues[0].Sequence
		data["first_issue"] = result.Issues[0].Kind
	}
	return s.notifyRole(ctx, model.RoleAdmin, service.NotifyAuditChainBroken, data)
}

// ResumeIncompletePayments issues the missing artifact of every payment
// that was committed as paid but whose success step failed.
func (s *Scheduler) ResumeIncompletePayments(ctx context.Context) error {
	_, err := s.cfg.Completion.ResumeIncomplete(ctx, completionGrace, completionBatch)
	return err
}

func (s *Scheduler) notifyRole(ctx context.Context, role, kind string, data map[string]any) error {
	users, err := s.cfg.Users.ListByRole(ctx, role)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := s.cfg.Notifier.Notify(ctx, u.ID, kind, data); err != nil {
			log.Warn().Err(err).Str("user_id", u.ID.String()).Str("kind", kind).Msg("scheduler: notify failed")
		}
	}
	return nil
}
