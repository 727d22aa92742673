package worker

// notification_worker.go
// Processes notification jobs from QueueNotification: looks up the user and
// emails a short message for the notification kind.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	"github.com/rs/zerolog/log"
)

// Mailer sends one email; attachmentPath may be empty.
type Mailer interface {
	Send(to, subject, body, attachmentPath string) error
}

// NotificationWorker turns notification jobs into emails.
type NotificationWorker struct {
	users  repository.UserRepository
	mailer Mailer
}

func NewNotificationWorker(users repository.UserRepository, mailer Mailer) *NotificationWorker {
	return &NotificationWorker{users: users, mailer: mailer}
}

var notificationSubjects = map[string]string{
	service.NotifyPaymentConfirmed:     "Vehicle tax payment confirmed",
	service.NotifyApprovalRequired:     "Cash payment awaiting your approval",
	service.NotifySessionDiscrepancy:   "Cash session closed with a discrepancy",
	service.NotifyTransactionVoided:    "Cash transaction voided",
	service.NotifyUnreconciledReminder: "Cash sessions awaiting reconciliation",
	service.NotifySessionTimeout:       "Your cash session is still open",
	service.NotifyAuditChainBroken:     "ALERT: cash audit chain verification failed",
}

// Process returns nil for jobs that can never succeed (unknown user, no
// email) so they are not retried.
func (w *NotificationWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job NotificationJob
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Msg("notification_worker: invalid payload")
		return nil
	}

	user, err := w.users.FindByID(ctx, job.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("user_id", job.UserID.String()).Str("kind", job.Kind).Msg("notification_worker: unknown user, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if user.Email == nil || *user.Email == "" {
		log.Debug().Str("user_id", job.UserID.String()).Msg("notification_worker: user has no email, skipping")
		return nil
	}

	subject, body := renderNotification(job)
	if err := w.mailer.Send(*user.Email, subject, body, ""); err != nil {
		metrics.NotificationFailuresTotal.WithLabelValues(job.Kind).Inc()
		return fmt.Errorf("notification_worker: send %s: %w", job.Kind, err)
	}
	log.Info().Str("user_id", job.UserID.String()).Str("kind", job.Kind).Msg("notification_worker: sent")
	return nil
}

// renderNotification builds a plain-text email. Data keys are listed in
// sorted order so messages are stable.
func renderNotification(job NotificationJob) (string, string) {
	subject, ok := notificationSubjects[job.Kind]
	if !ok {
		subject = "Notification: " + job.Kind
	}
	keys := make([]string, 0, len(job.Data))
	for k := range job.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(subject)
	b.WriteString("\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", strings.ReplaceAll(k, "_", " "), job.Data[k])
	}
	return subject, b.String()
}
