package lms

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/auth"
)

// notify stores the notification and pushes it to the recipient.
// Failures are logged: the action that triggered the notification already happened.
func (svc *Service) notify(ctx context.Context, n Notification) {
	n.CreatedAt = svc.nowFunc()
	stored, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("storing notification: %v", err), err, map[string]interface{}{
			"user_id": n.UserID,
			"type":    n.Type,
		})
		return
	}
	if svc.notifier != nil {
		svc.notifier.Publish(stored)
	}
}

func (svc *Service) Notifications(ctx context.Context, ident auth.Identity, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, ident.ID, unreadOnly)
}

// MarkNotificationRead marks one of the user's notifications as read.
func (svc *Service) MarkNotificationRead(ctx context.Context, ident auth.Identity, id int) (Notification, error) {
	n, err := svc.repo.MarkNotificationRead(ctx, id, ident.ID)
	if err != nil {
		return Notification{}, notFound(err, KindNotification, id)
	}
	return n, nil
}

// SendPendingReminders reminds every teacher with ungraded submissions how many are waiting.
// It returns the number of teachers reminded.
func (svc *Service) SendPendingReminders(ctx context.Context) (int, error) {
	counts, err := svc.repo.CountPendingSubmissions(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "counting pending submissions")
	}

	var sent int
	for _, pc := range counts {
		if pc.Count == 0 {
			continue
		}
		if err = ctx.Err(); err != nil {
			return sent, err
		}
		svc.notify(ctx, Notification{
			UserID:  pc.TeacherUserID,
			Type:    NotificationReminder,
			Title:   "Submissions waiting for a grade",
			Message: fmt.Sprintf("You have %d submission(s) to grade.", pc.Count),
		})
		sent++
	}
	return sent, nil
}
