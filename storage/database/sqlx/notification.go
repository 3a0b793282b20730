package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/lms"
)

const notificationColumns = "n.id, n.user_id, n.type, n.title, n.message, n.is_read, n.created_at"

type notificationRow struct {
	ID        int       `db:"id"`
	UserID    int       `db:"user_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) toNotification() lms.Notification {
	return lms.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      lms.NotificationType(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (repo *lmsRepository) CreateNotification(ctx context.Context, n lms.Notification) (lms.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO notifications AS n (user_id, type, title, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		n.UserID, n.Type, n.Title, n.Message, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return lms.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.toNotification(), nil
}

func (repo *lmsRepository) GetNotification(ctx context.Context, id, userID int) (lms.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+notificationColumns+" FROM notifications n WHERE n.id = $1 AND n.user_id = $2",
		id, userID,
	)
	if err != nil {
		return lms.Notification{}, trapNoRowsErr(err, lms.ErrNotFound, "getting notification")
	}
	return row.toNotification(), nil
}

func (repo *lmsRepository) MarkNotificationRead(ctx context.Context, id, userID int) (lms.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE notifications AS n SET is_read = TRUE
		WHERE n.id = $1 AND n.user_id = $2
		RETURNING `+notificationColumns,
		id, userID,
	)
	if err != nil {
		return lms.Notification{}, trapNoRowsErr(err, lms.ErrNotFound, "marking notification read")
	}
	return row.toNotification(), nil
}

func (repo *lmsRepository) QueryNotifications(ctx context.Context, userID int, unreadOnly bool) ([]lms.Notification, error) {
	q := "SELECT " + notificationColumns + " FROM notifications n WHERE n.user_id = $1"
	if unreadOnly {
		q += " AND NOT n.is_read"
	}
	q += " ORDER BY n.created_at DESC, n.id DESC"

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]lms.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.toNotification())
	}
	return notifs, nil
}
