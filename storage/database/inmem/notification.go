package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-lms/core/lms"
)

func (repo *lmsRepository) CreateNotification(_ context.Context, n lms.Notification) (lms.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n.ID = repo.db.nextID("notifications")
	repo.db.notifications[n.ID] = n
	return n, nil
}

func (repo *lmsRepository) GetNotification(_ context.Context, id, userID int) (lms.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if n, ok := repo.db.notifications[id]; ok && n.UserID == userID {
		return n, nil
	}
	return lms.Notification{}, lms.ErrNotFound
}

func (repo *lmsRepository) MarkNotificationRead(_ context.Context, id, userID int) (lms.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.notifications[id]
	if !ok || n.UserID != userID {
		return lms.Notification{}, lms.ErrNotFound
	}
	n.IsRead = true
	repo.db.notifications[id] = n
	return n, nil
}

func (repo *lmsRepository) QueryNotifications(_ context.Context, userID int, unreadOnly bool) ([]lms.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifs := make([]lms.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			notifs = append(notifs, n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].ID > notifs[j].ID })
	return notifs, nil
}
