package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/lms"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	bufferSize = 16
)

// Hub pushes notifications to the websocket connections of their recipients.
// A user may hold several connections (one per open tab).
type Hub struct {
	mu       sync.RWMutex
	subs     map[int]map[chan lms.Notification]struct{} // {userID: {ch}}
	upgrader websocket.Upgrader
	logger   core.Logger
}

var _ lms.Notifier = (*Hub)(nil)

func NewHub(logger core.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		subs:   make(map[int]map[chan lms.Notification]struct{}),
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return h
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil // same origin only
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// Subscribe registers a new receiver of the user's notifications. unsubscribe must be called once done.
func (h *Hub) Subscribe(userID int) (notifs <-chan lms.Notification, unsubscribe func()) {
	ch := make(chan lms.Notification, bufferSize)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan lms.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
		})
	}
}

// Publish hands the notification to every receiver of its recipient without blocking.
// Slow receivers miss it; the notification stays listed by the API.
func (h *Hub) Publish(n lms.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribers returns the number of receivers of the user's notifications.
func (h *Hub) Subscribers(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Serve upgrades the request to a websocket and streams the user's notifications on it as JSON
// until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection") // the upgrader already replied
	}
	defer conn.Close()

	notifs, unsubscribe := h.Subscribe(userID)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			// clients only send control frames
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-r.Context().Done():
			return nil
		case n := <-notifs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteJSON(n); err != nil {
				h.logger.Debug("writing notification", err)
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
