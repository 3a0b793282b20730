package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/core/lms"
	logsvc "github.com/trezcool/masomo-lms/services/logger"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub(logsvc.NewDiscardLogger())

	tab1, unsub1 := hub.Subscribe(1)
	tab2, unsub2 := hub.Subscribe(1)
	other, unsubOther := hub.Subscribe(2)
	defer unsubOther()
	assert.Equal(t, 2, hub.Subscribers(1))

	hub.Publish(lms.Notification{ID: 7, UserID: 1, Title: "Graded"})

	for _, ch := range []<-chan lms.Notification{tab1, tab2} {
		select {
		case n := <-ch:
			assert.Equal(t, 7, n.ID)
		default:
			t.Fatal("notification not delivered")
		}
	}
	select {
	case n := <-other:
		t.Fatalf("notification of user 1 delivered to user 2: %+v", n)
	default:
	}

	unsub1()
	unsub1() // no-op
	unsub2()
	assert.Equal(t, 0, hub.Subscribers(1))

	// nobody listening
	hub.Publish(lms.Notification{ID: 8, UserID: 1})
}

func TestHub_PublishDoesNotBlock(t *testing.T) {
	hub := NewHub(logsvc.NewDiscardLogger())
	_, unsub := hub.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize*2; i++ {
			hub.Publish(lms.Notification{ID: i, UserID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow receiver")
	}
}

func TestHub_Serve(t *testing.T) {
	hub := NewHub(logsvc.NewDiscardLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 1)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(1) == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(lms.Notification{ID: 3, UserID: 1, Type: lms.NotificationGrade, Title: "Assignment graded"})

	var got lms.Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 3, got.ID)
	assert.Equal(t, lms.NotificationGrade, got.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(1) == 0 }, time.Second, 10*time.Millisecond)
}
