package push

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parkease/internal/model"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestPublishOnlyToOwner(t *testing.T) {
	h := NewHub(quiet())
	a1, a2, b := NewClient(1, nil), NewClient(1, nil), NewClient(2, nil)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)

	assert.Equal(t, 2, h.Publish(1, Message{Topic: TopicNotifications, Body: "hi"}))
	assert.Len(t, drain(a1), 1)
	assert.Len(t, drain(a2), 1)
	assert.Empty(t, drain(b))

	assert.Zero(t, h.Publish(99, Message{Topic: TopicNotifications}), "offline user")
}

func TestStaleSnapshotDropped(t *testing.T) {
	h := NewHub(quiet())
	c := NewClient(1, nil)
	h.Register(c)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	v2 := model.Booking{ID: 5, UserID: 1, Status: model.BookingActiveParking, Version: 2, UpdatedAt: t0.Add(time.Minute)}
	v1 := model.Booking{ID: 5, UserID: 1, Status: model.BookingReserved, Version: 1, UpdatedAt: t0}
	v3 := model.Booking{ID: 5, UserID: 1, Status: model.BookingCompleted, Version: 3, UpdatedAt: t0.Add(time.Hour)}

	h.BookingChanged(ctx, v2)
	h.BookingChanged(ctx, v1)
	h.BookingChanged(ctx, v2)
	h.BookingChanged(ctx, v3)

	got := drain(c)
	require.Len(t, got, 2)
	assert.Equal(t, model.BookingActiveParking, got[0].Booking.Status)
	assert.Equal(t, model.BookingCompleted, got[1].Booking.Status)
	assert.Equal(t, TopicBookingUpdates, got[1].Topic)
}

func TestConcurrentSnapshotsDeliveredInOrder(t *testing.T) {
	h := NewHub(quiet())
	c := NewClient(1, nil)
	h.Register(c)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for v := uint64(1); v <= sendBuffer; v++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			h.BookingChanged(context.Background(), model.Booking{ID: 5, UserID: 1, Status: model.BookingReserved, Version: v, UpdatedAt: t0.Add(time.Duration(v) * time.Second)})
		}(v)
	}
	wg.Wait()

	got := drain(c)
	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Booking.Version, got[i-1].Booking.Version, "delivery %d went backwards", i)
	}
}

func TestSlowSessionDisconnected(t *testing.T) {
	h := NewHub(quiet())
	c := NewClient(1, nil)
	h.Register(c)
	for i := 0; i < sendBuffer; i++ {
		h.Notify(context.Background(), 1, "x")
	}
	assert.Equal(t, 1, h.Sessions(1))
	h.Notify(context.Background(), 1, "overflow")
	assert.Zero(t, h.Sessions(1))

	got := drain(c)
	assert.Len(t, got, sendBuffer)
	h.Unregister(c)
}

func TestWebsocketDelivery(t *testing.T) {
	h := NewHub(quiet())
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(7, conn).Serve(h, quiet())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Sessions(7) == 1 }, time.Second, 10*time.Millisecond)
	h.Notify(context.Background(), 7, "Reservation Cancelled")

	var msg Message
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TopicNotifications, msg.Topic)
	assert.Equal(t, "Reservation Cancelled", msg.Body)

	conn.Close()
	require.Eventually(t, func() bool { return h.Sessions(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}
