package notify

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestHubBroadcast(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Clients() == 1 },
		2*time.Second, 10*time.Millisecond)

	result := scan.NewResult("sheet.jpg")
	result.Status = scan.StatusProcessing
	hub.Publish(StatusEvent(result))

	event := readEvent(t, conn)
	assert.Equal(t, result.ID, event.ScanID)
	assert.Equal(t, scan.StatusProcessing, event.Status)
	assert.False(t, event.Time.IsZero())
}

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub, url := newTestHub(t)
	first := dial(t, url)
	second := dial(t, url)

	require.Eventually(t, func() bool { return hub.Clients() == 2 },
		2*time.Second, 10*time.Millisecond)

	result := scan.NewResult("sheet.jpg")
	result.Status = scan.StatusCompleted
	hub.Publish(StatusEvent(result))

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, result.ID, event.ScanID)
		assert.Equal(t, scan.StatusCompleted, event.Status)
	}
}

func TestHubDeliversEventsInOrder(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Clients() == 1 },
		2*time.Second, 10*time.Millisecond)

	result := scan.NewResult("sheet.jpg")
	sequence := []scan.Status{scan.StatusQueued, scan.StatusProcessing, scan.StatusNeedsReview}
	for _, status := range sequence {
		result.Status = status
		hub.Publish(StatusEvent(result))
	}

	for _, want := range sequence {
		event := readEvent(t, conn)
		assert.Equal(t, want, event.Status)
		assert.Equal(t, result.ID, event.ScanID)
	}
}

func TestHubRemovesDisconnectedSubscriber(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.Clients() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.Clients() == 0 },
		2*time.Second, 10*time.Millisecond)

	// Publishing to an empty hub must not block or panic.
	hub.Publish(StatusEvent(scan.NewResult("sheet.jpg")))
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Publish(StatusEvent(scan.NewResult("sheet.jpg")))
	assert.Equal(t, 0, hub.Clients())
}

func TestNopPublish(t *testing.T) {
	var n Notifier = Nop{}
	n.Publish(StatusEvent(scan.NewResult("sheet.jpg")))
}

func TestStatusEvent(t *testing.T) {
	result := scan.NewResult("sheet.jpg")
	result.Status = scan.StatusError

	event := StatusEvent(result)
	assert.Equal(t, result.ID, event.ScanID)
	assert.Equal(t, scan.StatusError, event.Status)
	assert.Nil(t, event.Payload)
	assert.WithinDuration(t, time.Now().UTC(), event.Time, time.Minute)
}
