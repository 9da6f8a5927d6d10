package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

type sseEvent struct {
	name string
	data string
}

func TestReadEvents(t *testing.T) {
	body := strings.Join([]string{
		": comment",
		"event:ready",
		`data:{"page_id":"p1"}`,
		"",
		"event: notification",
		"data: line one",
		"data: line two",
		"",
		"data: unnamed",
		"",
		"event:ping",
		"data:17",
	}, "\n")

	var got []sseEvent
	err := readEvents(strings.NewReader(body), func(name, data string) {
		got = append(got, sseEvent{name, data})
	})

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []sseEvent{
		{"ready", `{"page_id":"p1"}`},
		{"notification", "line one\nline two"},
		{"message", "unnamed"},
		{"ping", "17"},
	}, got)
}

func TestReadEvents_EventWithoutDataIsSkipped(t *testing.T) {
	var got []sseEvent
	_ = readEvents(strings.NewReader("event:ready\n\n"), func(name, data string) {
		got = append(got, sseEvent{name, data})
	})
	assert.Empty(t, got)
}

func sseServer(t *testing.T, token string, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(domain.TokenKey)
		if err != nil || c.Value != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/api/notifications/stream", r.URL.Path)
		assert.Equal(t, "visible", r.URL.Query().Get("visibility"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event:ready\ndata:{\"page_id\":\"p1\"}\n\n")
		for _, ev := range events {
			fmt.Fprint(w, ev)
		}
		w.(http.Flusher).Flush()
	}))
}

func notificationEvent(msgType, title, id string) string {
	return fmt.Sprintf("event:notification\ndata:{\"type\":%q,\"payload\":{\"notification\":{\"title\":%q,\"body\":\"b\"},\"data\":{\"message_id\":%q}}}\n\n", msgType, title, id)
}

func TestGatewayStream_DeliversRelayedNotifications(t *testing.T) {
	srv := sseServer(t, "T",
		notificationEvent(domain.MessageTypeNotificationReceived, "first", "m1"),
		"event:notification\ndata:{not json\n\n",
		notificationEvent("SOMETHING_ELSE", "ignored", "m2"),
		"event:ping\ndata:1\n\n",
		notificationEvent(domain.MessageTypeNotificationReceived, "second", "m3"),
	)
	defer srv.Close()

	stream, err := newGatewayStream(srv.URL, "T")
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		got []string
	)
	stop, err := stream.Subscribe(context.Background(), func(p domain.PushPayload) {
		mu.Lock()
		got = append(got, p.Notification.Title)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, got)
	assert.ErrorIs(t, stream.Err(), io.ErrUnexpectedEOF)
}

func TestGatewayStream_RejectedSession(t *testing.T) {
	srv := sseServer(t, "T")
	defer srv.Close()

	stream, err := newGatewayStream(srv.URL, "expired")
	require.NoError(t, err)

	_, err = stream.Subscribe(context.Background(), func(domain.PushPayload) {})
	assert.ErrorIs(t, err, errSessionRejected)
}

func TestGatewayStream_StopIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	stream, err := newGatewayStream(srv.URL, "T")
	require.NoError(t, err)

	stop, err := stream.Subscribe(context.Background(), func(domain.PushPayload) {})
	require.NoError(t, err)
	stop()

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after stop")
	}
	assert.NoError(t, stream.Err())
}

func TestGatewayStream_TokenUnsupported(t *testing.T) {
	stream, err := newGatewayStream("http://localhost:8080/", "T")
	require.NoError(t, err)

	_, err = stream.Token(context.Background(), "key")
	assert.ErrorIs(t, err, errNoPushToken)

	_, err = newGatewayStream("localhost", "T")
	assert.Error(t, err)
}
