package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

type recordingToaster struct {
	toasts []domain.PushNotification
	err    error
}

func (t *recordingToaster) Toast(_ context.Context, n domain.PushNotification) error {
	if t.err != nil {
		return t.err
	}
	t.toasts = append(t.toasts, n)
	return nil
}

func relay(p domain.PushPayload) domain.ClientMessage {
	return domain.ClientMessage{Type: domain.MessageTypeNotificationReceived, Payload: p}
}

func TestPresentationRouter_VisibleToastsOnce(t *testing.T) {
	toaster := &recordingToaster{}
	r := NewPresentationRouter(toaster, VisibilityFunc(func() bool { return true }), 0)

	assert.True(t, r.HandleMessage(context.Background(), relay(payload("m1", "Hello"))))

	assert.Len(t, toaster.toasts, 1)
	assert.Equal(t, "Hello", toaster.toasts[0].Title)
}

func TestPresentationRouter_HiddenDoesNothing(t *testing.T) {
	toaster := &recordingToaster{}
	r := NewPresentationRouter(toaster, VisibilityFunc(func() bool { return false }), 0)

	assert.False(t, r.HandleMessage(context.Background(), relay(payload("m1", "Hello"))))
	assert.Empty(t, toaster.toasts)
}

func TestPresentationRouter_IgnoresOtherMessageTypes(t *testing.T) {
	toaster := &recordingToaster{}
	r := NewPresentationRouter(toaster, VisibilityFunc(func() bool { return true }), 0)

	assert.False(t, r.HandleMessage(context.Background(), domain.ClientMessage{Type: "SKIP_WAITING"}))
	assert.Empty(t, toaster.toasts)
}

func TestPresentationRouter_DedupesAcrossPaths(t *testing.T) {
	toaster := &recordingToaster{}
	r := NewPresentationRouter(toaster, VisibilityFunc(func() bool { return true }), 2)
	ctx := context.Background()

	assert.True(t, r.Present(ctx, payload("m1", "a")))
	assert.False(t, r.HandleMessage(ctx, relay(payload("m1", "a"))))

	// Without an id there is nothing to compare.
	assert.True(t, r.Present(ctx, payload("", "b")))
	assert.True(t, r.Present(ctx, payload("", "b")))

	// The set is bounded: m1 is evicted after two newer ids.
	assert.True(t, r.Present(ctx, payload("m2", "c")))
	assert.True(t, r.Present(ctx, payload("m3", "d")))
	assert.True(t, r.Present(ctx, payload("m1", "a")))

	assert.Len(t, toaster.toasts, 6)
}

func TestPresentationRouter_ToastFailure(t *testing.T) {
	r := NewPresentationRouter(&recordingToaster{err: errors.New("closed")}, VisibilityFunc(func() bool { return true }), 0)
	assert.False(t, r.Present(context.Background(), payload("m1", "a")))
}

type countingToaster struct{ n atomic.Int32 }

func (t *countingToaster) Toast(context.Context, domain.PushNotification) error {
	t.n.Add(1)
	return nil
}

func TestPresentationRouter_ConcurrentDuplicatesToastOnce(t *testing.T) {
	toaster := &countingToaster{}
	r := NewPresentationRouter(toaster, VisibilityFunc(func() bool { return true }), 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Present(context.Background(), payload("m1", "a"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), toaster.n.Load())
}

func TestPresentationRouter_RepeatedDuplicatesDoNotRefreshAge(t *testing.T) {
	toaster := &recordingToaster{}
	r := NewPresentationRouter(toaster, VisibilityFunc(func() bool { return true }), 2)
	ctx := context.Background()

	assert.True(t, r.Present(ctx, payload("m1", "a")))
	for i := 0; i < 3; i++ {
		assert.False(t, r.Present(ctx, payload("m1", "a")))
	}
	assert.True(t, r.Present(ctx, payload("m2", "b")))
	assert.True(t, r.Present(ctx, payload("m3", "c")))

	assert.True(t, r.Present(ctx, payload("m1", "a")), "m1 aged out in arrival order")
}
