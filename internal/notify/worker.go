package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

const (
	ActionOpen  = "open"
	ActionClose = "close"

	defaultTitle = "Syria Go"
)

// NativeNotifier shows an OS-level notification on the user's devices.
type NativeNotifier interface {
	Show(ctx context.Context, userID string, n domain.NativeNotification) error
}

// Client is an open console page.
type Client interface {
	ID() string
	URL() string
	Visible() bool
	Focus(ctx context.Context) error
	PostMessage(ctx context.Context, msg domain.ClientMessage) error
}

// Clients lists the open pages of a user.
type Clients interface {
	MatchAll(userID string) []Client
	OpenWindow(ctx context.Context, userID, url string) error
}

// ClickResult tells the caller what a notification click did.
type ClickResult struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

const (
	ClickIgnored = "none"
	ClickFocused = "focus"
	ClickOpened  = "open"
)

// WorkerOptions configures a ServiceWorker.
type WorkerOptions struct {
	Icon   string
	Buffer int
	Logger zerolog.Logger
}

// ServiceWorker is the background delivery context. It runs in its own
// goroutine, fed through Push, and shares nothing with page handlers except
// the Clients registry.
type ServiceWorker struct {
	notifier NativeNotifier
	clients  Clients
	icon     string
	events   chan domain.PushEvent
	done     chan struct{}
	logger   zerolog.Logger
}

// NewServiceWorker creates a worker. Call Run to start it.
func NewServiceWorker(notifier NativeNotifier, clients Clients, opts WorkerOptions) *ServiceWorker {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	return &ServiceWorker{
		notifier: notifier,
		clients:  clients,
		icon:     opts.Icon,
		events:   make(chan domain.PushEvent, opts.Buffer),
		done:     make(chan struct{}),
		logger:   opts.Logger.With().Str("component", "service_worker").Logger(),
	}
}

// Push queues a push event, blocking while the queue is full.
func (w *ServiceWorker) Push(ctx context.Context, ev domain.PushEvent) error {
	if ev.UserID == "" {
		return ErrMissingRecipient
	}
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.events <- ev:
		return nil
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles queued events until ctx is cancelled.
func (w *ServiceWorker) Run(ctx context.Context) error {
	defer close(w.done)
	w.logger.Info().Msg("Service worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Service worker stopped")
			return nil
		case ev := <-w.events:
			w.HandlePush(w.logger.WithContext(ctx), ev)
		}
	}
}

// HandlePush presents one event and relays it to every open page of the
// user. The native notification is shown only when no page is visible.
func (w *ServiceWorker) HandlePush(ctx context.Context, ev domain.PushEvent) domain.PresentationChannel {
	ctx, span := middleware.StartSpan(ctx, "notify.push", trace.WithAttributes(
		attribute.String("layer", "notify"),
		attribute.String("user.id", ev.UserID),
		attribute.String("message.id", ev.Payload.MessageID()),
	))
	defer span.End()

	clients := w.clients.MatchAll(ev.UserID)
	visible := false
	for _, c := range clients {
		if c.Visible() {
			visible = true
			break
		}
	}

	channel := Decide(visible)
	span.SetAttributes(attribute.String("notify.channel", string(channel)))

	if channel == domain.ChannelNative {
		n := BuildNotification(ev.Payload, w.icon)
		if err := w.notifier.Show(ctx, ev.UserID, n); err != nil {
			span.RecordError(err)
			w.logger.Error().Err(err).Str("user_id", ev.UserID).Msg("Native notification failed")
		} else {
			middleware.NotificationPresentations.WithLabelValues(string(domain.ChannelNative)).Inc()
		}
	}

	msg := domain.ClientMessage{Type: domain.MessageTypeNotificationReceived, Payload: ev.Payload}
	for _, c := range clients {
		if err := c.PostMessage(ctx, msg); err != nil {
			w.logger.Warn().Err(err).Str("client_id", c.ID()).Msg("Relay to page failed")
		}
	}

	return channel
}

// HandleClick reacts to a click on a native notification. The close action
// does nothing; anything else focuses an open dashboard page or opens one.
func (w *ServiceWorker) HandleClick(ctx context.Context, userID, action string) (ClickResult, error) {
	if action == ActionClose {
		return ClickResult{Action: ClickIgnored}, nil
	}

	for _, c := range w.clients.MatchAll(userID) {
		if !isDashboardURL(c.URL()) {
			continue
		}
		if err := c.Focus(ctx); err != nil {
			if errors.Is(err, ErrUnknownPage) {
				continue
			}
			return ClickResult{}, fmt.Errorf("focus client %s: %w", c.ID(), err)
		}
		return ClickResult{Action: ClickFocused, ClientID: c.ID()}, nil
	}

	if err := w.clients.OpenWindow(ctx, userID, middleware.DashboardPath); err != nil {
		return ClickResult{}, fmt.Errorf("open dashboard: %w", err)
	}
	return ClickResult{Action: ClickOpened, URL: middleware.DashboardPath}, nil
}

// BuildNotification turns a push payload into a native notification with
// open and close actions.
func BuildNotification(p domain.PushPayload, icon string) domain.NativeNotification {
	title := strings.TrimSpace(p.Notification.Title)
	if title == "" {
		title = defaultTitle
	}

	data := make(map[string]string, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	if _, ok := data["url"]; !ok {
		data["url"] = middleware.DashboardPath
	}

	return domain.NativeNotification{
		Title: title,
		Body:  p.Notification.Body,
		Icon:  icon,
		Tag:   p.MessageID(),
		Actions: []domain.NotificationAction{
			{Action: ActionOpen, Title: "Open"},
			{Action: ActionClose, Title: "Close"},
		},
		Data: data,
	}
}

func isDashboardURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Path == middleware.DashboardPath || strings.HasPrefix(u.Path, middleware.DashboardPath+"/")
}
