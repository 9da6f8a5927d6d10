package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

// Page event names sent over the stream.
const (
	EventNotification = "notification"
	EventFocus        = "focus"
)

// PageEvent is one server-sent event for a page.
type PageEvent struct {
	Name string
	Data any
}

// Page is a console tab connected to the gateway stream.
type Page struct {
	id     string
	userID string
	url    string

	mu      sync.Mutex
	visible bool
	closed  bool
	events  chan PageEvent
}

var _ Client = (*Page)(nil)

func (p *Page) ID() string     { return p.id }
func (p *Page) UserID() string { return p.userID }
func (p *Page) URL() string    { return p.url }

// Visible reports the last visibility state, false once closed.
func (p *Page) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible && !p.closed
}

// Events is closed when the page disconnects.
func (p *Page) Events() <-chan PageEvent { return p.events }

// Focus asks the page to bring the dashboard forward.
func (p *Page) Focus(context.Context) error {
	return p.send(PageEvent{Name: EventFocus, Data: map[string]string{"url": middleware.DashboardPath}})
}

// PostMessage relays msg to the page stream.
func (p *Page) PostMessage(_ context.Context, msg domain.ClientMessage) error {
	return p.send(PageEvent{Name: EventNotification, Data: msg})
}

func (p *Page) send(ev PageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrUnknownPage
	}
	select {
	case p.events <- ev:
		return nil
	default:
		middleware.NotificationsDropped.WithLabelValues("page_buffer_full").Inc()
		return ErrPageBufferFull
	}
}

func (p *Page) setVisible(v bool) {
	p.mu.Lock()
	p.visible = v
	p.mu.Unlock()
}

func (p *Page) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
}

// Hub tracks the console pages connected to this gateway instance.
type Hub struct {
	buffer int
	logger zerolog.Logger

	mu    sync.RWMutex
	pages map[string]*Page
}

var _ Clients = (*Hub)(nil)

// NewHub creates a Hub whose pages buffer up to buffer events.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		buffer: buffer,
		logger: logger.With().Str("component", "notification_hub").Logger(),
		pages:  make(map[string]*Page),
	}
}

// Connect registers a page for userID.
func (h *Hub) Connect(userID, url string, visible bool) *Page {
	p := &Page{
		id:      uuid.NewString(),
		userID:  userID,
		url:     url,
		visible: visible,
		events:  make(chan PageEvent, h.buffer),
	}
	h.mu.Lock()
	h.pages[p.id] = p
	h.mu.Unlock()

	h.logger.Debug().Str("page_id", p.id).Str("user_id", userID).Msg("Page connected")
	return p
}

// Disconnect removes the page and closes its event channel.
func (h *Hub) Disconnect(p *Page) {
	h.mu.Lock()
	delete(h.pages, p.id)
	h.mu.Unlock()
	p.close()

	h.logger.Debug().Str("page_id", p.id).Str("user_id", p.userID).Msg("Page disconnected")
}

// SetVisibility records the visibility reported by a page of userID.
func (h *Hub) SetVisibility(userID, pageID string, visible bool) error {
	h.mu.RLock()
	p, ok := h.pages[pageID]
	h.mu.RUnlock()
	if !ok || p.userID != userID {
		return ErrUnknownPage
	}
	p.setVisible(visible)
	return nil
}

// MatchAll returns the connected pages of userID.
func (h *Hub) MatchAll(userID string) []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Client
	for _, p := range h.pages {
		if p.userID == userID {
			out = append(out, p)
		}
	}
	return out
}

// OpenWindow has no page to act on; the click response carries the URL and
// the browser that reported the click opens it.
func (h *Hub) OpenWindow(_ context.Context, userID, url string) error {
	h.logger.Debug().Str("user_id", userID).Str("url", url).Msg("Delegating window open to the clicking browser")
	return nil
}

// Close disconnects every page, ending their streams.
func (h *Hub) Close() {
	h.mu.Lock()
	pages := h.pages
	h.pages = make(map[string]*Page)
	h.mu.Unlock()

	for _, p := range pages {
		p.close()
	}
}

// Len returns the number of connected pages.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages)
}
