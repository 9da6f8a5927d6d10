package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/internal/notify"
)

var (
	errNoPushToken     = errors.New("the terminal client has no push registration token")
	errSessionRejected = errors.New("gateway rejected the session, run sawactl login")
)

// gatewayStream receives the console notification stream of the gateway.
// It plays the push client of the terminal: every relayed message is handed
// to the foreground handler.
type gatewayStream struct {
	base  *url.URL
	http  *http.Client
	token string

	mu   sync.Mutex
	done chan struct{}
	err  error
}

var _ notify.Messaging = (*gatewayStream)(nil)

func newGatewayStream(gateway, token string) (*gatewayStream, error) {
	u, err := url.Parse(strings.TrimRight(gateway, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway URL %q must be absolute", gateway)
	}
	return &gatewayStream{base: u, http: &http.Client{}, token: token, done: make(chan struct{})}, nil
}

func (s *gatewayStream) Token(context.Context, string) (string, error) {
	return "", errNoPushToken
}

// Subscribe opens the stream and calls handler for each relayed message
// until ctx ends, stop is called or the gateway closes the stream.
func (s *gatewayStream) Subscribe(ctx context.Context, handler func(domain.PushPayload)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	u := *s.base
	u.Path += "/api/notifications/stream"
	u.RawQuery = url.Values{"url": {"/dashboard"}, "visibility": {"visible"}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.AddCookie(&http.Cookie{Name: domain.TokenKey, Value: s.token})

	resp, err := s.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open notification stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, errSessionRejected
		}
		return nil, fmt.Errorf("open notification stream: gateway answered %d", resp.StatusCode)
	}

	go func() {
		defer cancel()
		defer resp.Body.Close()

		logger := pkgzerolog.FromContext(ctx)
		err := readEvents(resp.Body, func(name, data string) {
			switch name {
			case "ready":
				logger.Debug().Str("data", data).Msg("Notification stream ready")
			case notify.EventNotification:
				var msg domain.ClientMessage
				if err := json.Unmarshal([]byte(data), &msg); err != nil {
					logger.Warn().Err(err).Msg("Dropping malformed notification event")
					return
				}
				if msg.Type == domain.MessageTypeNotificationReceived {
					handler(msg.Payload)
				}
			}
		})
		if ctx.Err() != nil {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("notification stream closed: %w", err)
		}
		s.finish(err)
	}()

	return cancel, nil
}

// Done is closed when the stream has ended; Err then reports why.
func (s *gatewayStream) Done() <-chan struct{} { return s.done }

func (s *gatewayStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *gatewayStream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		s.err = err
		close(s.done)
	}
}

// readEvents parses a text/event-stream body and calls fn per dispatched
// event. Multi-line data fields are joined with "\n"; comments are skipped.
// A body that simply ends yields io.ErrUnexpectedEOF.
func readEvents(r io.Reader, fn func(name, data string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		name string
		data []string
	)
	dispatch := func() {
		if len(data) > 0 {
			if name == "" {
				name = "message"
			}
			fn(name, strings.Join(data, "\n"))
		}
		name, data = "", nil
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	dispatch()
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
